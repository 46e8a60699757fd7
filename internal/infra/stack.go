// Package infra defines the split deployment: an asset bucket, the
// rendering and link-issuance functions, and the distributions in front of
// them.
package infra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecrassets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
	"github.com/kgellert/nextjs-split-deploy/internal/infra/cdklogger"
)

type SplitDeployStackProps struct {
	awscdk.StackProps
	Env StackEnv

	// RendererCode and PresignCode replace the builds from source when set.
	RendererCode awslambda.DockerImageCode
	PresignCode  awslambda.Code
}

// SplitDeployStack exposes the constructs other stacks or tests look at.
type SplitDeployStack struct {
	awscdk.Stack

	Bucket             awss3.Bucket
	Distribution       awscloudfront.Distribution
	StaticDistribution awscloudfront.Distribution
	RendererFunction   awslambda.Function
	PresignFunction    awslambda.Function
	PresignURL         awslambda.FunctionUrl
}

func NewSplitDeployStack(scope constructs.Construct, id string, props *SplitDeployStackProps) *SplitDeployStack {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)

	cfg := props.Env
	s := &SplitDeployStack{Stack: stack}

	s.Bucket = awss3.NewBucket(stack, jsii.String("StaticAssetsBucket"), &awss3.BucketProps{
		RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
		AutoDeleteObjects: jsii.Bool(true),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		EnforceSSL:        jsii.Bool(true),
		Cors: &[]*awss3.CorsRule{{
			AllowedHeaders: jsii.Strings("*"),
			AllowedMethods: &[]awss3.HttpMethods{awss3.HttpMethods_GET},
			AllowedOrigins: jsii.Strings("*"),
		}},
	})

	awss3deployment.NewBucketDeployment(stack, jsii.String("DeployStaticAssets"), &awss3deployment.BucketDeploymentProps{
		Sources:              &[]awss3deployment.ISource{awss3deployment.Source_Asset(jsii.String(cfg.StaticAssetsDir), nil)},
		DestinationBucket:    s.Bucket,
		DestinationKeyPrefix: jsii.String("_next/static"),
	})
	awss3deployment.NewBucketDeployment(stack, jsii.String("DeployPublicAssets"), &awss3deployment.BucketDeploymentProps{
		Sources:              &[]awss3deployment.ISource{awss3deployment.Source_Asset(jsii.String(cfg.PublicAssetsDir), nil)},
		DestinationBucket:    s.Bucket,
		DestinationKeyPrefix: jsii.String("public"),
	})

	s.RendererFunction = newRendererFunction(stack, cfg, props.RendererCode)
	rendererURL := s.RendererFunction.AddFunctionUrl(&awslambda.FunctionUrlOptions{
		AuthType: awslambda.FunctionUrlAuthType_AWS_IAM,
	})

	s.PresignFunction = newPresignFunction(stack, cfg, s.Bucket, props.PresignCode)
	s.PresignURL = s.PresignFunction.AddFunctionUrl(&awslambda.FunctionUrlOptions{
		AuthType: awslambda.FunctionUrlAuthType_AWS_IAM,
	})
	s.Bucket.GrantRead(s.PresignFunction, jsii.String(envdoc.PrivateKey))

	table := edge.DefaultTable(edge.Options{EnvViewerFunction: cfg.EnvViewerFunction})

	var viewerFn awscloudfront.IFunction
	if cfg.EnvViewerFunction {
		viewerFn = awscloudfront.NewFunction(stack, jsii.String("ViewerFunction"), &awscloudfront.FunctionProps{
			Code:    awscloudfront.FunctionCode_FromInline(jsii.String(edge.ViewerRequestSource())),
			Runtime: awscloudfront.FunctionRuntime_JS_2_0(),
			Comment: jsii.String("Rejects direct requests for the private environment document"),
		})
	} else {
		cdklogger.LogWarning(stack, id, "viewer function disabled: %s is served by the edge without a signed url", envdoc.PrivateKey)
	}

	origins := map[edge.Origin]awscloudfront.IOrigin{
		edge.OriginAssets:   awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(s.Bucket, nil),
		edge.OriginRenderer: awscloudfrontorigins.FunctionUrlOrigin_WithOriginAccessControl(rendererURL, nil),
		edge.OriginPresign:  awscloudfrontorigins.FunctionUrlOrigin_WithOriginAccessControl(s.PresignURL, nil),
	}

	def := table.Default()
	s.Distribution = awscloudfront.NewDistribution(stack, jsii.String("Distribution"), &awscloudfront.DistributionProps{
		Comment:         jsii.String("nextjs-split-deploy-distribution"),
		DefaultBehavior: defaultBehaviorFor(def, origins[def.Origin], viewerFn),
		EnableLogging:   jsii.Bool(true),
		HttpVersion:     awscloudfront.HttpVersion_HTTP2_AND_3,
		EnableIpv6:      jsii.Bool(false),
	})

	// AddBehavior keeps insertion order, which is CloudFront's precedence.
	for _, rule := range table.Rules() {
		s.Distribution.AddBehavior(jsii.String(rule.PathPattern), origins[rule.Origin], behaviorFor(rule, viewerFn))
	}

	s.StaticDistribution = awscloudfront.NewDistribution(stack, jsii.String("StaticDistribution"), &awscloudfront.DistributionProps{
		Comment: jsii.String("nextjs-split-deploy-static-distribution"),
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			Origin:                awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(s.Bucket, nil),
			ViewerProtocolPolicy:  awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
			ResponseHeadersPolicy: awscloudfront.ResponseHeadersPolicy_CORS_ALLOW_ALL_ORIGINS(),
		},
	})

	distributionURL := jsii.Sprintf("https://%s", *s.Distribution.DistributionDomainName())

	awss3deployment.NewBucketDeployment(stack, jsii.String("DeployEnvDocuments"), &awss3deployment.BucketDeploymentProps{
		Sources: &[]awss3deployment.ISource{
			awss3deployment.Source_JsonData(jsii.String(envdoc.PublicName), map[string]any{
				"cloudfrontUrl":    distributionURL,
				"downloadS3Lambda": s.PresignURL.Url(),
			}, nil),
			awss3deployment.Source_JsonData(jsii.String(envdoc.PrivateName), privateEnv(stack, id, cfg.PrivateEnvFile), nil),
		},
		DestinationBucket:    s.Bucket,
		DestinationKeyPrefix: jsii.String("env"),
	})

	awscdk.NewCfnOutput(stack, jsii.String("DistributionDomain"), &awscdk.CfnOutputProps{
		Value: distributionURL,
	})
	awscdk.NewCfnOutput(stack, jsii.String("StaticDistributionDomain"), &awscdk.CfnOutputProps{
		Value: jsii.Sprintf("https://%s", *s.StaticDistribution.DistributionDomainName()),
	})

	cdklogger.LogInfo(stack, id, "presigned links expire after %ds", cfg.PresignExpiresIn)

	return s
}

func newRendererFunction(scope constructs.Construct, cfg StackEnv, code awslambda.DockerImageCode) awslambda.Function {
	if code == nil {
		code = awslambda.DockerImageCode_FromImageAsset(jsii.String(cfg.RendererImageDir), &awslambda.AssetImageCodeProps{
			Platform: awsecrassets.Platform_LINUX_AMD64(),
		})
	}

	return awslambda.NewDockerImageFunction(scope, jsii.String("RendererFunction"), &awslambda.DockerImageFunctionProps{
		Code:         code,
		MemorySize:   jsii.Number(256),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(300)),
		LogRetention: awslogs.RetentionDays_ONE_WEEK,
	})
}

func newPresignFunction(scope constructs.Construct, cfg StackEnv, bucket awss3.IBucket, code awslambda.Code) awslambda.Function {
	role := awsiam.NewRole(scope, jsii.String("PresignFunctionRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("lambda.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSLambdaBasicExecutionRole")),
		},
	})

	environment := &map[string]*string{
		"REGION":     awscdk.Stack_Of(scope).Region(),
		"BUCKET":     bucket.BucketName(),
		"EXPIRES_IN": jsii.String(fmt.Sprint(cfg.PresignExpiresIn)),
	}

	if code != nil {
		return awslambda.NewFunction(scope, jsii.String("PresignFunction"), &awslambda.FunctionProps{
			Code:         code,
			Handler:      jsii.String("bootstrap"),
			Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
			Architecture: awslambda.Architecture_ARM_64(),
			Role:         role,
			Environment:  environment,
			LogRetention: awslogs.RetentionDays_ONE_WEEK,
		})
	}

	return awscdklambdagoalpha.NewGoFunction(scope, jsii.String("PresignFunction"), &awscdklambdagoalpha.GoFunctionProps{
		Entry:        jsii.String(cfg.PresignEntry),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Role:         role,
		Environment:  environment,
		LogRetention: awslogs.RetentionDays_ONE_WEEK,
		Bundling: &awscdklambdagoalpha.BundlingOptions{
			GoBuildFlags: jsii.Strings(`-ldflags "-s -w"`),
		},
	})
}

// privateEnv is the content of env/env.prod.json. Without a file it is a
// marker document.
func privateEnv(scope constructs.Construct, id, path string) any {
	doc := map[string]any{"bucketName": "env.prod.json"}
	if path == "" {
		cdklogger.LogWarning(scope, id, "PRIVATE_ENV_FILE not set, deploying a placeholder %s", envdoc.PrivateName)
		return doc
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		cdklogger.LogError(scope, id, "read %s: %v", path, err)
		return doc
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		cdklogger.LogError(scope, id, "parse %s: %v", path, err)
		return doc
	}

	return parsed
}
