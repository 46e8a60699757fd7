package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/kgellert/nextjs-split-deploy/internal/infra"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	cfg, err := infra.LoadStackEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	infra.NewSplitDeployStack(app, "NextjsSplitDeployStack", &infra.SplitDeployStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("Static assets on S3, SSR and presigned links on Lambda, behind CloudFront"),
		},
		Env: cfg,
	})

	app.Synth(nil)
}

// env determines the AWS environment (account+region) in which our stack is to
// be deployed. For more information see: https://docs.aws.amazon.com/cdk/latest/guide/environments.html
func env() *awscdk.Environment {
	account := os.Getenv("CDK_DEPLOY_ACCOUNT")
	region := os.Getenv("CDK_DEPLOY_REGION")

	if len(account) == 0 || len(region) == 0 {
		account = os.Getenv("CDK_DEFAULT_ACCOUNT")
		region = os.Getenv("CDK_DEFAULT_REGION")
	}

	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}
