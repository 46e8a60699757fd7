package infra

import (
	"slices"

	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
)

// allowedMethods picks the narrowest CloudFront method set covering methods.
func allowedMethods(methods []string) awscloudfront.AllowedMethods {
	within := func(set []string) bool {
		for _, m := range methods {
			if !slices.Contains(set, m) {
				return false
			}
		}
		return true
	}

	switch {
	case within(edge.MethodsGetHead):
		return awscloudfront.AllowedMethods_ALLOW_GET_HEAD()
	case within(append(slices.Clone(edge.MethodsGetHead), "OPTIONS")):
		return awscloudfront.AllowedMethods_ALLOW_GET_HEAD_OPTIONS()
	default:
		return awscloudfront.AllowedMethods_ALLOW_ALL()
	}
}

func behaviorFor(rule edge.Rule, viewerFn awscloudfront.IFunction) *awscloudfront.AddBehaviorOptions {
	opts := &awscloudfront.AddBehaviorOptions{
		AllowedMethods:        allowedMethods(rule.Methods),
		CachedMethods:         awscloudfront.CachedMethods_CACHE_GET_HEAD(),
		ViewerProtocolPolicy:  awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
		ResponseHeadersPolicy: awscloudfront.ResponseHeadersPolicy_CORS_ALLOW_ALL_ORIGINS(),
	}

	if rule.Cached {
		opts.CachePolicy = awscloudfront.CachePolicy_CACHING_OPTIMIZED()
	} else {
		opts.CachePolicy = awscloudfront.CachePolicy_CACHING_DISABLED()
	}

	// Function URLs reject a forwarded viewer Host header.
	if rule.Origin != edge.OriginAssets {
		opts.OriginRequestPolicy = awscloudfront.OriginRequestPolicy_ALL_VIEWER_EXCEPT_HOST_HEADER()
	}

	if rule.ViewerRequest && viewerFn != nil {
		opts.FunctionAssociations = &[]*awscloudfront.FunctionAssociation{{
			EventType: awscloudfront.FunctionEventType_VIEWER_REQUEST,
			Function:  viewerFn,
		}}
	}

	return opts
}

func defaultBehaviorFor(rule edge.Rule, origin awscloudfront.IOrigin, viewerFn awscloudfront.IFunction) *awscloudfront.BehaviorOptions {
	b := behaviorFor(rule, viewerFn)
	return &awscloudfront.BehaviorOptions{
		Origin:                origin,
		AllowedMethods:        b.AllowedMethods,
		CachedMethods:         b.CachedMethods,
		CachePolicy:           b.CachePolicy,
		OriginRequestPolicy:   b.OriginRequestPolicy,
		ViewerProtocolPolicy:  b.ViewerProtocolPolicy,
		ResponseHeadersPolicy: b.ResponseHeadersPolicy,
		FunctionAssociations:  b.FunctionAssociations,
	}
}
