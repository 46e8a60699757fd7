// Package cdklogger reports synth-time notes as construct annotations so
// they show up in `cdk synth` output next to the construct they concern.
package cdklogger

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

func LogInfo(scope constructs.Construct, constructID string, format string, args ...any) {
	awscdk.Annotations_Of(scope).AddInfo(jsii.String(message(scope, constructID, format, args...)))
}

func LogWarning(scope constructs.Construct, constructID string, format string, args ...any) {
	awscdk.Annotations_Of(scope).AddWarning(jsii.String(message(scope, constructID, format, args...)))
}

func LogError(scope constructs.Construct, constructID string, format string, args ...any) {
	awscdk.Annotations_Of(scope).AddError(jsii.String(message(scope, constructID, format, args...)))
}

// message prefixes the construct id unless the scope path already ends with it.
func message(scope constructs.Construct, constructID string, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if constructID == "" {
		return msg
	}

	path := *scope.Node().Path()
	if path == constructID || strings.HasSuffix(path, "/"+constructID) {
		return msg
	}

	return fmt.Sprintf("[%s] %s", constructID, msg)
}
