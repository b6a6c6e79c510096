package sparkwheel

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
)

// ssmParamTargetPath is the `_target_` name for the AWS Systems
// Manager Parameter Store built-in component.
const ssmParamTargetPath = "sparkwheel.aws.SSMParameter"

// ssmParameterConstructor implements "sparkwheel.aws.SSMParameter":
// `_args_: [name]`, optional `decrypt: true` kwarg.
//
// Grounded on op_aws.go's ssm.New(session)/GetParameter call
// (getParameterStoreValue); a fresh session and client are built per
// call rather than sharing the teacher's package-global client/cache,
// since a sparkwheel component instantiation is expected to run once
// per resolve rather than repeatedly inside a hot operator-evaluation
// loop.
func ssmParameterConstructor(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("sparkwheel.aws.SSMParameter requires a parameter name argument")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("sparkwheel.aws.SSMParameter: name argument must be a string")
	}

	decrypt := true
	if v, ok := kwargs["decrypt"]; ok {
		if b, ok := v.(bool); ok {
			decrypt = b
		}
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	client := ssm.New(sess)

	output, err := client.GetParameter(&ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return nil, fmt.Errorf("reading SSM parameter %q: %w", name, err)
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return nil, fmt.Errorf("SSM parameter %q has no value", name)
	}

	return *output.Parameter.Value, nil
}
