package sparkwheel

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// natsPublishTargetPath is the `_target_` name for the NATS publish
// built-in component.
const natsPublishTargetPath = "sparkwheel.nats.Publish"

// natsPublishConstructor implements "sparkwheel.nats.Publish":
// `_args_: [subject, payload]`, `url` kwarg (defaults to
// nats.DefaultURL). Returns the subject it published to, so a
// pipeline can chain on the instantiation result.
//
// Grounded on op_nats.go's nats.Connect(config.URL, opts...)/Publish
// call pattern; only the client-connect-and-publish half of the
// teacher's NATS operator is wired (no JetStream, no connection
// pooling) since a config-instantiation component publishing one
// value has none of the teacher's sustained-subscription concerns.
func natsPublishConstructor(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("sparkwheel.nats.Publish requires [subject, payload] arguments")
	}
	subject, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("sparkwheel.nats.Publish: subject argument must be a string")
	}

	url := nats.DefaultURL
	if v, ok := kwargs["url"]; ok {
		if s, ok := v.(string); ok && s != "" {
			url = s
		}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %q: %w", url, err)
	}
	defer nc.Close()

	payload, err := toBytes(args[1])
	if err != nil {
		return nil, err
	}

	if err := nc.Publish(subject, payload); err != nil {
		return nil, fmt.Errorf("publishing to %q: %w", subject, err)
	}
	return subject, nil
}

func toBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return []byte(fmt.Sprintf("%v", t)), nil
	}
}
