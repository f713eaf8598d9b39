package events

import (
	"encoding/base64"
	"encoding/json"

	"teammate/server/seedwork/domain"
)

// pushEnvelope mirrors the broker's push-delivery wire format:
//
//	{ "message": { "data": "<base64(json)>", "messageId": "...",
//	               "publishTime": "...", "attributes": {...} } }
type pushEnvelope struct {
	Message *pushMessage `json:"message"`
}

type pushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
	Attributes  map[string]string `json:"attributes"`
}

// DecodedEnvelope is the tagged result of decoding an inbound webhook
// body: either a push envelope (Direct=false) or a raw direct-invocation
// payload (Direct=true). Decoding never mutates any component state.
type DecodedEnvelope struct {
	Payload     json.RawMessage
	MessageID   string
	PublishTime string
	Attributes  map[string]string
	Direct      bool
}

// Decode disambiguates the two invocation shapes a webhook route must
// accept: a direct payload (the body IS the event payload) and a push
// envelope (the body wraps a base64-encoded payload under message.data).
// Presence of a top-level "message" field is the tag.
func Decode(body []byte) (DecodedEnvelope, error) {
	var probe struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return DecodedEnvelope{}, domain.NewDomainError(domain.CodeMalformedEnvelope, "request body is not valid JSON", err)
	}
	if probe.Message == nil {
		return DecodedEnvelope{Payload: json.RawMessage(body), Direct: true}, nil
	}

	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return DecodedEnvelope{}, domain.NewDomainError(domain.CodeMalformedEnvelope, "push envelope is malformed", err)
	}
	if env.Message.Data == "" {
		return DecodedEnvelope{}, domain.NewDomainError(domain.CodeMalformedEnvelope, "push envelope missing message.data", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return DecodedEnvelope{}, domain.NewDomainError(domain.CodeMalformedEnvelope, "message.data is not valid base64", err)
	}
	if !json.Valid(raw) {
		return DecodedEnvelope{}, domain.NewDomainError(domain.CodeMalformedEnvelope, "decoded message.data is not valid JSON", nil)
	}

	return DecodedEnvelope{
		Payload:     json.RawMessage(raw),
		MessageID:   env.Message.MessageID,
		PublishTime: env.Message.PublishTime,
		Attributes:  env.Message.Attributes,
		Direct:      false,
	}, nil
}

// RequireFields checks that every key in fields is present (and non-null)
// in the decoded payload, returning a MissingField DomainError naming the
// first absent key.
func RequireFields(payload json.RawMessage, fields ...string) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.NewDomainError(domain.CodeMalformedEnvelope, "payload is not a JSON object", err)
	}
	for _, f := range fields {
		v, ok := m[f]
		if !ok || string(v) == "null" {
			return domain.NewDomainError(domain.CodeMissingField, "missing required field: "+f, nil)
		}
	}
	return nil
}

// EncodePush builds a push envelope around payload, the inverse of Decode
// for the push path. Used by tests to exercise the round-trip property
// and by local/dev tooling that simulates broker delivery.
func EncodePush(payload any, messageID string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env := pushEnvelope{
		Message: &pushMessage{
			Data:      base64.StdEncoding.EncodeToString(raw),
			MessageID: messageID,
		},
	}
	return json.Marshal(env)
}

// EncodeDirect marshals payload as a bare direct-invocation body, the
// inverse of Decode for the direct path.
func EncodeDirect(payload any) ([]byte, error) {
	return json.Marshal(payload)
}
