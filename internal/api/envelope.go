package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// SuccessCode is the envelope code the backend uses for success.
const SuccessCode = 200

// unwrapEnvelope accepts either a bare payload or a {code, message, data}
// envelope. A non-success code is classified like an HTTP status.
func unwrapEnvelope(op string, body []byte) (json.RawMessage, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return body, nil
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return body, nil
	}

	code := root.Get("code")
	if !code.Exists() {
		return body, nil
	}

	if code.Int() != SuccessCode {
		return nil, classify(op, int(code.Int()), bodyMessage(body))
	}

	if data := root.Get("data"); data.Exists() {
		return json.RawMessage(data.Raw), nil
	}
	return body, nil
}

// bodyMessage returns the backend's explanation, preferring "message" over "msg".
func bodyMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "msg"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
