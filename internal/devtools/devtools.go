// Package devtools implements the developer utility endpoints: JWT
// decoding, JSON/YAML formatting and URL encoding. All operations are pure
// and never leave the process.
package devtools

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/airview/airview/internal/api"
)

// DecodedJWT is a JWT split into its decoded parts. The signature is not
// verified; this is an inspection tool, not an authenticator.
type DecodedJWT struct {
	Header    map[string]any `json:"header"`
	Payload   map[string]any `json:"payload"`
	Signature string         `json:"signature"`
}

// DecodeJWT splits and base64-decodes a compact JWT.
func DecodeJWT(token string) (DecodedJWT, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return DecodedJWT{}, api.NewValidationError("INVALID_JWT", "token must have 3 parts (header, payload, signature)")
	}

	header, err := decodeSegment(parts[0])
	if err != nil {
		return DecodedJWT{}, api.NewValidationError("INVALID_JWT", fmt.Sprintf("decode header: %v", err))
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return DecodedJWT{}, api.NewValidationError("INVALID_JWT", fmt.Sprintf("decode payload: %v", err))
	}

	return DecodedJWT{Header: header, Payload: payload, Signature: parts[2]}, nil
}

func decodeSegment(seg string) (map[string]any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Format converts between JSON and YAML and pretty-prints. from and to are
// "json" or "yaml".
func Format(input, from, to string) (string, error) {
	var doc any
	switch from {
	case "json":
		if err := json.Unmarshal([]byte(input), &doc); err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("parse json: %v", err))
		}
	case "yaml":
		if err := yaml.Unmarshal([]byte(input), &doc); err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("parse yaml: %v", err))
		}
	default:
		return "", api.NewValidationError("INVALID_FORMAT", "from must be json or yaml")
	}

	switch to {
	case "json":
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("encode json: %v", err))
		}
		return string(out), nil
	case "yaml":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("encode yaml: %v", err))
		}
		return string(out), nil
	default:
		return "", api.NewValidationError("INVALID_FORMAT", "to must be json or yaml")
	}
}

// URLCodec encodes or decodes a string. mode is "encode", "decode",
// "encode-component" or "decode-component"; component mode escapes query
// characters too, matching encodeURIComponent.
func URLCodec(input, mode string) (string, error) {
	switch mode {
	case "encode":
		return url.PathEscape(input), nil
	case "encode-component":
		return url.QueryEscape(input), nil
	case "decode":
		out, err := url.PathUnescape(input)
		if err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("decode: %v", err))
		}
		return out, nil
	case "decode-component":
		out, err := url.QueryUnescape(input)
		if err != nil {
			return "", api.NewValidationError("INVALID_INPUT", fmt.Sprintf("decode: %v", err))
		}
		return out, nil
	default:
		return "", api.NewValidationError("INVALID_MODE", "mode must be encode, decode, encode-component or decode-component")
	}
}
