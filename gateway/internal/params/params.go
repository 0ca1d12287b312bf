// Package params collects the ordered parameter set of an inbound request:
// query string first, then the body (form or JSON object).
package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/leadgate/leadgate/common/signing"
	"github.com/leadgate/leadgate/gateway/internal/models"
)

// DefaultMaxBytes caps the body read when no explicit limit is given.
const DefaultMaxBytes = 1 << 20

// ErrBodyTooLarge is returned when the request body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Params is an ordered parameter list. Duplicate keys are kept.
type Params []signing.Param

// FromRequest reads all parameters from r in wire order. The body is consumed.
func FromRequest(r *http.Request, maxBytes int64) (Params, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	out, err := ParseQuery(r.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrBodyTooLarge
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return out, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || (mediaType == "" && body[0] == '{'):
		fields, err := models.DecodeObject(body)
		if err != nil {
			return nil, fmt.Errorf("json body: %w", err)
		}
		for _, f := range fields {
			out = append(out, signing.Param{Key: f.Key, Value: f.Value})
		}
	case mediaType == "application/x-www-form-urlencoded" || mediaType == "":
		form, err := ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("form body: %w", err)
		}
		out = append(out, form...)
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return out, nil
}

// ParseQuery decodes an application/x-www-form-urlencoded string keeping the
// order of pairs.
func ParseQuery(raw string) (Params, error) {
	out := Params{}
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		out = append(out, signing.Param{Key: key, Value: value})
	}
	return out, nil
}

// Get returns the first value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Without returns a copy of p minus every pair whose key is listed.
func (p Params) Without(keys ...string) Params {
	out := make(Params, 0, len(p))
next:
	for _, kv := range p {
		for _, k := range keys {
			if kv.Key == k {
				continue next
			}
		}
		out = append(out, kv)
	}
	return out
}

// Payload converts the parameters to a lead payload, preserving order.
func (p Params) Payload() models.Payload {
	out := make(models.Payload, len(p))
	for i, kv := range p {
		out[i] = models.Field{Key: kv.Key, Value: kv.Value}
	}
	return out
}

// Encode renders the parameters as a form string in their current order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}
