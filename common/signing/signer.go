// Package signing implements the request signature shared by the gateway and
// its clients: parameters are put in canonical order and HMAC-SHA256 signed
// with the application's client secret.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Param is a single request parameter.
type Param struct {
	Key   string
	Value string
}

// Signer signs and verifies parameter sets with one secret.
type Signer struct {
	secretKey []byte
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret string) *Signer {
	return &Signer{secretKey: []byte(secret)}
}

// Canonical renders params sorted by key, then value, as key=value joined by '&'.
// Keys and values are query-escaped so '&' and '=' inside them cannot shift
// pair boundaries.
func Canonical(params []Param) string {
	sorted := make([]Param, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})

	var b strings.Builder
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical form of params.
func (s *Signer) Sign(params []Param) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(Canonical(params)))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches params, in constant time.
func (s *Signer) Verify(params []Param, signature string) bool {
	expected := s.Sign(params)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// FromMap converts a plain map to params. Order is irrelevant for signing.
func FromMap(m map[string]string) []Param {
	params := make([]Param, 0, len(m))
	for k, v := range m {
		params = append(params, Param{Key: k, Value: v})
	}
	return params
}
