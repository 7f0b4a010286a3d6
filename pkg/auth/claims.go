// Package auth reads identity claims out of bearer tokens issued by the hosted auth provider.
//
// Claim does NOT verify signatures. Tokens reach this service only after the provider has
// authenticated the user, and the claims are used for routing and ownership stamps, not as proof
// of identity. Do not reuse this reader anywhere the token's issuer is not already trusted.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	ClaimSubject = "sub"
	ClaimEmail   = "email"
)

// Claim returns the named string claim from the token payload. ok is false when the token has
// fewer than two segments, the payload is not base64 JSON, or the claim is missing or not a string.
func Claim(token, name string) (value string, ok bool) {
	if token == "" {
		return "", false
	}
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", false
	}

	raw, err := base64.StdEncoding.DecodeString(normalizeSegment(parts[1]))
	if err != nil {
		return "", false
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}

	value, ok = payload[name].(string)
	return value, ok
}

// Subject returns the "sub" claim.
func Subject(token string) (string, bool) {
	return Claim(token, ClaimSubject)
}

// Email returns the "email" claim.
func Email(token string) (string, bool) {
	return Claim(token, ClaimEmail)
}

// normalizeSegment turns a base64url segment into padded standard base64.
func normalizeSegment(segment string) string {
	s := strings.NewReplacer("-", "+", "_", "/").Replace(segment)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}
