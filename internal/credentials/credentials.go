// Package credentials extracts the Alpaca key id / secret pair from the
// inbound Authorization header.
package credentials

import (
	"errors"
	"regexp"
	"strings"

	"alpaca-proxy-go/internal/model"
)

var (
	// ErrAuthMissing is returned when the Authorization header is absent or blank.
	ErrAuthMissing = errors.New("missing authorization header")
	// ErrAuthMalformed is returned when the header matches no accepted form
	// or one of the captured values is empty.
	ErrAuthMalformed = errors.New("invalid authorization format")
)

const bearerScheme = "bearer "

// explicitPattern matches APCA-API-KEY-ID=KEY,APCA-API-SECRET-KEY=SECRET.
var explicitPattern = regexp.MustCompile(`(?i)^APCA-API-KEY-ID\s*=\s*([^,]*?)\s*,\s*APCA-API-SECRET-KEY\s*=\s*(.*)$`)

// format is one accepted header convention. It reports whether the header
// has its shape and, if so, the captured key and secret.
type format func(header string) (key, secret string, ok bool)

// formats are tried in priority order; the first whose shape matches decides.
var formats = []format{bearer, explicit, bare}

// Parse extracts credentials from an Authorization header value.
func Parse(header string) (model.Credentials, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return model.Credentials{}, ErrAuthMissing
	}

	for _, f := range formats {
		key, secret, ok := f(header)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		secret = strings.TrimSpace(secret)
		if key == "" || secret == "" {
			return model.Credentials{}, ErrAuthMalformed
		}
		return model.Credentials{APIKey: key, SecretKey: secret}, nil
	}

	return model.Credentials{}, ErrAuthMalformed
}

func bearer(header string) (string, string, bool) {
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", "", false
	}
	key, secret, found := strings.Cut(header[len(bearerScheme):], ":")
	if !found {
		// Bearer scheme without a pair is still the bearer form, just broken.
		return "", "", true
	}
	return key, secret, true
}

func explicit(header string) (string, string, bool) {
	m := explicitPattern.FindStringSubmatch(header)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func bare(header string) (string, string, bool) {
	key, secret, found := strings.Cut(header, ":")
	if !found || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, secret, true
}
