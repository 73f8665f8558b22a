package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"alpaca-proxy-go/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    model.Credentials
		wantErr error
	}{
		{
			name:   "bearer pair",
			header: "Bearer PK123:SK456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{
			name:   "bearer lowercase scheme",
			header: "bearer PK123:SK456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{
			name:   "bearer splits once on first colon",
			header: "Bearer PK123:SK:456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK:456"},
		},
		{
			name:   "explicit fields",
			header: "APCA-API-KEY-ID=PK123,APCA-API-SECRET-KEY=SK456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{
			name:   "explicit fields with spaces",
			header: "APCA-API-KEY-ID = PK123, APCA-API-SECRET-KEY = SK456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{
			name:   "bare pair",
			header: "PK123:SK456",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{
			name:   "surrounding whitespace trimmed",
			header: "  Bearer PK123:SK456  ",
			want:   model.Credentials{APIKey: "PK123", SecretKey: "SK456"},
		},
		{name: "empty header", header: "", wantErr: ErrAuthMissing},
		{name: "blank header", header: "   ", wantErr: ErrAuthMissing},
		{name: "bearer without colon", header: "Bearer PK123", wantErr: ErrAuthMalformed},
		{name: "bearer empty secret", header: "Bearer PK123:", wantErr: ErrAuthMalformed},
		{name: "bearer empty key", header: "Bearer :SK456", wantErr: ErrAuthMalformed},
		{name: "explicit empty key", header: "APCA-API-KEY-ID=,APCA-API-SECRET-KEY=SK456", wantErr: ErrAuthMalformed},
		{name: "explicit empty secret", header: "APCA-API-KEY-ID=PK123,APCA-API-SECRET-KEY=", wantErr: ErrAuthMalformed},
		{name: "bare empty secret", header: "PK123:", wantErr: ErrAuthMalformed},
		{name: "no recognizable form", header: "Basic dXNlcjpwYXNz", wantErr: ErrAuthMalformed},
		{name: "single token", header: "PK123", wantErr: ErrAuthMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.header, err, tt.wantErr)
				}
				if got != (model.Credentials{}) {
					t.Errorf("Parse(%q) returned partial credentials on error", tt.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.header, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

func TestParse_BearerPairs(t *testing.T) {
	keys := []string{"K", "PK9VOAP7D3CA18HGF7BH", "a-b_c.d"}
	secrets := []string{"S", "gkJvuobvGkIiNNELWC9vtHemewGbrnhHntHFBKLG", "x/y+z="}

	for _, k := range keys {
		for _, s := range secrets {
			header := fmt.Sprintf("Bearer %s:%s", k, s)
			got, err := Parse(header)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", header, err)
			}
			if got.APIKey != k || got.SecretKey != s {
				t.Errorf("Parse(%q) = (%q, %q), want (%q, %q)", header, got.APIKey, got.SecretKey, k, s)
			}
		}
	}
}

func TestCredentials_NeverPrintSecret(t *testing.T) {
	c := model.Credentials{APIKey: "PK123456", SecretKey: "topsecret"}

	if s := fmt.Sprintf("%v %s", c, c); strings.Contains(s, "topsecret") {
		t.Errorf("fmt output leaks secret: %q", s)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("creds", "credentials", c)
	if strings.Contains(buf.String(), "topsecret") {
		t.Errorf("slog output leaks secret: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "PK12****") {
		t.Errorf("slog output = %q, want redacted key id", buf.String())
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "header dump",
			in:   "bad header APCA-API-SECRET-KEY: abc123 sent",
			want: "bad header APCA-API-SECRET-KEY: [REDACTED] sent",
		},
		{
			name: "query form",
			in:   `Get "https://x/?apca-api-key-id=PK1&a=b"`,
			want: `Get "https://x/?apca-api-key-id=[REDACTED]&a=b"`,
		},
		{
			name: "bearer value",
			in:   "auth Bearer PK1:SK2 rejected",
			want: "auth Bearer [REDACTED] rejected",
		},
		{
			name: "nothing to redact",
			in:   "connection refused",
			want: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize() = %q, want %q", got, tt.want)
			}
		})
	}
}
