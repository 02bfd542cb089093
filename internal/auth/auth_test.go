package auth

import (
	"encoding/base64"
	"errors"
	"testing"
)

func tokenWithPayload(t *testing.T, payload string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".signature"
}

func TestUserIDFromSub(t *testing.T) {
	creds := StaticCredentials(tokenWithPayload(t, `{"sub":"user-42","exp":1700000000}`))
	id, err := creds.UserID()
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if id != "user-42" {
		t.Fatalf("expected user-42, got %q", id)
	}
}

func TestUserIDFallbackClaims(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{`{"userId":"u-1"}`, "u-1"},
		{`{"uuid":"u-2"}`, "u-2"},
		{`{"sub":"","userId":"u-3"}`, "u-3"},
	}
	for _, tc := range cases {
		creds := StaticCredentials(tokenWithPayload(t, tc.payload))
		id, err := creds.UserID()
		if err != nil {
			t.Fatalf("payload %s: %v", tc.payload, err)
		}
		if id != tc.want {
			t.Fatalf("payload %s: expected %q, got %q", tc.payload, tc.want, id)
		}
	}
}

func TestUserIDMalformed(t *testing.T) {
	for _, raw := range []string{"not-a-jwt", "a.b", "a.!!!.c"} {
		creds := StaticCredentials(raw)
		if _, err := creds.UserID(); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("token %q: expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestMissingToken(t *testing.T) {
	creds := StaticCredentials("")
	if _, err := creds.Token(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}

	var nilCreds *Credentials
	if _, err := nilCreds.Token(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken for nil credentials, got %v", err)
	}
}
