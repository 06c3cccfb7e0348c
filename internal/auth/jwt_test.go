package auth

import (
	"testing"
	"time"
)

func TestSessionJWT_RoundTrip(t *testing.T) {
	tok, err := SignSessionJWT("01HSESSION00000000000000000", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sid, err := ParseSessionJWT(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sid != "01HSESSION00000000000000000" {
		t.Fatalf("unexpected session id %q", sid)
	}
}

func TestSessionJWT_Rejects(t *testing.T) {
	tok, _ := SignSessionJWT("sid", "secret", time.Hour)
	if _, err := ParseSessionJWT(tok, "other-secret"); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}

	expired, _ := SignSessionJWT("sid", "secret", -time.Minute)
	if _, err := ParseSessionJWT(expired, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	if _, err := ParseSessionJWT("garbage", "secret"); err == nil {
		t.Fatalf("expected garbage to fail")
	}
	if _, err := SignSessionJWT("", "secret", time.Hour); err == nil {
		t.Fatalf("expected empty session id to fail")
	}
}
