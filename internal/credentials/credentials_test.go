package credentials

import (
	"context"
	"errors"
	"testing"

	"cuecard/internal/domain"
)

func TestTokenStore(t *testing.T) {
	t.Parallel()

	store := NewTokenStore("  abc ")
	token, ok := store.BearerToken()
	if !ok || token != "abc" {
		t.Fatalf("unexpected token: %q %v", token, ok)
	}

	store.Set("")
	if _, ok := store.BearerToken(); ok {
		t.Fatalf("expected signed-out store")
	}
}

func TestForModeOfflineFallback(t *testing.T) {
	t.Parallel()

	if token, ok := ForMode("", true).BearerToken(); !ok || token != LocalBearerToken {
		t.Fatalf("expected local token, got %q %v", token, ok)
	}
	if _, ok := ForMode("", false).BearerToken(); ok {
		t.Fatalf("online mode must not invent a token")
	}
	if token, _ := ForMode("real", true).BearerToken(); token != "real" {
		t.Fatalf("explicit token must win, got %q", token)
	}
}

func TestOutboundHidesLocalPlaceholder(t *testing.T) {
	t.Parallel()

	store := ForMode("", true)
	if token, ok := store.Outbound().BearerToken(); ok || token != "" {
		t.Fatalf("placeholder leaked outbound: %q %v", token, ok)
	}

	store.Set("signed-in")
	if token, ok := store.Outbound().BearerToken(); !ok || token != "signed-in" {
		t.Fatalf("expected real token outbound, got %q %v", token, ok)
	}

	if token, ok := ForMode("real", true).Outbound().BearerToken(); !ok || token != "real" {
		t.Fatalf("explicit offline token must go out, got %q %v", token, ok)
	}
}

func TestStaticCredential(t *testing.T) {
	t.Parallel()

	key, err := Static("dg-key").TranscriptionCredential(context.Background())
	if err != nil || key != "dg-key" {
		t.Fatalf("unexpected credential: %q %v", key, err)
	}

	_, err = Static(" ").TranscriptionCredential(context.Background())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
