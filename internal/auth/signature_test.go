package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestVerifyPayload_Valid(t *testing.T) {
	body := []byte(`{"resource":"messages","event":"created","data":{"id":"m1"}}`)
	sig := SignPayload("s3cret", body)

	if !VerifyPayload("s3cret", body, sig) {
		t.Fatalf("expected signature to verify")
	}
	if !VerifyPayload("s3cret", body, strings.ToUpper(sig)) {
		t.Fatalf("expected upper-case hex to verify")
	}
}

func TestVerifyPayload_TamperedBody(t *testing.T) {
	sig := SignPayload("s3cret", []byte(`{"data":{"id":"m1"}}`))
	if VerifyPayload("s3cret", []byte(`{"data":{"id":"m2"}}`), sig) {
		t.Fatalf("expected false")
	}
}

func TestVerifyPayload_WrongSecret(t *testing.T) {
	body := []byte("x")
	if VerifyPayload("other", body, SignPayload("s3cret", body)) {
		t.Fatalf("expected false")
	}
}

func TestVerifyPayloadDetailed_Errors(t *testing.T) {
	if err := VerifyPayloadDetailed("", []byte("x"), "00"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if err := VerifyPayloadDetailed("s", []byte("x"), "not-hex"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifyPayloadDetailed("s", []byte("x"), "abcd"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for short signature, got %v", err)
	}
}
