package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// SignatureHeader carries the HMAC of a webhook notification body.
const SignatureHeader = "X-Spark-Signature"

var (
	ErrMissingSecret    = errors.New("Missing webhook secret")
	ErrInvalidSignature = errors.New("Invalid signature")
)

// SignPayload returns the hex HMAC-SHA1 of body keyed by secret.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyPayload(secret string, body []byte, signatureHex string) bool {
	return VerifyPayloadDetailed(secret, body, signatureHex) == nil
}

func VerifyPayloadDetailed(secret string, body []byte, signatureHex string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil || len(signature) != sha1.Size {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return ErrInvalidSignature
	}
	return nil
}
