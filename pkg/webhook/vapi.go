package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// VerifyVapiSignature verifies a Vapi webhook HMAC signature.
// Vapi sends the signature in the x-vapi-signature header as a hex-encoded
// HMAC-SHA256 of the raw request body. Verification fails closed: an empty
// secret rejects every request.
func VerifyVapiSignature(secret string, rawBody []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	if signature == "" {
		return fmt.Errorf("signature header missing")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}

	return nil
}
