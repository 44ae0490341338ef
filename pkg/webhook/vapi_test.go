package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyVapiSignature(t *testing.T) {
	body := []byte(`{"type":"call-ended","call":{"id":"abc"}}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			secret:    "topsecret",
			signature: sign("topsecret", body),
			wantErr:   false,
		},
		{
			name:      "wrong secret",
			secret:    "topsecret",
			signature: sign("othersecret", body),
			wantErr:   true,
		},
		{
			name:      "missing signature",
			secret:    "topsecret",
			signature: "",
			wantErr:   true,
		},
		{
			name:      "no secret configured fails closed",
			secret:    "",
			signature: sign("topsecret", body),
			wantErr:   true,
		},
		{
			name:      "garbage signature",
			secret:    "topsecret",
			signature: "deadbeef",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyVapiSignature(tt.secret, body, tt.signature)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyVapiSignature() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyVapiSignature_BodyTamper(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"call":{"id":"abc","duration":60}}`)
	signature := sign(secret, body)

	tampered := []byte(`{"call":{"id":"abc","duration":600}}`)
	if err := VerifyVapiSignature(secret, tampered, signature); err == nil {
		t.Errorf("VerifyVapiSignature() accepted tampered body")
	}
}
