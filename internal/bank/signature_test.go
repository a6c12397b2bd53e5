package bank

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

func TestVerifier_NoSecretAcceptsEverything(t *testing.T) {
	v := NewVerifier("")

	if !v.Verify([]byte(`{"payment_id":"BANK-1"}`), "") {
		t.Error("expected unverified mode to accept a body without signature")
	}
	if !v.Verify([]byte(`{"payment_id":"BANK-1"}`), "garbage") {
		t.Error("expected unverified mode to accept any signature")
	}
}

func TestVerifier_HMAC(t *testing.T) {
	const secret = "super-secret-webhook-key"
	body := []byte(`{"payment_id":"BANK-1","status":"PAID","amount":"5000.00"}`)
	v := NewVerifier(secret)

	t.Run("Given a configured secret When signature header is missing Then verification fails", func(t *testing.T) {
		if v.Verify(body, "") {
			t.Error("expected missing signature to fail")
		}
	})

	t.Run("Given a valid signature Then verification succeeds", func(t *testing.T) {
		if !v.Verify(body, sign(secret, body)) {
			t.Error("expected valid signature to pass")
		}
	})

	t.Run("Given a tampered body with the stale signature Then verification fails", func(t *testing.T) {
		stale := sign(secret, body)
		tampered := []byte(`{"payment_id":"BANK-1","status":"PAID","amount":"9999.00"}`)
		if v.Verify(tampered, stale) {
			t.Error("expected stale signature over tampered body to fail")
		}
	})

	t.Run("Given a recomputed signature for the tampered body Then verification succeeds", func(t *testing.T) {
		// The signature covers raw bytes, not semantic content
		tampered := []byte(`{"payment_id":"BANK-1","status":"PAID","amount":"9999.00"}`)
		if !v.Verify(tampered, sign(secret, tampered)) {
			t.Error("expected recomputed signature to pass")
		}
	})

	t.Run("Given a signature of the wrong length Then verification fails", func(t *testing.T) {
		if v.Verify(body, "abcd") {
			t.Error("expected short signature to fail")
		}
	})

	t.Run("Given a signature under a different secret Then verification fails", func(t *testing.T) {
		if v.Verify(body, sign("another-secret", body)) {
			t.Error("expected foreign-secret signature to fail")
		}
	})
}
