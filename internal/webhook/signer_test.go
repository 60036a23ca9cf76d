package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSign(t *testing.T) {
	body := []byte(`{"sku":"A-1"}`)
	got := Sign("s3cret", body)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Errorf("signature mismatch: got %s want %s", got, want)
	}
	if Sign("other", body) == got {
		t.Error("different secrets must produce different signatures")
	}
	if Sign("s3cret", []byte("x")) == got {
		t.Error("different bodies must produce different signatures")
	}
}
