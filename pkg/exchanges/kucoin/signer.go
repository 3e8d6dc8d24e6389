package kucoin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// signer produces the KC-API authentication headers required by private
// endpoints. It implements version 2 of the KuCoin key scheme, where the
// passphrase itself is transmitted HMAC-encrypted.
type signer struct {
	key        string
	secret     string
	passphrase string
}

func newSigner(key, secret, passphrase string) *signer {
	return &signer{key: key, secret: secret, passphrase: passphrase}
}

// headers signs one request. The endpoint must be the full request path
// including the query string (e.g. "/api/v1/accounts?currency=BTC"); body is
// the exact JSON payload for POST requests, empty otherwise.
func (s *signer) headers(method, endpoint, body string, now time.Time) map[string]string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	payload := ts + strings.ToUpper(method) + endpoint + body
	return map[string]string{
		"KC-API-KEY":         s.key,
		"KC-API-SIGN":        s.sign(payload),
		"KC-API-TIMESTAMP":   ts,
		"KC-API-PASSPHRASE":  s.sign(s.passphrase),
		"KC-API-KEY-VERSION": "2",
	}
}

func (s *signer) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
