package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// signHMAC returns base64(HMAC(key, msg)) with the given hash.
func signHMAC(newHash func() hash.Hash, key, msg string) string {
	mac := hmac.New(newHash, []byte(key))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// TwilioSignature computes the X-Twilio-Signature value for a form POST.
// The signing string is the URL followed by every key+value pair sorted by key.
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	return signHMAC(sha1.New, authToken, b.String())
}

// PlivoSignatureV3 computes the X-Plivo-Signature-V3 value: HMAC-SHA256 over URL + nonce + body.
func PlivoSignatureV3(authToken, fullURL, nonce string, body []byte) string {
	return signHMAC(sha256.New, authToken, fullURL+nonce+string(body))
}

// signaturesEqual compares in constant time. A length mismatch fails before comparing.
func signaturesEqual(expected, got string) bool {
	if len(expected) != len(got) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
