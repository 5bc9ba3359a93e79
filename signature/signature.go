// Package signature implements the canonicalization and HMAC verification
// primitives used by the admission pipeline to authenticate inbound
// requests.
package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// Material captures the inputs needed to validate a signed request.
type Material struct {
	Signature    string
	Nonce        string
	Date         string
	PathAndQuery string
	Verb         string
	Body         []byte
}

// Verifier validates the authenticity of incoming requests.
type Verifier interface {
	Verify(ctx context.Context, material Material, signingKey string) error
}

// VerifierFunc lifts bare functions into [Verifier].
type VerifierFunc func(ctx context.Context, material Material, signingKey string) error

// Verify delegates to the wrapped function.
func (f VerifierFunc) Verify(ctx context.Context, material Material, signingKey string) error {
	return f(ctx, material, signingKey)
}

// HMACVerifier validates signatures produced by taking the lowercase-hex
// HMAC-SHA256 digest of the canonical string built by [BuildSigningString].
type HMACVerifier struct{}

// Verify implements [Verifier] by recomputing the expected HMAC digest and
// comparing it against material.Signature in constant time.
func (HMACVerifier) Verify(_ context.Context, material Material, signingKey string) error {
	if signingKey == "" {
		return errors.New("signature: signing key must not be empty")
	}
	canonicalBody, err := CanonicalizeJSONBody(material.Body)
	if err != nil {
		return fmt.Errorf("signature: canonicalize body: %w", err)
	}
	signingInput := BuildSigningString(material.PathAndQuery, material.Verb, material.Nonce, material.Date, canonicalBody)
	mac := hmac.New(sha256.New, []byte(signingKey))
	if _, err := mac.Write(signingInput); err != nil {
		return fmt.Errorf("signature: compute signature: %w", err)
	}
	expected := mac.Sum(nil)
	decoded, err := hex.DecodeString(material.Signature)
	if err != nil {
		return fmt.Errorf("signature: decode signature: %w", err)
	}
	if !hmac.Equal(decoded, expected) {
		return errors.New("signature: invalid signature")
	}
	return nil
}

// ReadAndBufferBody reads the request body while keeping it accessible for
// later handlers.
func ReadAndBufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

// CanonicalizeJSONBody recursively sorts the keys of every nested JSON
// object in raw (arrays keep their element order), serializes the result
// with no extraneous whitespace, and base64-encodes the UTF-8 bytes. An
// empty body or an empty JSON object canonicalizes to nil: the body
// segment of the signed string is "" when there is nothing to sign.
func CanonicalizeJSONBody(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isEmptyJSONObject(trimmed) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("signature: multiple JSON documents in body")
	}
	sorted, err := canonicaljson.Marshal(payload)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(sorted)))
	base64.StdEncoding.Encode(encoded, sorted)
	return encoded, nil
}

func isEmptyJSONObject(trimmed []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	return len(obj) == 0
}

// BuildSigningString constructs the exact byte string that is HMAC-signed:
//
//	pathAndQuery + "." + UPPERCASE(verb) + "." + nonce + "." + date + "." + canonicalBody
//
// canonicalBody is expected to already be the base64-encoded, key-sorted
// JSON body (or nil/empty for a bodyless request), as produced by
// [CanonicalizeJSONBody].
func BuildSigningString(pathAndQuery, verb, nonce, date string, canonicalBody []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(pathAndQuery)
	buf.WriteByte('.')
	buf.WriteString(upperASCII(verb))
	buf.WriteByte('.')
	buf.WriteString(nonce)
	buf.WriteByte('.')
	buf.WriteString(date)
	buf.WriteByte('.')
	buf.Write(canonicalBody)
	return buf.Bytes()
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
