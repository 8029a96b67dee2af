// Package webhook authenticates and decodes signed events sent by Stripe.
//
// Verification checks an HMAC-SHA256 signature over the raw request body with
// a timestamp tolerance window. The signed content is "{t}.{payload}" where t
// comes from the Stripe-Signature header. Signature comparison is constant
// time; the caller is expected to collapse every verification failure into a
// single opaque 400 response so the distinction between failure modes is
// never observable from the outside.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"subsignup/internal/types"
)

// DefaultTolerance is the maximum accepted age of an event timestamp relative
// to the current time. Events outside the window are treated as replays.
const DefaultTolerance = 300 * time.Second

// signatureScheme is the only signature scheme tag recognized during
// verification. Unknown tags in the header are ignored.
const signatureScheme = "v1"

var (
	// ErrInvalidHeader indicates the Stripe-Signature header is missing a
	// timestamp or carries no v1 signature.
	ErrInvalidHeader = errors.New("webhook: invalid signature header")

	// ErrNoValidSignature indicates no v1 signature matched the expected MAC.
	ErrNoValidSignature = errors.New("webhook: no valid signature")

	// ErrTimestampOutsideTolerance indicates the event timestamp is outside
	// the replay tolerance window.
	ErrTimestampOutsideTolerance = errors.New("webhook: timestamp outside tolerance")
)

// SignedHeader holds the parsed components of a Stripe-Signature header:
// the event timestamp and every candidate v1 signature.
type SignedHeader struct {
	Timestamp  time.Time
	Signatures [][]byte
}

// ParseSignatureHeader parses a Stripe-Signature header value.
//
// The header is a comma-separated list of name=value pairs, for example
// "t=1600000000,v1=5257a86...". Whitespace around elements is tolerated.
// Pairs with unknown names (other scheme tags, rotation signatures) are
// ignored. At least one t and one decodable v1 pair must be present.
func ParseSignatureHeader(header string) (SignedHeader, error) {
	var (
		parsed       SignedHeader
		sawTimestamp bool
	)

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			unix, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return SignedHeader{}, ErrInvalidHeader
			}
			parsed.Timestamp = time.Unix(unix, 0).UTC()
			sawTimestamp = true
		case signatureScheme:
			sig, err := hex.DecodeString(parts[1])
			if err != nil {
				// An undecodable signature can never match; skip it
				// rather than failing the whole header, since Stripe
				// may send multiple v1 values during secret rotation.
				continue
			}
			parsed.Signatures = append(parsed.Signatures, sig)
		}
	}

	if !sawTimestamp || len(parsed.Signatures) == 0 {
		return SignedHeader{}, ErrInvalidHeader
	}
	return parsed, nil
}

// Verifier validates signed webhook payloads against a signing secret.
//
// Tolerance <= 0 disables the replay check; this is intended for tests that
// replay captured events with fixed timestamps. Now defaults to time.Now.
type Verifier struct {
	Secret    types.SecretString
	Tolerance time.Duration
	Now       func() time.Time
}

// NewVerifier creates a Verifier with the default replay tolerance.
func NewVerifier(secret types.SecretString) *Verifier {
	return &Verifier{
		Secret:    secret,
		Tolerance: DefaultTolerance,
	}
}

// Verify authenticates payload against the Stripe-Signature header value.
//
// The expected MAC is HMAC-SHA256(secret, "{t}.{payload}") computed over the
// raw body bytes exactly as received. Each v1 candidate is compared with
// hmac.Equal, a constant-time comparison; every candidate is checked even
// after a match so verification cost does not depend on which one matched.
// The tolerance check runs after the MAC comparison.
//
// Returns nil on success, or one of ErrInvalidHeader, ErrNoValidSignature,
// ErrTimestampOutsideTolerance.
func (v *Verifier) Verify(payload []byte, header string) error {
	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	expected := ComputeSignature(v.Secret, parsed.Timestamp, payload)
	matched := false
	for _, candidate := range parsed.Signatures {
		if hmac.Equal(candidate, expected) {
			matched = true
		}
	}
	if !matched {
		return ErrNoValidSignature
	}

	if v.Tolerance > 0 {
		now := time.Now()
		if v.Now != nil {
			now = v.Now()
		}
		age := now.Sub(parsed.Timestamp)
		if age < 0 {
			age = -age
		}
		if age > v.Tolerance {
			return ErrTimestampOutsideTolerance
		}
	}

	return nil
}

// ComputeSignature computes the raw HMAC-SHA256 MAC over "{t}.{payload}"
// using the given secret. Exposed so tests and outbound-signing callers can
// build valid Stripe-Signature headers.
func ComputeSignature(secret types.SecretString, t time.Time, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret.Unmask()))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignHeader builds a complete Stripe-Signature header value for payload,
// signed at t with secret. Used by tests to construct authentic requests.
func SignHeader(secret types.SecretString, t time.Time, payload []byte) string {
	sig := ComputeSignature(secret, t, payload)
	return "t=" + strconv.FormatInt(t.Unix(), 10) + "," + signatureScheme + "=" + hex.EncodeToString(sig)
}
