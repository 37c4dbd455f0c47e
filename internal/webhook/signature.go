package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"nummerwacht_backend/platform/apperr"
)

// SignatureHeader carries the vendor's timestamped HMAC over the raw body.
const SignatureHeader = "X-Signature"

// signatureTolerance bounds how old a signed timestamp may be. Webhook
// retries from the vendor can arrive late, replays should not.
const signatureTolerance = 30 * time.Minute

// Verifier checks webhook signatures of the form "t=<unix>,v0=<digest>".
// The digest is HMAC-SHA256 over "{t}.{body}" with the shared secret, in
// either hex or base64 encoding depending on the vendor SDK version.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier builds a Verifier. An empty secret disables verification;
// the caller is responsible for refusing that configuration in
// production and for logging the bypass.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// Verify checks header against body. It fails closed: a missing header,
// missing timestamp, stale timestamp or digest mismatch all return an
// Unauthorized error. With no secret configured it accepts everything.
func (v *Verifier) Verify(header string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(header) == "" {
		return apperr.Unauthorized("missing signature header")
	}

	timestamp, digest, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return apperr.Unauthorized("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	if digestMatches(digest, expected) {
		return nil
	}
	return apperr.Unauthorized("signature mismatch")
}

// parseSignatureHeader splits "t=<unix>,v0=<digest>" into its parts.
// The digest label may be v0, v1 or v2; older vendor SDKs differ.
func parseSignatureHeader(header string) (int64, string, error) {
	var timestampPart, digestPart string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			timestampPart = part[len("t="):]
		case strings.HasPrefix(part, "v0="), strings.HasPrefix(part, "v1="), strings.HasPrefix(part, "v2="):
			digestPart = part[strings.Index(part, "=")+1:]
		}
	}
	if timestampPart == "" {
		return 0, "", apperr.Unauthorized("signature header missing timestamp")
	}
	if digestPart == "" {
		return 0, "", apperr.Unauthorized("signature header missing digest")
	}
	timestamp, err := strconv.ParseInt(timestampPart, 10, 64)
	if err != nil {
		return 0, "", apperr.Unauthorized("signature timestamp not numeric")
	}
	return timestamp, digestPart, nil
}

// digestMatches compares the provided digest against the expected bytes,
// tolerating hex and base64 encodings. Comparison is constant-time on
// the decoded bytes.
func digestMatches(provided string, expected []byte) bool {
	if decoded, err := hex.DecodeString(provided); err == nil {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(provided); err == nil {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(provided); err == nil {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}
