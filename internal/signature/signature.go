// Package signature implements the webhook signing contract shared by the
// gateway and every destination site. The canonical string is
// "{unix_ms_timestamp}.{raw_json_body}" and the signature is the
// base64-encoded HMAC-SHA256 of that string under the site's secret key.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	internal "github.com/tanawath/sms-payment-gateway/internal"
)

const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
	HeaderRequestID = "X-Request-Id"

	// MaxSkew is how far a request timestamp may drift from the
	// receiver's clock in either direction.
	MaxSkew = 5 * time.Minute
)

// Compute returns the base64 HMAC-SHA256 signature for a body sent at the
// given unix-millisecond timestamp.
func Compute(secret string, timestampMs int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer holds one site's credentials and stamps outbound requests.
type Signer struct {
	APIKey string
	Secret string
}

// SignRequest sets the four auth headers plus Content-Type on req. The body
// must be the exact bytes the request will carry; re-marshalling after
// signing breaks verification.
func (s Signer) SignRequest(req *http.Request, body []byte, now time.Time) {
	ts := now.UnixMilli()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, s.APIKey)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Compute(s.Secret, ts, body))
	req.Header.Set(HeaderRequestID, uuid.NewString())
}

// Verify checks the timestamp window and recomputes the signature over the
// raw request body. Comparison is constant-time. The returned errors map to
// 401 on the receiving side.
func Verify(secret, timestampHeader, signatureHeader string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return internal.ErrTimestampSkew.WithDetails("missing or malformed timestamp header")
	}

	drift := now.UnixMilli() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > MaxSkew.Milliseconds() {
		return internal.ErrTimestampSkew
	}

	expected := Compute(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return internal.ErrSignatureInvalid
	}
	return nil
}

// VerifyAPIKey compares the presented key against the expected one without
// leaking length or prefix information.
func VerifyAPIKey(expected, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
