package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names Slack signs requests with
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// MaxSignatureAge bounds how old a signed request may be before it is treated as a replay
const MaxSignatureAge = 5 * time.Minute

// ErrInvalidSignature is returned when a request fails signature verification
var ErrInvalidSignature = errors.New("invalid slack signature")

// VerifySignature checks the v0 request signature over "v0:{timestamp}:{body}"
func VerifySignature(secret string, header http.Header, body []byte, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("signing secret is required: %w", ErrInvalidSignature)
	}
	tsRaw := strings.TrimSpace(header.Get(HeaderTimestamp))
	sig := strings.TrimSpace(header.Get(HeaderSignature))
	if tsRaw == "" || sig == "" {
		return fmt.Errorf("missing signature headers: %w", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", tsRaw, ErrInvalidSignature)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > MaxSignatureAge || age < -MaxSignatureAge {
		return fmt.Errorf("stale timestamp: %w", ErrInvalidSignature)
	}

	expected := Sign(secret, tsRaw, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the v0 signature Slack sends in X-Slack-Signature
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
