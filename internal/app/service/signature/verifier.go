// Package signature authenticates provider webhooks.
//
// The header has the form "ts=<unix seconds>;h1=<hex>" and may carry several
// h1 values while the provider rotates secrets. The signed message is
// "<ts>:<raw body>" under HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
)

const (
	// HeaderName is where the provider sends the signature.
	HeaderName = "Paddle-Signature"
	// LegacyHeaderName is accepted when HeaderName is absent.
	LegacyHeaderName = "Signature"

	DefaultTolerance = 300 * time.Second
)

type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       tool.Clock
}

func NewVerifier(secret string, tolerance time.Duration, now tool.Clock) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if now == nil {
		now = tool.UTCNow
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: now}
}

func New(cfg *config.Config) *Verifier {
	return NewVerifier(cfg.Paddle.WebhookSecret, cfg.Paddle.SignatureTolerance, tool.UTCNow)
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrAuthentication, fmt.Sprintf(format, args...))
}

// Verify checks header against the exact body bytes. It must run before the
// body is parsed.
func (v *Verifier) Verify(header string, body []byte) error {
	if len(v.secret) == 0 {
		return reject("webhook secret not configured")
	}
	ts, hashes, err := parseHeader(header)
	if err != nil {
		return err
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return reject("timestamp outside tolerance")
	}

	expected := sign(v.secret, ts, body)
	for _, h := range hashes {
		got, err := hex.DecodeString(h)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return reject("signature mismatch")
}

func parseHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, reject("missing signature header")
	}
	var (
		ts     int64
		hasTS  bool
		hashes []string
	)
	for _, part := range strings.Split(header, ";") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, reject("malformed signature header")
		}
		switch k {
		case "ts":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil || hasTS {
				return 0, nil, reject("malformed signature timestamp")
			}
			ts, hasTS = n, true
		case "h1":
			if val != "" {
				hashes = append(hashes, val)
			}
		}
	}
	if !hasTS || len(hashes) == 0 {
		return 0, nil, reject("malformed signature header")
	}
	return ts, hashes, nil
}

func sign(secret []byte, ts int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{':'})
	mac.Write(body)
	return mac.Sum(nil)
}

// Header builds a valid signature header. Used by tests and local tooling.
func Header(secret string, ts time.Time, body []byte) string {
	unix := ts.Unix()
	return fmt.Sprintf("ts=%d;h1=%s", unix, hex.EncodeToString(sign([]byte(secret), unix, body)))
}

var Module = fx.Options(
	fx.Provide(New),
)
