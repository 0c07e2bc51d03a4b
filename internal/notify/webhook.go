package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/resilience"
)

// Signature headers sent with every webhook request. The signature is an
// HMAC-SHA256 over "<timestamp>.<body>" so receivers can reject stale
// replays.
const (
	HeaderSignature = "X-Comanda-Signature"
	HeaderTimestamp = "X-Comanda-Timestamp"
	HeaderEventID   = "X-Comanda-Event"
)

// WebhookSender posts signed order events to a configured endpoint.
// AllowPrivate disables the SSRF guard for local development. When a Breaker
// is set, deliveries are refused while the endpoint is melting down and asynq
// retries them later.
type WebhookSender struct {
	URL          string
	Secret       string
	Client       *http.Client
	Breaker      *resilience.Breaker
	Now          func() time.Time
	AllowPrivate bool
}

// HTTPClient builds the outbound client used for webhook deliveries.
func HTTPClient(timeoutMillis int, insecureSkipVerify bool) *http.Client {
	if timeoutMillis <= 0 {
		timeoutMillis = 5000
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMillis) * time.Millisecond,
		Transport: transport,
	}
}

// Send delivers one signed event. Non-2xx responses are errors so asynq
// retries with its backoff.
func (s *WebhookSender) Send(ctx context.Context, eventID string, body []byte) error {
	if s == nil || strings.TrimSpace(s.URL) == "" {
		return nil
	}
	if err := s.validateURL(s.URL); err != nil {
		return err
	}
	if s.Breaker != nil && !s.Breaker.Allow(ctx) {
		observeAttempt("rejected", 0)
		return resilience.ErrOpenCircuit
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	client := s.Client
	if client == nil {
		client = HTTPClient(5000, false)
	}

	start := now()
	ts := strconv.FormatInt(start.Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "comanda-webhooks/1.0")
	req.Header.Set(HeaderEventID, eventID)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(s.Secret, ts, body))

	resp, err := client.Do(req)
	if err != nil {
		s.report(ctx, false)
		observeAttempt("error", time.Since(start))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.report(ctx, false)
		observeAttempt("failed", time.Since(start))
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	s.report(ctx, true)
	observeAttempt("delivered", time.Since(start))
	zerolog.Ctx(ctx).Debug().Str("event_id", eventID).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}

// Sign computes the hex HMAC-SHA256 of "<ts>.<body>" with the shared secret.
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature in constant time.
func VerifySignature(secret, ts string, body []byte, signature string) bool {
	expected := Sign(secret, ts, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *WebhookSender) report(ctx context.Context, success bool) {
	if s.Breaker != nil {
		s.Breaker.Report(ctx, success)
	}
}

func observeAttempt(result string, elapsed time.Duration) {
	if obs.NotifyDeliveriesTotal != nil {
		obs.NotifyDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.NotifyAttemptLatency != nil {
		obs.NotifyAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(elapsed))
	}
}

func (s *WebhookSender) validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("webhook url must be http or https")
	}
	if u.Host == "" {
		return errors.New("webhook url missing host")
	}
	if s.AllowPrivate {
		return nil
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()) {
		return errors.New("webhook url resolves to a private address")
	}
	return nil
}
