// Package botcheck decides whether a submission request comes from automation.
package botcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Signal is the request data a verifier inspects. ServerToServer marks
// callers on the API key channel, where plain HTTP clients are expected.
type Signal struct {
	IP             string `json:"ip"`
	UserAgent      string `json:"userAgent"`
	AcceptLanguage string `json:"acceptLanguage"`
	ServerToServer bool   `json:"serverToServer,omitempty"`
}

// Verdict is a verifier decision.
type Verdict struct {
	IsBot  bool   `json:"isBot"`
	Reason string `json:"reason,omitempty"`
}

// Verifier classifies a request.
type Verifier interface {
	Verify(ctx context.Context, s Signal) (Verdict, error)
}

// ErrThrottled is returned when the remote verifier is over its call budget.
var ErrThrottled = errors.New("botcheck: remote verifier throttled")

var (
	automationAgent = regexp.MustCompile(`(?i)(bot\b|crawler|spider|scrapy|headless|phantomjs|selenium|puppeteer|playwright)`)
	httpClientAgent = regexp.MustCompile(`(?i)(curl/|wget/|python-requests|python-urllib|go-http-client|java/|okhttp|libwww-perl|httpclient)`)
)

// HeuristicVerifier flags requests by user agent and missing browser headers.
// Server-to-server signals are only checked for crawler and browser
// automation agents.
type HeuristicVerifier struct{}

// Verify never returns an error.
func (HeuristicVerifier) Verify(_ context.Context, s Signal) (Verdict, error) {
	ua := strings.TrimSpace(s.UserAgent)
	if automationAgent.MatchString(ua) {
		return Verdict{IsBot: true, Reason: "automation user agent"}, nil
	}
	if s.ServerToServer {
		return Verdict{}, nil
	}
	switch {
	case ua == "":
		return Verdict{IsBot: true, Reason: "missing user agent"}, nil
	case httpClientAgent.MatchString(ua):
		return Verdict{IsBot: true, Reason: "automation user agent"}, nil
	case strings.TrimSpace(s.AcceptLanguage) == "":
		return Verdict{IsBot: true, Reason: "missing accept-language"}, nil
	}
	return Verdict{}, nil
}

// RemoteVerifier posts the signal to a verification endpoint that answers
// with a JSON Verdict.
type RemoteVerifier struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewRemoteVerifier builds a verifier for endpoint. callsPerSecond <= 0
// disables local throttling.
func NewRemoteVerifier(endpoint string, timeout time.Duration, callsPerSecond float64) *RemoteVerifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	v := &RemoteVerifier{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
	if callsPerSecond > 0 {
		burst := int(callsPerSecond)
		if burst < 1 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
	}
	return v
}

// Verify calls the endpoint. Transport failures and non-2xx answers are errors.
func (v *RemoteVerifier) Verify(ctx context.Context, s Signal) (Verdict, error) {
	if v == nil || v.endpoint == "" {
		return Verdict{}, errors.New("botcheck: remote verifier not configured")
	}
	if v.limiter != nil && !v.limiter.Allow() {
		return Verdict{}, ErrThrottled
	}
	body, errMarshal := json.Marshal(s)
	if errMarshal != nil {
		return Verdict{}, fmt.Errorf("botcheck: encode signal: %w", errMarshal)
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if errReq != nil {
		return Verdict{}, fmt.Errorf("botcheck: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, errDo := v.client.Do(req)
	if errDo != nil {
		return Verdict{}, fmt.Errorf("botcheck: call verifier: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("botcheck: verifier status %d", resp.StatusCode)
	}
	var verdict Verdict
	if errDecode := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&verdict); errDecode != nil {
		return Verdict{}, fmt.Errorf("botcheck: decode verdict: %w", errDecode)
	}
	return verdict, nil
}

// New returns the remote verifier when endpoint is set, else the heuristics.
func New(endpoint string, timeout time.Duration) Verifier {
	if strings.TrimSpace(endpoint) == "" {
		return HeuristicVerifier{}
	}
	return NewRemoteVerifier(endpoint, timeout, 50)
}
