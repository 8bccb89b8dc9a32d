package botcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 Safari/605.1.15"

func TestHeuristicVerifier(t *testing.T) {
	cases := []struct {
		name   string
		signal Signal
		bot    bool
	}{
		{"browser", Signal{UserAgent: browserUA, AcceptLanguage: "en-US"}, false},
		{"empty ua", Signal{AcceptLanguage: "en-US"}, true},
		{"curl", Signal{UserAgent: "curl/8.4.0", AcceptLanguage: "*"}, true},
		{"googlebot", Signal{UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1)", AcceptLanguage: "en"}, true},
		{"headless", Signal{UserAgent: "Mozilla/5.0 HeadlessChrome/120.0", AcceptLanguage: "en"}, true},
		{"no language", Signal{UserAgent: browserUA}, true},
		{"server curl", Signal{UserAgent: "curl/8.4.0", ServerToServer: true}, false},
		{"server go client", Signal{UserAgent: "Go-http-client/1.1", ServerToServer: true}, false},
		{"server empty ua", Signal{ServerToServer: true}, false},
		{"server crawler", Signal{UserAgent: "Mozilla/5.0 HeadlessChrome/120.0", ServerToServer: true}, true},
	}
	for _, tc := range cases {
		verdict, err := HeuristicVerifier{}.Verify(context.Background(), tc.signal)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if verdict.IsBot != tc.bot {
			t.Fatalf("%s: IsBot=%v want %v (%s)", tc.name, verdict.IsBot, tc.bot, verdict.Reason)
		}
	}
}

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s Signal
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(Verdict{IsBot: s.IP == "198.51.100.1"})
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL, time.Second, 0)
	verdict, err := v.Verify(context.Background(), Signal{IP: "198.51.100.1"})
	if err != nil || !verdict.IsBot {
		t.Fatalf("expected bot verdict, got %+v %v", verdict, err)
	}
	verdict, err = v.Verify(context.Background(), Signal{IP: "203.0.113.5"})
	if err != nil || verdict.IsBot {
		t.Fatalf("expected human verdict, got %+v %v", verdict, err)
	}
}

func TestRemoteVerifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewRemoteVerifier(srv.URL, time.Second, 0).Verify(context.Background(), Signal{}); err == nil {
		t.Fatalf("expected status error")
	}

	throttled := NewRemoteVerifier(srv.URL, time.Second, 0.001)
	_, _ = throttled.Verify(context.Background(), Signal{})
	if _, err := throttled.Verify(context.Background(), Signal{}); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestNewSelectsVerifier(t *testing.T) {
	if _, ok := New("", 0).(HeuristicVerifier); !ok {
		t.Fatalf("empty endpoint should use heuristics")
	}
	if _, ok := New("http://verifier.internal/check", 0).(*RemoteVerifier); !ok {
		t.Fatalf("endpoint should use remote verifier")
	}
}
