package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formgate/formgate/internal/security"
)

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := ClientIP(req); got != UnknownIP {
		t.Fatalf("no headers: got %q", got)
	}

	req.Header.Set(HeaderRealIP, "10.0.0.9")
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Fatalf("real ip: got %q", got)
	}

	req.Header.Set(HeaderForwardedFor, " 203.0.113.7 , 10.0.0.1, 10.0.0.2")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("forwarded: got %q", got)
	}

	req.Header.Set(HeaderForwardedFor, " ,10.0.0.1")
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Fatalf("empty first forwarded entry should fall back: got %q", got)
	}
}

func TestResolveSessionAndUserAgent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.AddCookie(&http.Cookie{Name: CookieSession, Value: "sess-cookie"})
	id := NewResolver().Resolve(req)
	if id.Session != "sess-cookie" || id.UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected identity %+v", id)
	}

	req.Header.Set(HeaderSessionID, "sess-header")
	if id := NewResolver().Resolve(req); id.Session != "sess-header" {
		t.Fatalf("header session should win, got %q", id.Session)
	}
}

func TestResolveUserOnlyWhenEnabledAndValid(t *testing.T) {
	token, err := security.GenerateToken("secret", 7, "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if id := NewResolver().Resolve(req); id.Authenticated() {
		t.Fatalf("plain resolver must not resolve users")
	}
	id := NewUserResolver("secret").Resolve(req)
	if !id.Authenticated() || *id.UserID != 7 {
		t.Fatalf("expected user 7, got %+v", id)
	}

	req.Header.Set("Authorization", "Bearer garbage")
	if id := NewUserResolver("secret").Resolve(req); id.Authenticated() {
		t.Fatalf("invalid token must resolve as anonymous")
	}

	cookieReq := httptest.NewRequest(http.MethodPost, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: CookieToken, Value: token})
	if id := NewUserResolver("secret").Resolve(cookieReq); !id.Authenticated() {
		t.Fatalf("cookie token not resolved")
	}
}

func TestResolveNilRequest(t *testing.T) {
	if id := NewResolver().Resolve(nil); id.IP != UnknownIP {
		t.Fatalf("nil request ip = %q", id.IP)
	}
}
