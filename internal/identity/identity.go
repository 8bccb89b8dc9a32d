// Package identity derives the caller identity used by submission policies.
package identity

import (
	"net/http"
	"strings"

	"github.com/formgate/formgate/internal/security"
)

// UnknownIP is used when no forwarded address header is present.
const UnknownIP = "unknown"

// Header and cookie names read by the resolver.
const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
	HeaderSessionID    = "X-Session-ID"
	CookieSession      = "formgate_session"
	CookieToken        = "formgate_token"
)

// Identity describes who is submitting.
type Identity struct {
	IP             string
	UserID         *uint64
	Session        string
	UserAgent      string
	AcceptLanguage string
}

// Authenticated reports whether a user token was verified.
func (id Identity) Authenticated() bool { return id.UserID != nil }

// Resolver builds identities from requests.
type Resolver struct {
	jwtSecret    string
	resolveUsers bool
}

// NewResolver returns a resolver that only reads network and session data.
func NewResolver() *Resolver { return &Resolver{} }

// NewUserResolver returns a resolver that also verifies submitter JWTs.
func NewUserResolver(jwtSecret string) *Resolver {
	return &Resolver{jwtSecret: jwtSecret, resolveUsers: strings.TrimSpace(jwtSecret) != ""}
}

// Resolve never fails; missing data yields empty fields and UnknownIP.
func (r *Resolver) Resolve(req *http.Request) Identity {
	id := Identity{IP: UnknownIP}
	if req == nil {
		return id
	}
	id.IP = ClientIP(req)
	id.UserAgent = strings.TrimSpace(req.UserAgent())
	id.AcceptLanguage = strings.TrimSpace(req.Header.Get("Accept-Language"))
	id.Session = sessionFromRequest(req)
	if r != nil && r.resolveUsers {
		id.UserID = r.userFromRequest(req)
	}
	return id
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then UnknownIP.
func ClientIP(req *http.Request) string {
	if forwarded := req.Header.Get(HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(req.Header.Get(HeaderRealIP)); real != "" {
		return real
	}
	return UnknownIP
}

func sessionFromRequest(req *http.Request) string {
	if v := strings.TrimSpace(req.Header.Get(HeaderSessionID)); v != "" {
		return v
	}
	if c, err := req.Cookie(CookieSession); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (r *Resolver) userFromRequest(req *http.Request) *uint64 {
	token := ""
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		if trimmed := strings.TrimPrefix(authHeader, "Bearer "); trimmed != authHeader {
			token = strings.TrimSpace(trimmed)
		}
	}
	if token == "" {
		if c, err := req.Cookie(CookieToken); err == nil {
			token = strings.TrimSpace(c.Value)
		}
	}
	if token == "" {
		return nil
	}
	claims, err := security.ParseToken(r.jwtSecret, token)
	if err != nil {
		return nil
	}
	userID := claims.UserID
	return &userID
}
