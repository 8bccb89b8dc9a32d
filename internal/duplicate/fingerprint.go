// Package duplicate identifies repeat submitters and remembers accepted
// submissions per form.
package duplicate

import (
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/formgate/formgate/internal/formsettings"
	"github.com/zeebo/blake3"
)

// fingerprintContext is the BLAKE3 key-derivation context for fingerprint keys.
const fingerprintContext = "formgate 2026 duplicate submission fingerprint v1"

// Fingerprinter hashes submitter identifiers with a deployment secret so
// stored records never hold raw addresses or emails.
type Fingerprinter struct {
	key [32]byte
}

// NewFingerprinter derives the hashing key from secret. An empty secret
// still yields a stable key, which only suits development.
func NewFingerprinter(secret string) *Fingerprinter {
	f := &Fingerprinter{}
	blake3.DeriveKey(fingerprintContext, []byte(secret), f.key[:])
	return f
}

// Fingerprint returns the hex keyed hash of identifier scoped to formID.
func (f *Fingerprinter) Fingerprint(formID, identifier string) string {
	hasher, errKeyed := blake3.NewKeyed(f.key[:])
	if errKeyed != nil {
		panic("duplicate: BLAKE3 keyed hash initialization failed: " + errKeyed.Error())
	}
	_, _ = hasher.Write([]byte(formID))
	_, _ = hasher.Write([]byte{0x1f})
	_, _ = hasher.Write([]byte(identifier))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Submitter is the identity data a strategy can draw from.
type Submitter struct {
	IP      string
	Email   string
	Session string
}

// Identifier builds the strategy's identifier and reports the strategy that
// actually applied. Email and session strategies fall back to ip when their
// value is missing; combined joins every available part.
func Identifier(strategy string, s Submitter) (string, string) {
	ip := "ip:" + s.IP
	switch strategy {
	case formsettings.StrategyEmail:
		if s.Email != "" {
			return "email:" + strings.ToLower(s.Email), formsettings.StrategyEmail
		}
	case formsettings.StrategySession:
		if s.Session != "" {
			return "session:" + s.Session, formsettings.StrategySession
		}
	case formsettings.StrategyCombined:
		parts := []string{ip}
		if s.Email != "" {
			parts = append(parts, "email:"+strings.ToLower(s.Email))
		}
		if s.Session != "" {
			parts = append(parts, "session:"+s.Session)
		}
		return strings.Join(parts, "|"), formsettings.StrategyCombined
	}
	return ip, formsettings.StrategyIP
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ExtractEmail finds the submitter email in a payload. Keys containing
// "email" are preferred; otherwise any email-shaped top-level string is used.
// Keys are visited in sorted order so the result is deterministic.
func ExtractEmail(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var fallback string
	for _, key := range keys {
		value, ok := data[key].(string)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if !emailPattern.MatchString(value) {
			continue
		}
		if strings.Contains(strings.ToLower(key), "email") {
			return value
		}
		if fallback == "" {
			fallback = value
		}
	}
	return fallback
}
