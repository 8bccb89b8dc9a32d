package formsettings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Resolve overlays a form's policy object on defaults. Keys absent from the
// override keep the default; present keys replace only that leaf. A missing,
// empty or null override returns defaults unchanged. On a malformed override
// the defaults are returned together with the error.
func Resolve[T any](defaults T, override json.RawMessage) (T, error) {
	trimmed := bytes.TrimSpace(override)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return defaults, nil
	}
	out := defaults
	if errUnmarshal := json.Unmarshal(trimmed, &out); errUnmarshal != nil {
		return defaults, fmt.Errorf("formsettings: resolve: %w", errUnmarshal)
	}
	return out, nil
}

// Effective is the fully resolved policy configuration for one request.
type Effective struct {
	Title          string
	Description    string
	SuccessMessage string

	RateLimit           RateLimit
	ResponseLimit       ResponseLimit
	DuplicatePrevention DuplicatePrevention
	ProfanityFilter     ProfanityFilter
	BotProtection       BotProtection
	Notifications       Notifications
	API                 API
	PasswordProtection  PasswordProtection
}

// ResolveAll resolves every policy of s. Policies whose override is malformed
// fall back to their defaults; the first such error is returned so callers can
// log it, and the returned Effective is always usable.
func ResolveAll(s Settings) (Effective, error) {
	var firstErr error
	keep := func(name string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	}

	eff := Effective{
		Title:          strings.TrimSpace(s.Title),
		Description:    s.Description,
		SuccessMessage: s.SuccessMessage,
	}
	if eff.Title == "" {
		eff.Title = strings.TrimSpace(s.PublicTitle)
	}

	var err error
	eff.RateLimit, err = Resolve(DefaultRateLimit, s.RateLimit)
	keep("rateLimit", err)
	eff.ResponseLimit, err = Resolve(DefaultResponseLimit, s.ResponseLimit)
	keep("responseLimit", err)
	eff.DuplicatePrevention, err = Resolve(DefaultDuplicatePrevention, s.DuplicatePrevention)
	keep("duplicatePrevention", err)
	eff.ProfanityFilter, err = Resolve(DefaultProfanityFilter, s.ProfanityFilter)
	keep("profanityFilter", err)
	eff.BotProtection, err = Resolve(DefaultBotProtection, s.BotProtection)
	keep("botProtection", err)
	eff.Notifications, err = Resolve(DefaultNotifications, s.Notifications)
	keep("notifications", err)
	eff.API, err = Resolve(DefaultAPI, s.API)
	keep("api", err)
	eff.PasswordProtection, err = Resolve(DefaultPasswordProtection, s.PasswordProtection)
	keep("passwordProtection", err)

	eff.Normalize()
	return eff, firstErr
}

// Normalize replaces unusable values with defaults: non-positive limits and
// windows count as unset, unknown strategies and modes fall back, and empty
// messages take the default text.
func (e *Effective) Normalize() {
	if e.RateLimit.MaxSubmissions <= 0 {
		e.RateLimit.MaxSubmissions = DefaultRateLimit.MaxSubmissions
	}
	if e.RateLimit.TimeWindow <= 0 {
		e.RateLimit.TimeWindow = DefaultRateLimit.TimeWindow
	}
	if e.RateLimit.BlockDuration < 0 {
		e.RateLimit.BlockDuration = 0
	}
	if strings.TrimSpace(e.RateLimit.Message) == "" {
		e.RateLimit.Message = DefaultRateLimit.Message
	}

	if e.ResponseLimit.MaxResponses <= 0 {
		e.ResponseLimit.MaxResponses = DefaultResponseLimit.MaxResponses
	}
	if strings.TrimSpace(e.ResponseLimit.Message) == "" {
		e.ResponseLimit.Message = DefaultResponseLimit.Message
	}

	dp := &e.DuplicatePrevention
	switch dp.Strategy {
	case StrategyIP, StrategyEmail, StrategySession, StrategyCombined:
	default:
		dp.Strategy = DefaultDuplicatePrevention.Strategy
	}
	switch dp.Mode {
	case ModeTimeBased, ModeOneTime:
	default:
		dp.Mode = DefaultDuplicatePrevention.Mode
	}
	if dp.TimeWindow <= 0 {
		dp.TimeWindow = DefaultDuplicatePrevention.TimeWindow
	}
	if dp.MaxAttempts <= 0 {
		dp.MaxAttempts = DefaultDuplicatePrevention.MaxAttempts
	}
	if strings.TrimSpace(dp.Message) == "" {
		dp.Message = DefaultDuplicatePrevention.Message
	}

	if strings.TrimSpace(e.ProfanityFilter.CustomMessage) == "" {
		e.ProfanityFilter.CustomMessage = DefaultProfanityFilter.CustomMessage
	}
	if strings.TrimSpace(e.BotProtection.Message) == "" {
		e.BotProtection.Message = DefaultBotProtection.Message
	}
	if strings.TrimSpace(e.PasswordProtection.Message) == "" {
		e.PasswordProtection.Message = DefaultPasswordProtection.Message
	}
}
