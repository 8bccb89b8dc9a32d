package formsettings

import "time"

// Duplicate-prevention strategies.
const (
	StrategyIP       = "ip"
	StrategyEmail    = "email"
	StrategySession  = "session"
	StrategyCombined = "combined"
)

// Duplicate-prevention modes.
const (
	ModeTimeBased = "time-based"
	ModeOneTime   = "one-time"
)

// RateLimit limits submissions per IP and form. Durations are in minutes.
type RateLimit struct {
	Enabled        bool   `json:"enabled"`
	MaxSubmissions int    `json:"maxSubmissions"`
	TimeWindow     int    `json:"timeWindow"`
	BlockDuration  int    `json:"blockDuration"`
	Message        string `json:"message"`
}

// Window returns the counting window.
func (r RateLimit) Window() time.Duration { return time.Duration(r.TimeWindow) * time.Minute }

// Block returns the post-violation block, zero when disabled.
func (r RateLimit) Block() time.Duration { return time.Duration(r.BlockDuration) * time.Minute }

// ResponseLimit caps the total number of stored submissions.
type ResponseLimit struct {
	Enabled      bool   `json:"enabled"`
	MaxResponses int64  `json:"maxResponses"`
	Message      string `json:"message"`
}

// DuplicatePrevention rejects repeat submissions from the same submitter.
type DuplicatePrevention struct {
	Enabled       bool   `json:"enabled"`
	Strategy      string `json:"strategy"`
	Mode          string `json:"mode"`
	TimeWindow    int    `json:"timeWindow"`
	Message       string `json:"message"`
	AllowOverride bool   `json:"allowOverride"`
	MaxAttempts   int64  `json:"maxAttempts"`
}

// Window returns the record lifetime for time-based mode, zero for one-time records.
func (d DuplicatePrevention) Window() time.Duration {
	if d.Mode == ModeOneTime {
		return 0
	}
	return time.Duration(d.TimeWindow) * time.Minute
}

// ProfanityFilter configures the word-list content filter.
type ProfanityFilter struct {
	Enabled              bool     `json:"enabled"`
	StrictMode           bool     `json:"strictMode"`
	ReplaceWithAsterisks bool     `json:"replaceWithAsterisks"`
	CustomMessage        string   `json:"customMessage"`
	CustomWords          []string `json:"customWords"`
	WhitelistedWords     []string `json:"whitelistedWords"`
}

// BotProtection toggles bot verification.
type BotProtection struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// NotificationLink is an extra link rendered in notification emails.
type NotificationLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notifications configures the owner notification email.
type Notifications struct {
	Enabled     bool               `json:"enabled"`
	Email       string             `json:"email"`
	Subject     string             `json:"subject"`
	Message     string             `json:"message"`
	CustomLinks []NotificationLink `json:"customLinks"`
}

// API configures the API-key submission channel.
type API struct {
	Enabled                  bool `json:"enabled"`
	AllowExternalSubmissions bool `json:"allowExternalSubmissions"`
}

// PasswordProtection gates the public channel behind a shared password.
type PasswordProtection struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password"`
	Message  string `json:"message"`
}

// Documented defaults. Resolve overlays form settings on copies of these.
var (
	DefaultRateLimit = RateLimit{
		Enabled:        false,
		MaxSubmissions: 5,
		TimeWindow:     10,
		BlockDuration:  60,
		Message:        "Too many submissions. Please try again later.",
	}
	DefaultResponseLimit = ResponseLimit{
		Enabled:      false,
		MaxResponses: 100,
		Message:      "This form is no longer accepting responses.",
	}
	DefaultDuplicatePrevention = DuplicatePrevention{
		Enabled:       false,
		Strategy:      StrategyCombined,
		Mode:          ModeTimeBased,
		TimeWindow:    1440,
		Message:       "You have already submitted this form.",
		AllowOverride: false,
		MaxAttempts:   3,
	}
	DefaultProfanityFilter = ProfanityFilter{
		Enabled:              false,
		StrictMode:           true,
		ReplaceWithAsterisks: false,
		CustomMessage:        "Your submission contains inappropriate content. Please review and resubmit.",
		CustomWords:          []string{},
		WhitelistedWords:     []string{},
	}
	DefaultBotProtection = BotProtection{
		Enabled: false,
		Message: "Bot detected. Access denied.",
	}
	DefaultNotifications = Notifications{
		CustomLinks: []NotificationLink{},
	}
	DefaultAPI                = API{}
	DefaultPasswordProtection = PasswordProtection{
		Message: "This form is password protected.",
	}
)
