// internal/config/model.go
//
// Typed configuration model for the sign-in service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                     – dotenv values,
//   • `conf/signin.yaml`                       – primary static file,
//   • `SIGNIN_`-prefixed environment overrides – highest precedence.
//
// Secret-bearing fields (`CSRF.Key`, `Database.DSN`) may hold a
// `vault:<mount>/<path>#<key>` reference; the loader resolves it before
// validation so the model only ever stores plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths.Root` field is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
	TrustProxy bool   `koanf:"trust_proxy"` // honour X-Forwarded-For / X-Real-Ip
}

//
// Auth section
//

// Auth describes the remote auth endpoint and the page's outbound links.
//
// Endpoint is a base URL; the client appends "/login".
type Auth struct {
	Endpoint          string        `koanf:"endpoint"            validate:"required,url"`
	Timeout           time.Duration `koanf:"timeout"             validate:"gte=0"`
	SuccessRedirect   string        `koanf:"success_redirect"`
	ForgotPasswordURL string        `koanf:"forgot_password_url"`
	SignupURL         string        `koanf:"signup_url"`
}

//
// Session section
//

// Session bounds how many sign-in forms are kept in memory and for how long.
type Session struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"       validate:"gt=0"`
	MaxEntries    int           `koanf:"max_entries"    validate:"gte=0"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gt=0"`
}

//
// CSRF section
//

// CSRF holds the HMAC key for form tokens.  Empty means "generate an
// ephemeral key at startup".
type CSRF struct {
	Key string `koanf:"key"`
}

//
// Database section
//

// Database enables the sign-in attempt audit when DSN is set.
type Database struct {
	DSN string `koanf:"dsn"`
}

//
// GeoIP section
//

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

//
// Log section
//

type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section
//

// Paths holds optional override directories plus the runtime root.
type Paths struct {
	Root      string `koanf:"-"` // SIGNIN_ROOT or discovered parent
	Forms     string `koanf:"forms"`
	Templates string `koanf:"templates"`
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Auth     Auth     `koanf:"auth"`
	Session  Session  `koanf:"session"`
	CSRF     CSRF     `koanf:"csrf"`
	Database Database `koanf:"database"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"paths"`
}

// applyDefaults fills zero values that have a sensible default.
func (c *Config) applyDefaults() {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = 15 * time.Second
	}
	if c.Auth.ForgotPasswordURL == "" {
		c.Auth.ForgotPasswordURL = "/forgot-password"
	}
	if c.Auth.SignupURL == "" {
		c.Auth.SignupURL = "/signup"
	}
	if c.Session.IdleTTL == 0 {
		c.Session.IdleTTL = 30 * time.Minute
	}
	if c.Session.MaxEntries == 0 {
		c.Session.MaxEntries = 10000
	}
	if c.Session.EvictInterval == 0 {
		c.Session.EvictInterval = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
