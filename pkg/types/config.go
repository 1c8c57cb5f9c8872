package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// UserID is stamped on records created without one. Zero means 1.
	UserID int64 `json:"user_id" yaml:"user_id,omitempty"`
}

// Supported backend names. BackendAuto probes SQLite once at start-up and
// falls back to the JSONL document store.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"
)

// DefaultUserID is used when neither the record nor the config names a user.
const DefaultUserID int64 = 1

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendAuto:   true,
	BackendSQLite: true,
	BackendJSONL:  true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}

// EffectiveUserID returns the configured user or DefaultUserID.
func (c Config) EffectiveUserID() int64 {
	if c.UserID > 0 {
		return c.UserID
	}
	return DefaultUserID
}
