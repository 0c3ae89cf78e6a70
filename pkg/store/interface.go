package store

// The four logical keys the session occupies. Everything the client
// persists between runs lives under one of these.
const (
	KeyAuthToken    = "auth-token"
	KeyRefreshToken = "refresh-token"
	KeyUser         = "user-record"
	KeyCompany      = "company-record"
)

// sessionKeys lists every key Clear removes.
var sessionKeys = []string{KeyAuthToken, KeyRefreshToken, KeyUser, KeyCompany}

// SessionStore defines the key/value persistence contract for session state.
// Implementations include the default SQLite store and an in-memory store
// for tests and ephemeral sessions.
//
// Reads never fail: Get returns the caller-supplied default for absent or
// unreadable values. Clear is idempotent; clearing an already-empty store
// is a safe no-op.
type SessionStore interface {
	// Get returns the value for key, or def when the key is absent or the
	// stored value cannot be read.
	Get(key, def string) string

	// Set stores a value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes a key. Removing an absent key is not an error.
	Remove(key string) error

	// Clear removes all four session keys.
	Clear() error

	// Close releases the underlying storage.
	Close() error
}

// Compile-time checks: both implementations satisfy SessionStore.
var _ SessionStore = (*SQLiteStore)(nil)
var _ SessionStore = (*MemoryStore)(nil)
