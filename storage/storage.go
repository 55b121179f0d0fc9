package storage

// SessionPrefix namespaces keys that only live as long as a login session.
// Anything stored under it is wiped on logout and before a new login.
const SessionPrefix = "session."

// KeyValue is durable key-value storage that survives process restarts.
type KeyValue interface {
	// Get returns the value for key and whether it exists
	Get(key string) (string, bool, error)

	// SetMany writes all values or none of them
	SetMany(values map[string]string) error

	// Delete removes the given keys; missing keys are ignored
	Delete(keys ...string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(prefix string) error

	// Keys lists the stored keys
	Keys() ([]string, error)
}

// SessionKey returns name inside the session-scoped namespace.
func SessionKey(name string) string {
	return SessionPrefix + name
}
