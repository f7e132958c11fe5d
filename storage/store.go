package storage

// Store is the key/value map shared by every client connection.
//
// Implementations must be safe for concurrent use, and each Set must be
// atomic: a concurrent Get sees either the old or the new value.
type Store interface {
	Set(key, value string)
	Get(key string) (value string, ok bool)
	Len() int

	// Restore replaces the contents of the store with a document produced by
	// Backup.
	Restore(values []byte) error

	// Backup returns the contents of the store as a JSON document.
	Backup() ([]byte, error)
}
