// Package history records which plugin configurations the host has
// installed, keyed by checksum, so a saved configuration can be told apart
// from a shipped default or a user edit.
package history

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"time"
)

// Kind says where a recorded configuration came from.
type Kind string

// Kinds of configuration.
const (
	KindDefault Kind = "default"
	KindCustom  Kind = "custom"
)

// ErrInvalidKind is returned for a kind other than default or custom.
var ErrInvalidKind = errors.New("history: kind must be default or custom")

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindDefault || k == KindCustom }

// Entry is one recorded configuration.
type Entry struct {
	Checksum string
	// Path is the backup copy of the configuration.
	Path       string
	Kind       Kind
	RecordedAt time.Time
}

// Store is the configuration history.
type Store interface {
	// Record appends an entry.
	Record(ctx context.Context, e Entry) error
	// Lookup returns the most recent entry with the given checksum.
	Lookup(ctx context.Context, checksum string) (Entry, bool, error)
	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Checksum returns the hex MD5 digest of a configuration. The same value is
// used as the HTTP entity tag of the settings file.
func Checksum(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // content fingerprint, not a security boundary
	return hex.EncodeToString(sum[:])
}
