package store

import (
	"context"
	"errors"

	"github.com/vovakirdan/chatr/internal/settings"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("settings not found")

// Backend names accepted by the settings_backend option.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Snapshot is everything persisted between sessions: global fallbacks and the
// channel list in order. Message history is never stored.
type Snapshot struct {
	Globals  settings.Globals
	Channels []settings.ChannelSettings
}

// Loader reads the last saved snapshot.
type Loader interface {
	// Load returns ErrNotFound when no settings exist yet.
	Load(ctx context.Context) (Snapshot, error)
}

// Saver persists a snapshot, replacing whatever was stored before.
type Saver interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Store combines loading and saving with resource cleanup.
type Store interface {
	Loader
	Saver
	Close() error
}
