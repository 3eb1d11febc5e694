package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
)

// Schema creates the settings tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS globals (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS channels (
	position      INTEGER PRIMARY KEY,
	channel_name  TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	connection_ip TEXT NOT NULL DEFAULT '',
	multicast_ip  TEXT NOT NULL,
	port          INTEGER NOT NULL,
	password      TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	globalDisplayName  = "display_name"
	globalConnectionIP = "connection_ip"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and makes sure the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup opens the database and runs setup before the first ping.
// Tests use it with ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" needs it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the settings tables.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the globals and the channels in their saved order.
// An empty database yields store.ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	globals, err := s.loadGlobals(ctx)
	if err != nil {
		return snap, err
	}
	channels, err := s.loadChannels(ctx)
	if err != nil {
		return snap, err
	}
	if len(globals) == 0 && len(channels) == 0 {
		return snap, store.ErrNotFound
	}

	snap.Globals = settings.Globals{
		DisplayName:  globals[globalDisplayName],
		ConnectionIP: globals[globalConnectionIP],
	}
	snap.Channels = channels
	return snap, nil
}

// Save replaces everything stored with snap in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM globals`); err != nil {
		return fmt.Errorf("clear globals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channels`); err != nil {
		return fmt.Errorf("clear channels: %w", err)
	}

	query := `INSERT INTO globals (key, value) VALUES (?, ?)`
	for key, value := range map[string]string{
		globalDisplayName:  snap.Globals.DisplayName,
		globalConnectionIP: snap.Globals.ConnectionIP,
	} {
		if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
			return fmt.Errorf("insert global %s: %w", key, err)
		}
	}

	query = `
		INSERT INTO channels (position, channel_name, display_name, connection_ip, multicast_ip, port, password)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, ch := range snap.Channels {
		_, err := tx.ExecContext(ctx, query,
			i, ch.ChannelName, ch.DisplayName, ch.ConnectionIP, ch.MulticastIP, ch.Port, ch.Password)
		if err != nil {
			return fmt.Errorf("insert channel %s: %w", ch.ChannelName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadGlobals(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM globals`)
	if err != nil {
		return nil, fmt.Errorf("query globals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan global: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate globals: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) loadChannels(ctx context.Context) ([]settings.ChannelSettings, error) {
	query := `
		SELECT channel_name, display_name, connection_ip, multicast_ip, port, password
		FROM channels
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []settings.ChannelSettings
	for rows.Next() {
		var ch settings.ChannelSettings
		if err := rows.Scan(
			&ch.ChannelName,
			&ch.DisplayName,
			&ch.ConnectionIP,
			&ch.MulticastIP,
			&ch.Port,
			&ch.Password,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return out, nil
}
