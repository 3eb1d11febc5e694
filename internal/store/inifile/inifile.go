// Package inifile keeps settings in a plain text file: one [GLOBAL] section
// followed by a [CHANNEL] section per channel, each holding "Key = Value" lines.
package inifile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"

	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
)

const (
	sectionGlobal  = "GLOBAL"
	sectionChannel = "CHANNEL"

	keyChannelName  = "ChannelName"
	keyDisplayName  = "DisplayName"
	keyConnectionIP = "ConnectionIP"
	keyMulticastIP  = "MulticastIP"
	keyPort         = "Port"
	keyPassword     = "Password"
)

// Passwords are free text, so '#' and ';' must survive a round trip.
var loadOptions = ini.LoadOptions{
	AllowNonUniqueSections: true,
	IgnoreInlineComment:    true,
}

// FileStore implements store.Store on top of a single settings file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// New returns a store for path. The file is only touched by Load and Save.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load parses the settings file. A missing file yields store.ErrNotFound.
func (s *FileStore) Load(_ context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.Snapshot{}, store.ErrNotFound
		}
		return store.Snapshot{}, fmt.Errorf("read settings: %w", err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("parse settings: %w", err)
	}
	return decode(f), nil
}

// Save rewrites the whole file through a temporary sibling so a crash never
// leaves a half written file behind.
func (s *FileStore) Save(_ context.Context, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := encode(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".chatr-*")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}

func decode(f *ini.File) store.Snapshot {
	var snap store.Snapshot

	if sec, err := f.GetSection(sectionGlobal); err == nil {
		snap.Globals.DisplayName = settings.Normalize(sec.Key(keyDisplayName).String())
		snap.Globals.ConnectionIP = sec.Key(keyConnectionIP).String()
	}

	sections, err := f.SectionsByName(sectionChannel)
	if err != nil {
		return snap
	}
	for _, sec := range sections {
		port := sec.Key(keyPort).MustInt(settings.DefaultPort)
		snap.Channels = append(snap.Channels, settings.New(
			sec.Key(keyChannelName).String(),
			sec.Key(keyDisplayName).String(),
			sec.Key(keyConnectionIP).String(),
			sec.Key(keyMulticastIP).String(),
			port,
			sec.Key(keyPassword).String(),
		))
	}
	return snap
}

func encode(snap store.Snapshot) (*ini.File, error) {
	f := ini.Empty(loadOptions)

	global, err := f.NewSection(sectionGlobal)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	if err := setKeys(global, [][2]string{
		{keyDisplayName, snap.Globals.DisplayName},
		{keyConnectionIP, snap.Globals.ConnectionIP},
	}); err != nil {
		return nil, err
	}

	for _, ch := range snap.Channels {
		sec, err := f.NewSection(sectionChannel)
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		if err := setKeys(sec, [][2]string{
			{keyChannelName, ch.ChannelName},
			{keyDisplayName, ch.DisplayName},
			{keyConnectionIP, ch.ConnectionIP},
			{keyMulticastIP, ch.MulticastIP},
			{keyPort, fmt.Sprint(ch.Port)},
			{keyPassword, ch.Password},
		}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setKeys(sec *ini.Section, pairs [][2]string) error {
	for _, kv := range pairs {
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return fmt.Errorf("encode %s.%s: %w", sec.Name(), kv[0], err)
		}
	}
	return nil
}
