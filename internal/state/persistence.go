// Package state persists the agent's positions, params and balance so a
// restarted bot resumes where it stopped.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// Version is written into every snapshot
const Version = "1"

// DefaultMaxAge is how old a snapshot may be before Load ignores it
const DefaultMaxAge = 7 * 24 * time.Hour

// SymbolState is the recoverable state of one symbol
type SymbolState struct {
	Open       bool            `json:"open"`
	EntryPrice float64         `json:"entry_price,omitempty"`
	Quantity   float64         `json:"quantity,omitempty"`
	EntryTime  time.Time       `json:"entry_time,omitempty"`
	Params     strategy.Params `json:"params"`
}

// Position converts s back into a strategy position
func (s SymbolState) Position() strategy.Position {
	if !s.Open {
		return strategy.Position{State: strategy.StateFlat}
	}
	return strategy.Position{
		State:      strategy.StateLong,
		EntryPrice: s.EntryPrice,
		Quantity:   s.Quantity,
		EntryTime:  s.EntryTime,
	}
}

// Snapshot is the complete recoverable state of the agent
type Snapshot struct {
	Version     string                 `json:"version"`
	LastUpdated time.Time              `json:"last_updated"`
	Balance     float64                `json:"balance"`
	Symbols     map[string]SymbolState `json:"symbols"`
}

// Store saves snapshots to a JSON file. Writes go to a temporary file that
// is renamed over the previous one, which is kept as a backup.
type Store struct {
	path   string
	maxAge time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	lastSave time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithMaxAge overrides DefaultMaxAge. Zero accepts any age.
func WithMaxAge(d time.Duration) StoreOption {
	return func(s *Store) { s.maxAge = d }
}

// WithClock injects the clock used for timestamps and staleness
func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store for path
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:   path,
		maxAge: DefaultMaxAge,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path is the state file
func (s *Store) Path() string { return s.path }

// BackupPath is where the previous state file is kept
func (s *Store) BackupPath() string {
	ext := filepath.Ext(s.path)
	return s.path[:len(s.path)-len(ext)] + "_backup" + ext
}

// Load reads the state file. A missing, stale or invalid snapshot returns
// nil so the agent starts clean; only read and parse failures are errors.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no state file found, starting with clean state", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if err := s.validate(&snap); err != nil {
		s.logger.Warn("ignoring saved state", zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}

	s.logger.Info("state loaded",
		zap.String("path", s.path),
		zap.Time("last_updated", snap.LastUpdated),
		zap.Int("symbols", len(snap.Symbols)))
	return &snap, nil
}

// Save writes snap, stamping its version and update time
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = Version
	snap.LastUpdated = s.clock.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.BackupPath()); err != nil {
			s.logger.Warn("failed to back up state file", zap.Error(err))
		}
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}

	s.lastSave = snap.LastUpdated
	s.logger.Debug("state saved", zap.String("path", s.path))
	return nil
}

// LastSave is the time of the last successful Save
func (s *Store) LastSave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

func (s *Store) validate(snap *Snapshot) error {
	if snap.Version != Version {
		return fmt.Errorf("unsupported state version %q", snap.Version)
	}
	if s.maxAge > 0 && s.clock.Since(snap.LastUpdated) > s.maxAge {
		return fmt.Errorf("state is too old: %s", snap.LastUpdated.Format(time.RFC3339))
	}
	for symbol, st := range snap.Symbols {
		if st.Open && (st.EntryPrice <= 0 || st.Quantity <= 0) {
			return fmt.Errorf("open position for %s needs positive entry price and quantity", symbol)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
