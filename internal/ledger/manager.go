package ledger

import (
	"context"
	"sync"

	"github.com/quantmind-br/releasesync/internal/utils"
)

// Manager owns the in-memory ledger and persists every mutation before returning.
// All reads and writes go through its mutex, so concurrent asset tasks never lose updates.
type Manager struct {
	path     string
	state    *State
	mu       sync.RWMutex
	logger   *utils.Logger
	readOnly bool
}

type ManagerOptions struct {
	Path     string
	Logger   *utils.Logger
	ReadOnly bool
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		path:     opts.Path,
		logger:   opts.Logger,
		readOnly: opts.ReadOnly,
		state:    NewState(),
	}
}

func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := Load(m.path)
	if err != nil {
		return err
	}
	m.state = state

	if m.logger != nil {
		m.logger.Debug().
			Int("entries", len(state.Downloaded)).
			Str("branch", state.BranchURL()).
			Str("path", m.path).
			Msg("Ledger loaded")
	}
	return nil
}

func (m *Manager) IsDownloaded(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.IsDownloaded(url)
}

func (m *Manager) BranchURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.BranchURL()
}

// Record appends an entry and rewrites the ledger file.
// On a failed write the entry is dropped again so memory matches disk.
func (m *Manager) Record(ctx context.Context, entry Entry) error {
	if m.readOnly {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Version == nil {
		entry.Version = []string{}
	}

	m.state.Downloaded = append(m.state.Downloaded, entry)
	if err := Save(m.path, m.state); err != nil {
		m.state.Downloaded = m.state.Downloaded[:len(m.state.Downloaded)-1]
		return err
	}

	if m.logger != nil {
		m.logger.Debug().
			Str("url", entry.URL).
			Int("entries", len(m.state.Downloaded)).
			Msg("Ledger updated")
	}
	return nil
}

// RecordBranch stores the branch snapshot URL and rewrites the ledger file
func (m *Manager) RecordBranch(ctx context.Context, url string) error {
	if m.readOnly {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.state.Branch
	m.state.Branch = &url
	if err := Save(m.path, m.state); err != nil {
		m.state.Branch = previous
		return err
	}

	if m.logger != nil {
		m.logger.Debug().Str("branch", url).Msg("Ledger branch updated")
	}
	return nil
}

// Entries returns a copy of the recorded entries
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.state.Downloaded))
	copy(out, m.state.Downloaded)
	return out
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) IsReadOnly() bool {
	return m.readOnly
}
