package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// FileName is the ledger file name, placed next to the rule file
const FileName = "config.lock"

// PathFor returns the ledger path for a rule file
func PathFor(ruleFile string) (string, error) {
	abs, err := filepath.Abs(ruleFile)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(abs), FileName), nil
}

// Load reads the ledger at path. A missing file yields an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLedgerCorrupted, path, err)
	}
	state.normalize()
	return &state, nil
}

// Save serializes the whole state and replaces the file at path
func Save(path string, state *State) error {
	state.normalize()

	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
