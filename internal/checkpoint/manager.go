package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

// MetadataVersion is the current checkpoint metadata format version.
const MetadataVersion = 1

// Sentinel errors for checkpoint validation and resume.
var (
	ErrNoCheckpoint   = errors.New("checkpoint: no saved state")
	ErrSystemMismatch = errors.New("checkpoint: saved state belongs to a different pair system")
	ErrMalformedState = errors.New("checkpoint: saved state is malformed")
)

// File names inside a checkpoint directory.
const (
	metadataFile = "checkpoint.json"
	payloadFile  = "amplitudes.gob.lz4"
)

// Directory permissions for checkpoints.
const dirPerm = 0o750

// DefaultDir returns the default checkpoint directory (~/.serenity/checkpoints).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".serenity", "checkpoints")
}

// Fingerprint computes a short hash of the pair system structure:
// orbital indices, classes and domain sizes in traversal order.
// Amplitude values do not enter, so a fingerprint stays stable across
// cycles of the same system.
func Fingerprint(pairs []*localcorr.OrbitalPair) string {
	h := sha256.New()

	for _, p := range pairs {
		fmt.Fprintf(h, "%d;%d;%d;%d\n", p.I, p.J, p.Class, p.Domain())
	}

	return hex.EncodeToString(h.Sum(nil)[:8]) // First 8 bytes = 16 hex chars.
}

// Manager reads and writes the checkpoint of one pair system inside a
// directory. Its Snapshot method satisfies the solver's snapshotter
// contract, so a Manager can be handed to the correction directly.
type Manager struct {
	Dir string
}

// NewManager creates a checkpoint manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{Dir: dir}
}

// MetadataPath returns the path to the metadata file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.Dir, metadataFile)
}

// PayloadPath returns the path to the amplitude payload.
func (m *Manager) PayloadPath() string {
	return filepath.Join(m.Dir, payloadFile)
}

// Exists returns true if a checkpoint payload is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.PayloadPath())

	return err == nil
}

// Clear removes the checkpoint files if present.
func (m *Manager) Clear() error {
	for _, path := range []string{m.PayloadPath(), m.MetadataPath()} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove checkpoint file: %w", err)
		}
	}

	return nil
}

// Snapshot serializes the current amplitudes of the given pairs. The
// payload lands first, atomically; the metadata file follows.
func (m *Manager) Snapshot(cycle int, pairs []*localcorr.OrbitalPair) error {
	err := os.MkdirAll(m.Dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	state := &State{
		Fingerprint: Fingerprint(pairs),
		Cycle:       cycle,
		Pairs:       make([]PairState, 0, len(pairs)),
	}

	for _, p := range pairs {
		rows, cols := p.T.Dims()

		ps := PairState{I: p.I, J: p.J, Rows: rows, Cols: cols, Data: make([]float64, 0, rows*cols)}
		for r := range rows {
			for c := range cols {
				ps.Data = append(ps.Data, p.T.At(r, c))
			}
		}

		state.Pairs = append(state.Pairs, ps)
	}

	err = m.writePayload(state)
	if err != nil {
		return err
	}

	return m.writeMetadata(state)
}

// writePayload encodes the state to a temp file in the checkpoint
// directory and renames it over the final path.
func (m *Manager) writePayload(state *State) error {
	tmp, err := os.CreateTemp(m.Dir, payloadFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create payload temp file: %w", err)
	}

	err = encodeState(tmp, state)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("encode checkpoint: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("close payload temp file: %w", err)
	}

	err = os.Rename(tmp.Name(), m.PayloadPath())
	if err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("publish checkpoint: %w", err)
	}

	return nil
}

func (m *Manager) writeMetadata(state *State) error {
	meta := Metadata{
		Version:     MetadataVersion,
		Fingerprint: state.Fingerprint,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Cycle:       state.Cycle,
		Pairs:       len(state.Pairs),
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	writeErr := os.WriteFile(m.MetadataPath(), data, 0o600)
	if writeErr != nil {
		return fmt.Errorf("write metadata: %w", writeErr)
	}

	return nil
}

// LoadMetadata reads the checkpoint metadata without touching the
// amplitude payload.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.MetadataPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}

		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata

	unmarshalErr := json.Unmarshal(data, &meta)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", unmarshalErr)
	}

	return &meta, nil
}

// Load decodes the saved state without applying it.
func (m *Manager) Load() (*State, error) {
	file, err := os.Open(m.PayloadPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}

		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer file.Close()

	var state State

	decodeErr := decodeState(file, &state)
	if decodeErr != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", decodeErr)
	}

	return &state, nil
}

// Validate checks via the metadata that the checkpoint matches the
// given pairs, without decoding the payload.
func (m *Manager) Validate(pairs []*localcorr.OrbitalPair) error {
	meta, err := m.LoadMetadata()
	if err != nil {
		return err
	}

	fingerprint := Fingerprint(pairs)
	if meta.Fingerprint != fingerprint {
		return fmt.Errorf("%w: checkpoint has %s, got %s", ErrSystemMismatch, meta.Fingerprint, fingerprint)
	}

	return nil
}

// Restore loads the saved state and writes its amplitudes back into the
// given pairs, which must be the same system in the same traversal
// order. It returns the cycle the snapshot was taken at.
func (m *Manager) Restore(pairs []*localcorr.OrbitalPair) (int, error) {
	state, err := m.Load()
	if err != nil {
		return 0, err
	}

	if state.Fingerprint != Fingerprint(pairs) {
		return 0, ErrSystemMismatch
	}

	if len(state.Pairs) != len(pairs) {
		return 0, fmt.Errorf("%w: %d stored pairs for %d live ones",
			ErrMalformedState, len(state.Pairs), len(pairs))
	}

	for idx, ps := range state.Pairs {
		if len(ps.Data) != ps.Rows*ps.Cols {
			return 0, fmt.Errorf("%w: pair (%d,%d) carries %d values for a %dx%d block",
				ErrMalformedState, ps.I, ps.J, len(ps.Data), ps.Rows, ps.Cols)
		}

		pairs[idx].T.Copy(mat.NewDense(ps.Rows, ps.Cols, ps.Data))
	}

	return state.Cycle, nil
}
