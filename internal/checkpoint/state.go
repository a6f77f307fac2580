// Package checkpoint persists solver amplitudes between runs so an
// interrupted correction can resume from its last completed cycle.
//
// A checkpoint is a directory holding a human-readable metadata file
// next to an LZ4-framed gob payload with the amplitude blocks. The
// payload is written atomically via a temp file and rename, so a crash
// mid-save leaves the previous checkpoint intact.
package checkpoint

// PairState is the serialized amplitude block of one orbital pair.
type PairState struct {
	I    int
	J    int
	Rows int
	Cols int
	Data []float64
}

// State is the on-disk snapshot of a correction in progress. The
// fingerprint ties the amplitudes to the pair system they belong to.
type State struct {
	Fingerprint string
	Cycle       int
	Pairs       []PairState
}

// Metadata summarizes a checkpoint for validation and inspection
// without decoding the amplitude payload.
type Metadata struct {
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
	Cycle       int    `json:"cycle"`
	Pairs       int    `json:"pairs"`
}
