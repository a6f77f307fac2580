package checkpoint

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// encodeState writes the gob-encoded state through an LZ4 frame. The
// amplitude payload carries long runs of near-zero float64 values,
// which the frame compressor shrinks well.
func encodeState(w io.Writer, state *State) error {
	zw := lz4.NewWriter(w)

	err := gob.NewEncoder(zw).Encode(state)
	if err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush lz4 frame: %w", err)
	}

	return nil
}

// decodeState reads a state previously written by encodeState.
func decodeState(r io.Reader, state *State) error {
	err := gob.NewDecoder(lz4.NewReader(r)).Decode(state)
	if err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}

	return nil
}
