package checkpoint

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	original := &State{
		Fingerprint: "deadbeefdeadbeef",
		Cycle:       7,
		Pairs: []PairState{
			{I: 0, J: 0, Rows: 1, Cols: 1, Data: []float64{0.1}},
			{I: 0, J: 1, Rows: 2, Cols: 2, Data: []float64{1, 2, 3, 4}},
		},
	}

	var buf bytes.Buffer

	require.NoError(t, encodeState(&buf, original))

	var decoded State

	require.NoError(t, decodeState(&buf, &decoded))

	assert.Equal(t, original.Fingerprint, decoded.Fingerprint)
	assert.Equal(t, original.Cycle, decoded.Cycle)
	assert.Equal(t, original.Pairs, decoded.Pairs)
}

func TestCodec_DecodeError(t *testing.T) {
	t.Parallel()

	var decoded State

	err := decodeState(strings.NewReader("not an lz4 frame"), &decoded)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gob decode")
}
