// Package sysio reads and writes serialized pair systems. The YAML
// format is the boundary between this solver and external integral
// producers: a document carries the occupied count, the Fock matrix,
// the pair list with exchange and denominator blocks, and optional
// domain projections for couplings between unequal domains.
package sysio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

// Sentinel errors for system file parsing.
var (
	ErrMalformedSystem = errors.New("sysio: malformed system document")
	ErrFockShape       = errors.New("sysio: fock length matches neither a lower triangle nor a full square")
	ErrRaggedMatrix    = errors.New("sysio: matrix rows differ in length")
	ErrProjectionKey   = errors.New("sysio: projection key must name two stored orbital indices")
)

// filePerm is the permission for written system files.
const filePerm = 0o644

// pairIndexLen is the length of a serialized pair key, [i, j].
const pairIndexLen = 2

type systemDoc struct {
	Occupied    int             `yaml:"occupied"`
	Fock        []float64       `yaml:"fock"`
	Pairs       []pairDoc       `yaml:"pairs"`
	Projections []projectionDoc `yaml:"projections,omitempty"`
}

type pairDoc struct {
	I                     int         `yaml:"i"`
	J                     int         `yaml:"j"`
	Class                 string      `yaml:"class"`
	K                     [][]float64 `yaml:"k"`
	Uncoupled             [][]float64 `yaml:"uncoupled"`
	TruncationError       float64     `yaml:"truncation_error,omitempty"`
	DipoleEstimate        float64     `yaml:"dipole_estimate,omitempty"`
	SemicanonicalEstimate float64     `yaml:"semicanonical_estimate,omitempty"`
}

type projectionDoc struct {
	From []int       `yaml:"from"`
	To   []int       `yaml:"to"`
	S    [][]float64 `yaml:"s"`
}

// Load reads a system file and assembles a controller with its coupling
// graph built from the document's projection table.
func Load(path string, thresholds localcorr.Thresholds) (*localcorr.Controller, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open system file: %w", err)
	}
	defer file.Close()

	return Parse(file, thresholds)
}

// Parse assembles a controller from a YAML system document. Unknown
// document fields are rejected.
func Parse(r io.Reader, thresholds localcorr.Thresholds) (*localcorr.Controller, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc systemDoc

	err := dec.Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSystem, err)
	}

	fock, err := parseFock(doc.Occupied, doc.Fock)
	if err != nil {
		return nil, err
	}

	set := localcorr.NewPairSet()

	for _, pd := range doc.Pairs {
		pair, buildErr := buildPair(pd)
		if buildErr != nil {
			return nil, buildErr
		}

		_, addErr := set.Add(pair)
		if addErr != nil {
			return nil, fmt.Errorf("pair (%d,%d): %w", pd.I, pd.J, addErr)
		}
	}

	ctrl, err := localcorr.NewController(set, fock, thresholds)
	if err != nil {
		return nil, err
	}

	overlap, err := buildOverlap(set, doc.Projections)
	if err != nil {
		return nil, err
	}

	err = ctrl.BuildCouplingGraph(overlap)
	if err != nil {
		return nil, err
	}

	return ctrl, nil
}

// parseFock accepts either the row-major lower triangle or the full
// square of the occupied-space Fock matrix.
func parseFock(occupied int, values []float64) (*mat.SymDense, error) {
	if occupied < 1 {
		return nil, fmt.Errorf("%w: occupied must be at least 1", ErrMalformedSystem)
	}

	fock := mat.NewSymDense(occupied, nil)

	switch len(values) {
	case occupied * (occupied + 1) / 2:
		idx := 0

		for i := range occupied {
			for j := 0; j <= i; j++ {
				fock.SetSym(j, i, values[idx])
				idx++
			}
		}
	case occupied * occupied:
		for i := range occupied {
			for j := i; j < occupied; j++ {
				fock.SetSym(i, j, values[i*occupied+j])
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d values for %d orbitals", ErrFockShape, len(values), occupied)
	}

	return fock, nil
}

func buildPair(pd pairDoc) (*localcorr.OrbitalPair, error) {
	class, err := localcorr.ParsePairClass(pd.Class)
	if err != nil {
		return nil, fmt.Errorf("pair (%d,%d): %w", pd.I, pd.J, err)
	}

	k, err := denseFromRows(pd.K)
	if err != nil {
		return nil, fmt.Errorf("pair (%d,%d) exchange block: %w", pd.I, pd.J, err)
	}

	uncoupled, err := denseFromRows(pd.Uncoupled)
	if err != nil {
		return nil, fmt.Errorf("pair (%d,%d) denominator block: %w", pd.I, pd.J, err)
	}

	pair, err := localcorr.NewOrbitalPair(pd.I, pd.J, class, k, uncoupled)
	if err != nil {
		return nil, err
	}

	pair.TruncationError = pd.TruncationError
	pair.DipoleEstimate = pd.DipoleEstimate
	pair.SemicanonicalEstimate = pd.SemicanonicalEstimate

	return pair, nil
}

func buildOverlap(set *localcorr.PairSet, docs []projectionDoc) (*TableOverlap, error) {
	overlap := NewTableOverlap(set)

	for _, pd := range docs {
		from, err := parsePairIndex(set, pd.From)
		if err != nil {
			return nil, err
		}

		to, err := parsePairIndex(set, pd.To)
		if err != nil {
			return nil, err
		}

		s, err := denseFromRows(pd.S)
		if err != nil {
			return nil, fmt.Errorf("projection %s -> %s: %w", from, to, err)
		}

		overlap.Put(from, to, s)
	}

	return overlap, nil
}

func parsePairIndex(set *localcorr.PairSet, idx []int) (localcorr.PairKey, error) {
	if len(idx) != pairIndexLen {
		return localcorr.PairKey{}, fmt.Errorf("%w: got %v", ErrProjectionKey, idx)
	}

	key := localcorr.NewPairKey(idx[0], idx[1])

	if set.ByKey(key) == nil {
		return localcorr.PairKey{}, fmt.Errorf("%w: no pair %s in document", ErrProjectionKey, key)
	}

	return key, nil
}

// denseFromRows builds a matrix from nested YAML rows.
func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrRaggedMatrix)
	}

	cols := len(rows[0])

	data := make([]float64, 0, len(rows)*cols)

	for _, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: %d columns after %d", ErrRaggedMatrix, len(row), cols)
		}

		data = append(data, row...)
	}

	return mat.NewDense(len(rows), cols, data), nil
}

// Save writes the controller's system to a YAML file.
func Save(path string, ctrl *localcorr.Controller) error {
	var buf bytes.Buffer

	err := Write(&buf, ctrl)
	if err != nil {
		return err
	}

	writeErr := os.WriteFile(path, buf.Bytes(), filePerm)
	if writeErr != nil {
		return fmt.Errorf("write system file: %w", writeErr)
	}

	return nil
}

// Write serializes the controller's system as a YAML document. The Fock
// matrix is emitted as a full square; projections are emitted only for
// couplings whose matrix is not the identity, since Load regenerates
// identity projections for equal-size domains.
func Write(w io.Writer, ctrl *localcorr.Controller) error {
	doc := systemDoc{
		Occupied: ctrl.Occupied(),
		Fock:     flattenFock(ctrl.Fock),
	}

	for _, p := range ctrl.Pairs.All() {
		doc.Pairs = append(doc.Pairs, pairDoc{
			I:                     p.I,
			J:                     p.J,
			Class:                 p.Class.String(),
			K:                     rowsFromDense(p.K),
			Uncoupled:             rowsFromDense(p.Uncoupled),
			TruncationError:       p.TruncationError,
			DipoleEstimate:        p.DipoleEstimate,
			SemicanonicalEstimate: p.SemicanonicalEstimate,
		})
	}

	doc.Projections = collectProjections(ctrl)

	enc := yaml.NewEncoder(w)

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode system document: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("flush system document: %w", err)
	}

	return nil
}

// collectProjections walks the coupling graph and emits each distinct
// non-identity projection once.
func collectProjections(ctrl *localcorr.Controller) []projectionDoc {
	type edge struct{ from, to localcorr.PairKey }

	seen := make(map[edge]bool)

	var docs []projectionDoc

	emit := func(from localcorr.PairKey, ref localcorr.PairRef, s *mat.Dense) {
		if !ref.Present() || isIdentity(s) {
			return
		}

		to := ctrl.Pairs.Pair(ref.ID()).Key()
		if seen[edge{from, to}] {
			return
		}

		seen[edge{from, to}] = true

		docs = append(docs, projectionDoc{
			From: []int{from.I, from.J},
			To:   []int{to.I, to.J},
			S:    rowsFromDense(s),
		})
	}

	for _, p := range ctrl.Pairs.Solved() {
		for _, c := range p.Couplings {
			emit(p.Key(), c.KJ, c.SKJ)
			emit(p.Key(), c.IK, c.SIK)
		}
	}

	return docs
}

func isIdentity(m *mat.Dense) bool {
	rows, cols := m.Dims()
	if rows != cols {
		return false
	}

	for r := range rows {
		for c := range cols {
			want := 0.0
			if r == c {
				want = 1.0
			}

			if m.At(r, c) != want {
				return false
			}
		}
	}

	return true
}

func flattenFock(fock *mat.SymDense) []float64 {
	n := fock.SymmetricDim()

	values := make([]float64, 0, n*n)

	for i := range n {
		for j := range n {
			values = append(values, fock.At(i, j))
		}
	}

	return values
}

func rowsFromDense(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()

	out := make([][]float64, rows)
	for r := range rows {
		out[r] = make([]float64, cols)
		for c := range cols {
			out[r][c] = m.At(r, c)
		}
	}

	return out
}
