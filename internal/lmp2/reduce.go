package lmp2

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

// couplingWorker owns the private accumulation state of one worker in
// the per-pair coupling reduction. The multiplication scratch is reused
// across coupling sets via Reset, since partner domains differ in size.
type couplingWorker struct {
	acc   *mat.Dense
	inner mat.Dense
	outer mat.Dense
}

// addTerm accumulates f · s · amplitude · sᵀ into the private buffer.
func (w *couplingWorker) addTerm(f float64, s *mat.Dense, amplitude mat.Matrix) {
	w.inner.Reset()
	w.inner.Mul(s, amplitude)

	w.outer.Reset()
	w.outer.Mul(&w.inner, s.T())

	w.outer.Scale(f, &w.outer)
	w.acc.Add(w.acc, &w.outer)
}

// process accumulates every applicable term of the given coupling sets.
// A term applies when its partner reference is present and the gating
// Fock element reaches the prescreening threshold; absent partners are
// screened neighbors and contribute nothing.
func (w *couplingWorker) process(c *Correction, p *localcorr.OrbitalPair, sets []localcorr.Coupling) {
	fock := c.ctrl.Fock
	threshold := c.ctrl.Thresholds.Prescreening

	for _, set := range sets {
		if set.KJ.Present() {
			f := fock.At(p.I, set.K)
			if math.Abs(f) >= threshold {
				partner := c.ctrl.Pairs.Pair(set.KJ.ID())
				w.addTerm(f, set.SKJ, partner.Amplitude(set.KJTransposed))
			}
		}

		if set.IK.Present() {
			f := fock.At(set.K, p.J)
			if math.Abs(f) >= threshold {
				partner := c.ctrl.Pairs.Pair(set.IK.ID())
				w.addTerm(f, set.SIK, partner.Amplitude(set.IKTransposed))
			}
		}
	}
}

// couplingSum runs the fork-join reduction over the pair's coupling
// sets and returns their summed contribution, or nil when the pair has
// no coupling sets. The sets are partitioned into contiguous chunks
// across the worker pool; each worker accumulates into a private buffer
// and the buffers are merged in worker order after the join, so a given
// worker count always sums in the same order. Partner amplitudes and
// the Fock matrix are only read here, never written.
func (c *Correction) couplingSum(p *localcorr.OrbitalPair) *mat.Dense {
	sets := p.Couplings
	if len(sets) == 0 {
		return nil
	}

	n := p.Domain()

	if c.workers == 1 || len(sets) == 1 {
		worker := &couplingWorker{acc: mat.NewDense(n, n, nil)}
		worker.process(c, p, sets)

		return worker.acc
	}

	numWorkers := min(c.workers, len(sets))
	chunk := (len(sets) + numWorkers - 1) / numWorkers

	workers := make([]*couplingWorker, 0, numWorkers)

	var wg sync.WaitGroup

	for start := 0; start < len(sets); start += chunk {
		end := min(start+chunk, len(sets))

		worker := &couplingWorker{acc: mat.NewDense(n, n, nil)}
		workers = append(workers, worker)

		wg.Add(1)

		go func(w *couplingWorker, part []localcorr.Coupling) {
			defer wg.Done()

			w.process(c, p, part)
		}(worker, sets[start:end])
	}

	wg.Wait()

	total := workers[0].acc
	for _, w := range workers[1:] {
		total.Add(total, w.acc)
	}

	return total
}
