// bench-solver measures wall time and heap use of the residual solver
// across worker counts on a synthetic pair system.
//
// Usage:
//
//	go run ./scripts/bench-solver --occupied 24 --domain 8 --workers 1,2,4,8 \
//	  --profile-dir docs/profiles/solver
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/nabbelbabbel/serenity/internal/config"
	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/localcorr"
)

func main() {
	occupied := flag.Int("occupied", 24, "Occupied orbitals in the synthetic system")
	domain := flag.Int("domain", 8, "Virtual domain size per pair")
	coupling := flag.Float64("coupling", 0.02, "Coupling strength of the synthetic system")
	distantFrom := flag.Int("distant-from", 6, "Index separation at which pairs become distant")
	veryDistantFrom := flag.Int("very-distant-from", 16, "Index separation at which pairs become very distant")
	workerList := flag.String("workers", "1,2,4", "Comma-separated worker counts to benchmark")
	runs := flag.Int("runs", 3, "Repetitions per worker count")
	profileDir := flag.String("profile-dir", "", "Directory to write pprof profiles (optional)")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	workerCounts, err := parseWorkerList(*workerList)
	if err != nil {
		log.Fatalf("parse --workers: %v", err)
	}

	if *profileDir != "" {
		if mkErr := os.MkdirAll(*profileDir, 0o755); mkErr != nil {
			log.Fatalf("mkdir profile-dir: %v", mkErr)
		}
	}

	if *cpuProfile {
		if *profileDir == "" {
			log.Fatal("--cpu-profile requires --profile-dir")
		}

		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			log.Fatalf("create cpu profile: %v", cpuErr)
		}
		defer cpuFile.Close()

		if startErr := pprof.StartCPUProfile(cpuFile); startErr != nil {
			log.Fatalf("start cpu profile: %v", startErr)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load defaults: %v", err)
	}

	spec := localcorr.SyntheticSpec{
		Occupied:        *occupied,
		Domain:          *domain,
		Coupling:        *coupling,
		DistantFrom:     *distantFrom,
		VeryDistantFrom: *veryDistantFrom,
		Seed:            7,
	}

	log.Printf("synthetic system: occupied=%d domain=%d coupling=%g", *occupied, *domain, *coupling)

	for _, workers := range workerCounts {
		best := time.Duration(0)

		for run := range *runs {
			// A fresh controller per run so every solve starts from
			// zero amplitudes.
			ctrl, synthErr := localcorr.Synthesize(spec, cfg.Thresholds())
			if synthErr != nil {
				log.Fatalf("synthesize: %v", synthErr)
			}

			elapsed, cycles := solveOnce(ctrl, workers)

			if best == 0 || elapsed < best {
				best = elapsed
			}

			log.Printf("  workers=%-2d run=%d  %10s  cycles=%d", workers, run+1, elapsed.Round(time.Microsecond), cycles)
		}

		logHeap(fmt.Sprintf("workers=%d best=%s", workers, best.Round(time.Microsecond)))
	}

	if *profileDir != "" {
		writeHeapProfile(filepath.Join(*profileDir, "heap_after.prof"))
	}
}

func solveOnce(ctrl *localcorr.Controller, workers int) (time.Duration, int) {
	history := &lmp2.History{}

	corr, err := lmp2.New(ctrl, lmp2.Options{Workers: workers, Trace: history})
	if err != nil {
		log.Fatalf("build correction: %v", err)
	}

	start := time.Now()

	_, err = corr.Run(context.Background())
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	return time.Since(start), history.Len()
}

func logHeap(label string) {
	runtime.GC()
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	log.Printf("[heap] %-32s inuse=%6.1f MB  sys=%6.1f MB", label,
		float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6)
}

func writeHeapProfile(path string) {
	runtime.GC()
	runtime.GC()

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}

func parseWorkerList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	counts := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("worker count %q: %w", part, err)
		}

		if n < 1 {
			return nil, fmt.Errorf("worker count %d: must be at least 1", n)
		}

		counts = append(counts, n)
	}

	return counts, nil
}
