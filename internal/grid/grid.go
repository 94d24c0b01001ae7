// internal/grid/grid.go
// Package grid sweeps the model × input-count × batch-size × sequence-length
// space for one engine at a time and collects a latency record per runnable
// combination.
package grid

import (
	"context"
	"math/rand"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/logging"
	"github.com/mwiater/dromos/internal/modelzoo"
	"github.com/mwiater/dromos/internal/sampler"
	"github.com/mwiater/dromos/internal/stats"
)

// Record is one successfully measured combination. Optimize is the engine's
// graph-optimization setting rendered as "true"/"false", or empty for engines
// that have no optimization step.
type Record struct {
	Engine         string
	Version        string
	Device         string
	FP16           bool
	Optimize       string
	ModelName      string
	Inputs         int
	BatchSize      int
	SequenceLength int
	stats.Latency
}

// Runner executes the configured sweep against one engine at a time.
type Runner struct {
	cfg     *appconfig.Config
	catalog *modelzoo.Catalog
	rng     *rand.Rand
}

// NewRunner builds a sweep runner. The rng seeds the synthesized token ids.
func NewRunner(cfg *appconfig.Config, catalog *modelzoo.Catalog, rng *rand.Rand) *Runner {
	return &Runner{cfg: cfg, catalog: catalog, rng: rng}
}

// Run sweeps every configured combination on engine and returns the records
// for the combinations that ran. A failing combination is logged and skipped;
// an engine that cannot serve the requested device contributes no records at
// all.
func (r *Runner) Run(ctx context.Context, engine engines.Engine) []Record {
	version, err := engine.Available(ctx)
	if err != nil {
		logging.Errorf("engine %s unavailable: %v", engine.Name(), err)
		return nil
	}

	inputCounts := r.cfg.InputCounts
	if !engine.SupportsInputSubsets() && !onlyOnes(inputCounts) {
		logging.Warnf("--input_counts is not implemented for %s, and it is ignored", engine.Name())
		inputCounts = []int{1}
	}

	// Torch rows carry no optimization setting; onnxruntime rows render it
	// the way the CSV consumers expect booleans.
	optimize := ""
	if engine.Name() == appconfig.EngineONNXRuntime {
		optimize = "False"
		if r.cfg.Optimize {
			optimize = "True"
		}
	}

	modelNames := r.cfg.Models
	if len(modelNames) == 0 {
		modelNames = modelzoo.DefaultModels
	}

	var records []Record
	for _, name := range modelNames {
		model, ok := r.catalog.Lookup(name)
		if !ok {
			logging.Warnf("unknown model %q, skipping", name)
			continue
		}
		for _, inputCount := range inputCounts {
			if inputCount > len(model.InputNames) {
				continue
			}
			records = append(records, r.sweepModel(ctx, engine, version, optimize, model, inputCount)...)
		}
	}
	return records
}

// sweepModel prepares the model once for this input configuration and reuses
// the handle across the batch and sequence-length grid.
func (r *Runner) sweepModel(ctx context.Context, engine engines.Engine, version, optimize string, model modelzoo.Model, inputCount int) []Record {
	inputNames := model.InputNames[:inputCount]

	handle, err := engine.Prepare(ctx, model, inputNames)
	if err != nil {
		logging.Errorf("prepare %s with %d input(s) on %s failed (%s): %v",
			model.Name, inputCount, engine.Name(), engines.KindOf(err), err)
		return nil
	}
	defer handle.Close()

	vocabSize := handle.VocabSize()
	if vocabSize < 2 {
		logging.Errorf("%s reported vocab size %d, cannot synthesize inputs", model.Name, vocabSize)
		return nil
	}

	var records []Record
	for _, batchSize := range r.cfg.BatchSizes {
		if batchSize <= 0 {
			continue
		}
		for _, sequenceLength := range r.cfg.SequenceLengths {
			if max := handle.MaxSequenceLength(); max > 0 && sequenceLength > max {
				continue
			}

			latency, err := r.measure(ctx, handle, vocabSize, batchSize, sequenceLength, inputNames)
			if err != nil {
				logging.Errorf("%s %s inputs=%d batch=%d seq=%d failed (%s): %v",
					engine.Name(), model.Name, inputCount, batchSize, sequenceLength, engines.KindOf(err), err)
				r.reclaimAfterOOM(ctx, handle, err)
				continue
			}

			record := Record{
				Engine:         engine.Name(),
				Version:        version,
				Device:         engine.Device(),
				FP16:           r.cfg.FP16,
				Optimize:       optimize,
				ModelName:      model.Name,
				Inputs:         inputCount,
				BatchSize:      batchSize,
				SequenceLength: sequenceLength,
				Latency:        latency,
			}
			logging.LogEvent("%s %s inputs=%d batch=%d seq=%d avg=%sms qps=%s",
				record.Engine, record.ModelName, record.Inputs, record.BatchSize,
				record.SequenceLength, record.AverageMS, record.QPS)
			records = append(records, record)
		}
	}
	return records
}

// measure runs one untimed warm-up when the handle wants it, then samples the
// configured repeat count and reduces the timings.
func (r *Runner) measure(ctx context.Context, handle engines.Handle, vocabSize, batchSize, sequenceLength int, inputNames []string) (stats.Latency, error) {
	inputs := engines.SynthesizeInputs(r.rng, vocabSize, batchSize, sequenceLength, inputNames)

	if warmer, ok := handle.(engines.Warmer); ok {
		if err := warmer.WarmUp(ctx, inputs); err != nil {
			return stats.Latency{}, err
		}
	}

	runtimes, err := sampler.Sample(r.cfg.TestTimes, func() error {
		return handle.RunOnce(ctx, inputs)
	})
	if err != nil {
		return stats.Latency{}, err
	}
	return stats.Reduce(runtimes, batchSize), nil
}

func (r *Runner) reclaimAfterOOM(ctx context.Context, handle engines.Handle, err error) {
	if engines.KindOf(err) != engines.FailureOutOfMemory {
		return
	}
	if reclaimer, ok := handle.(engines.MemoryReclaimer); ok {
		if rerr := reclaimer.ReclaimDeviceMemory(ctx); rerr != nil {
			logging.Warnf("could not reclaim device memory: %v", rerr)
		}
	}
}

func onlyOnes(counts []int) bool {
	for _, c := range counts {
		if c != 1 {
			return false
		}
	}
	return true
}
