package grid

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/modelzoo"
)

// fakeHandle counts calls and fails the combinations listed in failRuns.
type fakeHandle struct {
	vocabSize int
	maxSeqLen int
	runErr    error
	warmUps   int
	runs      int
	closed    bool
	reclaims  int
}

func (h *fakeHandle) RunOnce(ctx context.Context, inputs engines.InputSet) error {
	h.runs++
	return h.runErr
}

func (h *fakeHandle) WarmUp(ctx context.Context, inputs engines.InputSet) error {
	h.warmUps++
	return nil
}

func (h *fakeHandle) ReclaimDeviceMemory(ctx context.Context) error {
	h.reclaims++
	return nil
}

func (h *fakeHandle) VocabSize() int         { return h.vocabSize }
func (h *fakeHandle) MaxSequenceLength() int { return h.maxSeqLen }
func (h *fakeHandle) Close() error           { h.closed = true; return nil }

// fakeEngine hands out one fakeHandle per prepared input configuration.
type fakeEngine struct {
	name       string
	subsets    bool
	availErr   error
	prepareErr map[string]error
	handles    []*fakeHandle
	maxSeqLen  int
	runErr     error
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Device() string { return "cpu" }

func (e *fakeEngine) Available(ctx context.Context) (string, error) {
	if e.availErr != nil {
		return "", e.availErr
	}
	return "1.0", nil
}

func (e *fakeEngine) SupportsInputSubsets() bool { return e.subsets }

func (e *fakeEngine) Prepare(ctx context.Context, model modelzoo.Model, inputNames []string) (engines.Handle, error) {
	if err := e.prepareErr[model.Name]; err != nil {
		return nil, err
	}
	h := &fakeHandle{vocabSize: 30000, maxSeqLen: e.maxSeqLen, runErr: e.runErr}
	e.handles = append(e.handles, h)
	return h, nil
}

func newRunner(cfg *appconfig.Config) *Runner {
	cfg.ApplyDefaults()
	return NewRunner(cfg, modelzoo.NewCatalog(), rand.New(rand.NewSource(1)))
}

func TestRunSweepsConfiguredGrid(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"bert-base-cased"},
		InputCounts:     []int{1, 3},
		BatchSizes:      []int{1, 4},
		SequenceLengths: []int{8, 32},
		TestTimes:       3,
	}
	engine := &fakeEngine{name: appconfig.EngineONNXRuntime, subsets: true}

	records := newRunner(cfg).Run(context.Background(), engine)

	// 2 input counts × 2 batch sizes × 2 sequence lengths.
	if len(records) != 8 {
		t.Fatalf("records = %d, want 8", len(records))
	}
	first := records[0]
	if first.Engine != "onnxruntime" || first.Version != "1.0" || first.Device != "cpu" {
		t.Fatalf("record identity = %+v", first)
	}
	if first.Optimize != "False" {
		t.Fatalf("optimize = %q, want %q", first.Optimize, "False")
	}
	if first.TestTimes != 3 {
		t.Fatalf("test times = %d, want 3", first.TestTimes)
	}
	for _, h := range engine.handles {
		if !h.closed {
			t.Fatal("handle not closed after sweep")
		}
		if h.warmUps != 4 {
			t.Fatalf("warm-ups = %d, want one per combination (4)", h.warmUps)
		}
		if h.runs != 12 {
			t.Fatalf("runs = %d, want testTimes per combination (12)", h.runs)
		}
	}
}

func TestRunSkipsInputCountsBeyondModelInputs(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"gpt2"}, // single-input model
		InputCounts:     []int{1, 2, 3},
		BatchSizes:      []int{1},
		SequenceLengths: []int{8},
		TestTimes:       1,
	}
	engine := &fakeEngine{name: appconfig.EngineONNXRuntime, subsets: true}

	records := newRunner(cfg).Run(context.Background(), engine)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (input counts 2 and 3 skipped)", len(records))
	}
	if records[0].Inputs != 1 {
		t.Fatalf("inputs = %d, want 1", records[0].Inputs)
	}
}

func TestRunSkipsNonPositiveBatchAndOversizedSequence(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"gpt2"},
		InputCounts:     []int{1},
		BatchSizes:      []int{0, -1, 2},
		SequenceLengths: []int{8, 4096},
		TestTimes:       1,
	}
	engine := &fakeEngine{name: appconfig.EngineONNXRuntime, subsets: true, maxSeqLen: 1024}

	records := newRunner(cfg).Run(context.Background(), engine)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.BatchSize != 2 || r.SequenceLength != 8 {
		t.Fatalf("surviving combination = batch %d seq %d", r.BatchSize, r.SequenceLength)
	}
}

func TestRunClampsInputCountsForTokenOnlyEngines(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"bert-base-cased"},
		InputCounts:     []int{1, 2, 3},
		BatchSizes:      []int{1},
		SequenceLengths: []int{8},
		TestTimes:       1,
	}
	engine := &fakeEngine{name: appconfig.EngineTorch, subsets: false}

	records := newRunner(cfg).Run(context.Background(), engine)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (input counts ignored)", len(records))
	}
	if records[0].Inputs != 1 {
		t.Fatalf("inputs = %d, want 1", records[0].Inputs)
	}
	if records[0].Optimize != "" {
		t.Fatalf("optimize = %q, want empty for torch", records[0].Optimize)
	}
}

func TestRunUnavailableEngineProducesNoRecords(t *testing.T) {
	cfg := &appconfig.Config{Models: []string{"gpt2"}, TestTimes: 1}
	engine := &fakeEngine{
		name:     appconfig.EngineONNXRuntime,
		subsets:  true,
		availErr: engines.NewFailure(engines.FailureDeviceUnsupported, errors.New("no gpu")),
	}

	if records := newRunner(cfg).Run(context.Background(), engine); records != nil {
		t.Fatalf("records = %v, want none", records)
	}
}

func TestRunContinuesPastFailedPrepare(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"bert-base-cased", "gpt2"},
		InputCounts:     []int{1},
		BatchSizes:      []int{1},
		SequenceLengths: []int{8},
		TestTimes:       1,
	}
	engine := &fakeEngine{
		name:    appconfig.EngineONNXRuntime,
		subsets: true,
		prepareErr: map[string]error{
			"bert-base-cased": engines.NewFailure(engines.FailureInvalidArtifact, errors.New("bad export")),
		},
	}

	records := newRunner(cfg).Run(context.Background(), engine)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ModelName != "gpt2" {
		t.Fatalf("surviving model = %q", records[0].ModelName)
	}
}

func TestRunReclaimsDeviceMemoryAfterOOM(t *testing.T) {
	cfg := &appconfig.Config{
		Models:          []string{"gpt2"},
		InputCounts:     []int{1},
		BatchSizes:      []int{1, 2},
		SequenceLengths: []int{8},
		TestTimes:       1,
	}
	engine := &fakeEngine{
		name:    appconfig.EngineONNXRuntime,
		subsets: true,
		runErr:  engines.NewFailure(engines.FailureOutOfMemory, errors.New("device memory exhausted")),
	}

	records := newRunner(cfg).Run(context.Background(), engine)
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0", len(records))
	}
	if len(engine.handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(engine.handles))
	}
	if engine.handles[0].reclaims != 2 {
		t.Fatalf("reclaims = %d, want one per failed combination (2)", engine.handles[0].reclaims)
	}
}
