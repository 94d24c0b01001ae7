// internal/engines/engines.go
// Package engines defines the closed set of inference backends the harness
// can drive and the runnable-handle contract the grid runner consumes.
package engines

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwiater/dromos/internal/modelzoo"
)

// Canonical input tensor names.
const (
	InputIDs      = "input_ids"
	AttentionMask = "attention_mask"
	TokenTypeIDs  = "token_type_ids"
)

// Tensor is a dense batch×sequence tensor of int64 token values.
type Tensor struct {
	BatchSize      int     `json:"batchSize"`
	SequenceLength int     `json:"sequenceLength"`
	Data           []int64 `json:"data"`
}

// InputSet maps input names to synthesized tensors for one inference call.
type InputSet map[string]Tensor

// Handle is a prepared, runnable model on a specific engine. A handle is
// obtained once per (model, input configuration) and reused across the batch
// and sequence-length sweep.
type Handle interface {
	// RunOnce executes a single inference over the given inputs.
	RunOnce(ctx context.Context, inputs InputSet) error
	// VocabSize bounds the random token ids synthesized for input_ids.
	VocabSize() int
	// MaxSequenceLength is the model's supported input length, 0 when unknown.
	MaxSequenceLength() int
	Close() error
}

// Engine is one inference backend. The set of implementations is fixed at
// configuration time: onnxruntime, torch, torchscript.
type Engine interface {
	Name() string
	Device() string
	// Available verifies the engine can serve the requested device and
	// returns the backend's version string. A device-unsupported failure
	// here aborts the whole engine's contribution to the run.
	Available(ctx context.Context) (string, error)
	// SupportsInputSubsets reports whether the engine honors input-feature
	// subsets; engines that always feed token ids only return false.
	SupportsInputSubsets() bool
	// Prepare produces a runnable handle for the model restricted to the
	// given input names.
	Prepare(ctx context.Context, model modelzoo.Model, inputNames []string) (Handle, error)
}

// MemoryReclaimer is implemented by handles that can free device memory
// after an execution failure, before the sweep continues.
type MemoryReclaimer interface {
	ReclaimDeviceMemory(ctx context.Context) error
}

// Warmer is implemented by handles that need one untimed invocation per
// input shape before sampling (tracing backends re-specialize on the warm-up
// call). The sampler itself never warms up.
type Warmer interface {
	WarmUp(ctx context.Context, inputs InputSet) error
}

// FailureKind classifies why a combination produced no record.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	// FailureInvalidArtifact: export, optimization, or session load produced
	// an unusable artifact.
	FailureInvalidArtifact
	// FailureDeviceUnsupported: the requested device is not served by the
	// runtime (for example GPU without a CUDA build).
	FailureDeviceUnsupported
	// FailureExecution: an inference call failed during timed repetition.
	FailureExecution
	// FailureOutOfMemory: an execution failure caused by device memory
	// exhaustion; the runner reclaims device memory before continuing.
	FailureOutOfMemory
)

func (k FailureKind) String() string {
	switch k {
	case FailureInvalidArtifact:
		return "invalid-artifact"
	case FailureDeviceUnsupported:
		return "device-unsupported"
	case FailureExecution:
		return "execution-error"
	case FailureOutOfMemory:
		return "out-of-memory"
	default:
		return "unknown"
	}
}

// Failure carries a failure kind across the engine boundary.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure wraps err with a failure kind.
func NewFailure(kind FailureKind, err error) error {
	return &Failure{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return FailureUnknown
}
