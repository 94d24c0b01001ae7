// internal/engines/torch/engine.go
// Package torch adapts a torch runtime host in eager or traced (torchscript)
// mode. Models are loaded by name on the host; no artifact export is
// involved, and only token ids are fed regardless of the configured
// input-feature subsets.
package torch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/modelzoo"
)

// Engine drives eager or traced torch execution on a runtime host.
type Engine struct {
	host     appconfig.RuntimeHost
	cfg      *appconfig.Config
	client   *http.Client
	scripted bool
}

// New builds a torch engine; scripted selects traced (torchscript) execution.
func New(host appconfig.RuntimeHost, cfg *appconfig.Config, scripted bool) *Engine {
	return &Engine{
		host:     host,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout()},
		scripted: scripted,
	}
}

func (e *Engine) Name() string {
	if e.scripted {
		return appconfig.EngineTorchScript
	}
	return appconfig.EngineTorch
}

func (e *Engine) Device() string {
	if e.cfg.UseGPU {
		return "cuda"
	}
	return "cpu"
}

func (e *Engine) SupportsInputSubsets() bool { return false }

type infoResponse struct {
	Version       string `json:"version"`
	CUDAAvailable bool   `json:"cudaAvailable"`
}

// Available checks the runtime for CUDA support when a GPU run is requested
// and returns the torch version.
func (e *Engine) Available(ctx context.Context) (string, error) {
	var info infoResponse
	if err := e.get(ctx, "/info", &info); err != nil {
		return "", engines.NewFailure(engines.FailureDeviceUnsupported,
			fmt.Errorf("runtime host %s unreachable: %w", e.host.Name, err))
	}
	if e.cfg.UseGPU && !info.CUDAAvailable {
		return "", engines.NewFailure(engines.FailureDeviceUnsupported,
			fmt.Errorf("GPU requested but host %s has no CUDA-enabled torch build", e.host.Name))
	}
	return info.Version, nil
}

type loadRequest struct {
	Model    string `json:"model"`
	Device   string `json:"device"`
	FP16     bool   `json:"fp16"`
	Scripted bool   `json:"scripted"`
}

type loadResponse struct {
	SessionID         string `json:"sessionId"`
	VocabSize         int    `json:"vocabSize"`
	MaxSequenceLength int    `json:"maxSequenceLength"`
}

// Prepare loads the pretrained model on the runtime host. Input names beyond
// token ids are ignored; the returned handle feeds input_ids only.
func (e *Engine) Prepare(ctx context.Context, model modelzoo.Model, inputNames []string) (engines.Handle, error) {
	payload := loadRequest{
		Model:    model.Name,
		Device:   e.Device(),
		FP16:     e.cfg.FP16,
		Scripted: e.scripted,
	}
	var response loadResponse
	if err := e.post(ctx, "/models/load", payload, &response); err != nil {
		return nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("load %s on %s: %w", model.Name, e.host.Name, err))
	}
	if response.SessionID == "" {
		return nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("runtime returned no session for %s", model.Name))
	}
	return &handle{
		engine:    e,
		sessionID: response.SessionID,
		vocabSize: response.VocabSize,
		maxSeqLen: response.MaxSequenceLength,
	}, nil
}

// handle is one loaded torch model.
type handle struct {
	engine    *Engine
	sessionID string
	vocabSize int
	maxSeqLen int
}

type runRequest struct {
	Inputs engines.InputSet `json:"inputs"`
	Trace  bool             `json:"trace,omitempty"`
}

func (h *handle) RunOnce(ctx context.Context, inputs engines.InputSet) error {
	if err := h.run(ctx, inputs, false); err != nil {
		return classifyRunError(err)
	}
	return nil
}

// WarmUp performs one untimed invocation for the given input shape. In
// scripted mode the runtime re-traces the model against this shape.
func (h *handle) WarmUp(ctx context.Context, inputs engines.InputSet) error {
	if err := h.run(ctx, inputs, h.engine.scripted); err != nil {
		return classifyRunError(err)
	}
	return nil
}

func (h *handle) run(ctx context.Context, inputs engines.InputSet, trace bool) error {
	endpoint := fmt.Sprintf("/models/%s/run", h.sessionID)
	return h.engine.post(ctx, endpoint, runRequest{Inputs: inputs, Trace: trace}, nil)
}

func (h *handle) VocabSize() int         { return h.vocabSize }
func (h *handle) MaxSequenceLength() int { return h.maxSeqLen }

func (h *handle) Close() error {
	req, err := http.NewRequest(http.MethodDelete, h.engine.baseURL()+"/models/"+h.sessionID, nil)
	if err != nil {
		return err
	}
	resp, err := h.engine.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ReclaimDeviceMemory empties the runtime's CUDA cache after an
// out-of-memory failure.
func (h *handle) ReclaimDeviceMemory(ctx context.Context) error {
	return h.engine.post(ctx, "/device/empty_cache", struct{}{}, nil)
}

type statusError struct {
	status int
	body   string
}

func (s *statusError) Error() string {
	return fmt.Sprintf("runtime returned %d: %s", s.status, s.body)
}

func classifyRunError(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusInsufficientStorage {
		return engines.NewFailure(engines.FailureOutOfMemory, err)
	}
	return engines.NewFailure(engines.FailureExecution, err)
}

func (e *Engine) baseURL() string {
	return strings.TrimRight(e.host.URL, "/")
}

func (e *Engine) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL()+endpoint, nil)
	if err != nil {
		return err
	}
	return e.do(req, out)
}

func (e *Engine) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL()+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

func (e *Engine) do(req *http.Request, out any) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
