// internal/engines/ort/engine.go
// Package ort adapts an onnxruntime runtime host: models are exported and
// graph-optimized through the artifact workbench, then served as inference
// sessions.
package ort

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
	"github.com/mwiater/dromos/internal/artifact"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/logging"
	"github.com/mwiater/dromos/internal/modelzoo"
)

const cudaProvider = "CUDAExecutionProvider"

// Engine drives onnxruntime sessions on a runtime host.
type Engine struct {
	host      appconfig.RuntimeHost
	cfg       *appconfig.Config
	client    *http.Client
	workbench *artifact.Client
	fusion    *artifact.FusionStats
}

// New builds the onnxruntime engine. Applied optimization-pass counts are
// recorded into fusion as models are prepared.
func New(host appconfig.RuntimeHost, cfg *appconfig.Config, fusion *artifact.FusionStats) *Engine {
	return &Engine{
		host:      host,
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.RequestTimeout()},
		workbench: artifact.NewClient(host, cfg),
		fusion:    fusion,
	}
}

func (e *Engine) Name() string { return appconfig.EngineONNXRuntime }

func (e *Engine) Device() string {
	if e.cfg.UseGPU {
		return "cuda"
	}
	return "cpu"
}

func (e *Engine) SupportsInputSubsets() bool { return true }

type providersResponse struct {
	Version   string   `json:"version"`
	Providers []string `json:"providers"`
}

// Available checks the runtime's execution providers against the requested
// device and returns the onnxruntime version.
func (e *Engine) Available(ctx context.Context) (string, error) {
	var info providersResponse
	if err := e.get(ctx, "/providers", &info); err != nil {
		return "", engines.NewFailure(engines.FailureDeviceUnsupported,
			fmt.Errorf("runtime host %s unreachable: %w", e.host.Name, err))
	}

	hasCUDA := false
	for _, p := range info.Providers {
		if p == cudaProvider {
			hasCUDA = true
		}
	}
	if e.cfg.UseGPU && !hasCUDA {
		return "", engines.NewFailure(engines.FailureDeviceUnsupported,
			fmt.Errorf("GPU requested but %s is not available on host %s; install the gpu build and use a machine with a GPU", cudaProvider, e.host.Name))
	}
	if !e.cfg.UseGPU && hasCUDA {
		logging.Warnf("host %s runs a gpu build; a cpu-only build usually gives better cpu numbers", e.host.Name)
	}
	return info.Version, nil
}

// Prepare exports the model for the requested input subset, optionally
// optimizes and validates it, and loads an inference session.
func (e *Engine) Prepare(ctx context.Context, model modelzoo.Model, inputNames []string) (engines.Handle, error) {
	result, err := e.workbench.Export(ctx, model, inputNames)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("%s is an invalid model artifact", result.Path))
	}

	path := result.Path
	if e.cfg.Optimize || e.cfg.FP16 {
		optimized, passes, err := e.workbench.Optimize(ctx, path, model, e.cfg.FP16)
		if err != nil {
			return nil, err
		}
		if len(passes) > 0 {
			e.fusion.Record(optimized, passes)
		}
		path = optimized
	}

	if e.cfg.Validate {
		if err := e.validate(ctx, path); err != nil {
			return nil, err
		}
		logging.LogEvent("%s is a valid model artifact", path)
	}

	return e.loadSession(ctx, path, result)
}

type validateRequest struct {
	Path   string `json:"path"`
	UseGPU bool   `json:"useGpu"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

func (e *Engine) validate(ctx context.Context, path string) error {
	var response validateResponse
	if err := e.post(ctx, "/validate", validateRequest{Path: path, UseGPU: e.cfg.UseGPU}, &response); err != nil {
		return engines.NewFailure(engines.FailureInvalidArtifact, fmt.Errorf("validate %s: %w", path, err))
	}
	if !response.Valid {
		return engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("%s failed validation: %s", path, response.Reason))
	}
	return nil
}

type loadSessionRequest struct {
	Path   string `json:"path"`
	Device string `json:"device"`
}

type loadSessionResponse struct {
	SessionID string `json:"sessionId"`
}

func (e *Engine) loadSession(ctx context.Context, path string, result artifact.ExportResult) (engines.Handle, error) {
	var response loadSessionResponse
	if err := e.post(ctx, "/sessions", loadSessionRequest{Path: path, Device: e.Device()}, &response); err != nil {
		return nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("load session for %s: %w", path, err))
	}
	if response.SessionID == "" {
		return nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("runtime returned no session for %s", path))
	}
	return &handle{
		engine:    e,
		sessionID: response.SessionID,
		vocabSize: result.VocabSize,
		maxSeqLen: result.MaxSequenceLength,
	}, nil
}

// handle is one loaded onnxruntime session.
type handle struct {
	engine    *Engine
	sessionID string
	vocabSize int
	maxSeqLen int
}

type runRequest struct {
	Inputs engines.InputSet `json:"inputs"`
}

func (h *handle) RunOnce(ctx context.Context, inputs engines.InputSet) error {
	endpoint := fmt.Sprintf("/sessions/%s/run", h.sessionID)
	if err := h.engine.post(ctx, endpoint, runRequest{Inputs: inputs}, nil); err != nil {
		return classifyRunError(err)
	}
	return nil
}

func (h *handle) VocabSize() int         { return h.vocabSize }
func (h *handle) MaxSequenceLength() int { return h.maxSeqLen }

func (h *handle) Close() error {
	req, err := http.NewRequest(http.MethodDelete, h.engine.baseURL()+"/sessions/"+h.sessionID, nil)
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

// ReclaimDeviceMemory asks the runtime to release cached device allocations.
func (h *handle) ReclaimDeviceMemory(ctx context.Context) error {
	return h.engine.post(ctx, "/device/reclaim", struct{}{}, nil)
}

// statusError preserves the HTTP status for failure classification.
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
