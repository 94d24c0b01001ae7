// internal/artifact/artifact.go
// Package artifact talks to the model workbench endpoints of a runtime host:
// exporting a pretrained model to a runnable artifact and running graph
// optimization over it. Both operations are memoized on disk — an artifact
// that already exists at its cache path is reused, never regenerated.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/logging"
	"github.com/mwiater/dromos/internal/modelzoo"
)

// ExportResult describes a runnable exported artifact.
type ExportResult struct {
	Path              string `json:"path"`
	Valid             bool   `json:"valid"`
	VocabSize         int    `json:"vocabSize"`
	MaxSequenceLength int    `json:"maxSequenceLength"`
}

// Client drives the export and optimize endpoints of one runtime host.
type Client struct {
	baseURL  string
	cacheDir string
	client   *http.Client
}

// NewClient builds a workbench client for host using the configured request
// timeout and artifact cache directory.
func NewClient(host appconfig.RuntimeHost, cfg *appconfig.Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(host.URL, "/"),
		cacheDir: cfg.CacheDir,
		client:   &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

// ArtifactPath is the cache location for a model exported with the given
// number of inputs.
func (c *Client) ArtifactPath(model string, inputCount int) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("%s_%d.onnx", model, inputCount))
}

type exportRequest struct {
	Model        string   `json:"model"`
	InputNames   []string `json:"inputNames"`
	OpsetVersion int      `json:"opsetVersion"`
	OutputPath   string   `json:"outputPath"`
}

// Export ensures a runnable artifact exists for model restricted to
// inputNames, and returns its location plus the model metadata the sweep
// needs. When the artifact and its metadata sidecar already exist on disk the
// export call is skipped entirely.
func (c *Client) Export(ctx context.Context, model modelzoo.Model, inputNames []string) (ExportResult, error) {
	path := c.ArtifactPath(model.Name, len(inputNames))

	if result, ok := c.cachedResult(path); ok {
		logging.LogEvent("Skip export since model existed: %s", path)
		return result, nil
	}

	payload := exportRequest{
		Model:        model.Name,
		InputNames:   inputNames,
		OpsetVersion: model.OpsetVersion,
		OutputPath:   path,
	}
	var result ExportResult
	if err := c.post(ctx, "/export", payload, &result); err != nil {
		return ExportResult{}, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("export %s: %w", model.Name, err))
	}
	result.Path = path

	if err := c.writeSidecar(path, result); err != nil {
		// The artifact is still usable this run; only the rerun shortcut is lost.
		logging.Warnf("could not write artifact metadata for %s: %v", path, err)
	}
	return result, nil
}

type optimizeRequest struct {
	Path       string `json:"path"`
	OutputPath string `json:"outputPath"`
	Family     string `json:"family"`
	NumHeads   int    `json:"numHeads"`
	HiddenSize int    `json:"hiddenSize"`
	FP16       bool   `json:"fp16"`
}

type optimizeResponse struct {
	FusedOperators map[string]int `json:"fusedOperators"`
}

// Optimize ensures a graph-optimized artifact exists for path and returns its
// location plus the applied-optimization pass counts. A pre-existing output
// artifact short-circuits the call, in which case no pass counts are
// reported (nothing ran).
func (c *Client) Optimize(ctx context.Context, path string, model modelzoo.Model, fp16 bool) (string, map[string]int, error) {
	suffix := "_fp32.onnx"
	if fp16 {
		suffix = "_fp16.onnx"
	}
	outputPath := strings.TrimSuffix(path, ".onnx") + suffix

	if _, err := os.Stat(outputPath); err == nil {
		logging.LogEvent("Skip optimization since model existed: %s", outputPath)
		return outputPath, nil, nil
	}

	payload := optimizeRequest{
		Path:       path,
		OutputPath: outputPath,
		Family:     model.Family,
		NumHeads:   model.NumHeads,
		HiddenSize: model.HiddenSize,
		FP16:       fp16,
	}
	var response optimizeResponse
	if err := c.post(ctx, "/optimize", payload, &response); err != nil {
		return "", nil, engines.NewFailure(engines.FailureInvalidArtifact,
			fmt.Errorf("optimize %s: %w", path, err))
	}
	return outputPath, response.FusedOperators, nil
}

// cachedResult loads the metadata sidecar for an artifact that already exists.
func (c *Client) cachedResult(path string) (ExportResult, bool) {
	if _, err := os.Stat(path); err != nil {
		return ExportResult{}, false
	}
	data, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return ExportResult{}, false
	}
	var result ExportResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ExportResult{}, false
	}
	result.Path = path
	return result, true
}

func (c *Client) writeSidecar(path string, result ExportResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(path), data, 0o644)
}

func sidecarPath(artifactPath string) string {
	return artifactPath + ".json"
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
