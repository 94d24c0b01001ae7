package bench

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/artifact"
)

// newORTHost fakes a complete onnxruntime runtime so a sweep can run
// end to end.
func newORTHost(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/providers", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"version": "1.3.0", "providers": []string{"CPUExecutionProvider"}})
	})
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OutputPath string `json:"outputPath"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := os.WriteFile(req.OutputPath, []byte("onnx"), 0o644); err != nil {
			t.Errorf("write artifact: %v", err)
		}
		_ = json.NewEncoder(w).Encode(artifact.ExportResult{Valid: true, VocabSize: 50257, MaxSequenceLength: 1024})
	})
	mux.HandleFunc("/optimize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OutputPath string `json:"outputPath"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := os.WriteFile(req.OutputPath, []byte("onnx-opt"), 0o644); err != nil {
			t.Errorf("write optimized artifact: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"fusedOperators": map[string]int{"Gelu": 12}})
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "sess-1"})
	})
	mux.HandleFunc("/sessions/sess-1/run", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, hostURL string) *appconfig.Config {
	dir := t.TempDir()
	cfg := &appconfig.Config{
		Models:          []string{"gpt2"},
		Engines:         []string{appconfig.EngineONNXRuntime},
		Hosts:           []appconfig.RuntimeHost{{Name: "ort", URL: hostURL, Engine: appconfig.EngineONNXRuntime}},
		CacheDir:        filepath.Join(dir, "cache"),
		TestTimes:       2,
		BatchSizes:      []int{1},
		SequenceLengths: []int{8},
		InputCounts:     []int{1},
		TimeoutSeconds:  5,
		DetailCSV:       filepath.Join(dir, "detail.csv"),
		SummaryCSV:      filepath.Join(dir, "summary.csv"),
		FusionCSV:       filepath.Join(dir, "fusion.csv"),
	}
	cfg.ApplyDefaults()
	return cfg
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return len(rows)
}

func TestRunWritesReports(t *testing.T) {
	server := newORTHost(t)
	cfg := testConfig(t, server.URL)

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if rows := countRows(t, cfg.DetailCSV); rows != 2 {
		t.Fatalf("detail rows = %d, want header + 1", rows)
	}
	if rows := countRows(t, cfg.SummaryCSV); rows != 2 {
		t.Fatalf("summary rows = %d, want header + 1", rows)
	}
	if _, err := os.Stat(cfg.FusionCSV); !os.IsNotExist(err) {
		t.Fatalf("fusion csv should not exist without optimization, stat err = %v", err)
	}
}

func TestRunWritesFusionWhenOptimizing(t *testing.T) {
	server := newORTHost(t)
	cfg := testConfig(t, server.URL)
	cfg.Optimize = true

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if rows := countRows(t, cfg.FusionCSV); rows != 2 {
		t.Fatalf("fusion rows = %d, want header + 1", rows)
	}
}

func TestRunDisablesFP16WithoutGPU(t *testing.T) {
	server := newORTHost(t)
	cfg := testConfig(t, server.URL)
	cfg.FP16 = true

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cfg.FP16 {
		t.Fatal("fp16 should be disabled when no GPU is requested")
	}
}

func TestRunWithUnreachableHostProducesNoReports(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(cfg.DetailCSV); !os.IsNotExist(err) {
		t.Fatalf("detail csv should not exist, stat err = %v", err)
	}
}
