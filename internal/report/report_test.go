package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwiater/dromos/internal/artifact"
	"github.com/mwiater/dromos/internal/grid"
	"github.com/mwiater/dromos/internal/stats"
)

func record(model string, inputs, batch, seq int, avgMS string) grid.Record {
	return grid.Record{
		Engine:         "onnxruntime",
		Version:        "1.3.0",
		Device:         "cpu",
		FP16:           false,
		Optimize:       "True",
		ModelName:      model,
		Inputs:         inputs,
		BatchSize:      batch,
		SequenceLength: seq,
		Latency: stats.Latency{
			TestTimes: 100,
			AverageMS: avgMS,
			Variance:  "0.01",
			P90:       avgMS,
			P95:       avgMS,
			P99:       avgMS,
			QPS:       "100.00",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
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
	return rows
}

func TestWriteDetails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail.csv")
	records := []grid.Record{record("gpt2", 1, 1, 8, "11.20")}

	if err := WriteDetails(path, records); err != nil {
		t.Fatalf("write details: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "engine" || rows[0][len(rows[0])-1] != "latency_99_percentile" {
		t.Fatalf("header = %v", rows[0])
	}
	want := []string{
		"onnxruntime", "1.3.0", "cpu", "False", "True", "gpt2", "1", "1", "8",
		"100", "100.00", "11.20", "0.01", "11.20", "11.20", "11.20",
	}
	if len(rows[1]) != len(want) {
		t.Fatalf("row width = %d, want %d", len(rows[1]), len(want))
	}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("column %s = %q, want %q", rows[0][i], rows[1][i], want[i])
		}
	}
}

func TestWriteDetailsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail.csv")
	records := []grid.Record{record("gpt2", 1, 1, 8, "11.20")}

	if err := WriteDetails(path, records); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteDetails(path, records); err != nil {
		t.Fatalf("second write: %v", err)
	}

	// Each write session contributes its own header row.
	if rows := readCSV(t, path); len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
}

func TestWriteSummaryPivotsGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	records := []grid.Record{
		record("gpt2", 1, 1, 8, "10.00"),
		record("gpt2", 1, 1, 32, "20.00"),
		record("gpt2", 1, 2, 8, "15.00"),
	}

	err := WriteSummary(path, records, []string{"gpt2"}, []string{"onnxruntime"}, []int{1, 2}, []int{8, 32})
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	wantHeader := []string{"model_name", "inputs", "engine", "version", "device", "fp16", "optimize", "b1_s8", "b1_s32", "b2_s8", "b2_s32"}
	for i, name := range wantHeader {
		if rows[0][i] != name {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], name)
		}
	}
	want := []string{"gpt2", "1", "onnxruntime", "1.3.0", "cpu", "False", "True", "10.00", "20.00", "15.00", ""}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("column %s = %q, want %q", wantHeader[i], rows[1][i], want[i])
		}
	}
}

func TestWriteSummarySkipsCombinationsWithoutResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	records := []grid.Record{record("gpt2", 1, 1, 8, "10.00")}

	// bert never ran; gpt2 only ran with one input.
	err := WriteSummary(path, records, []string{"bert-base-cased", "gpt2"}, []string{"onnxruntime", "torch"}, []int{1}, []int{8})
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != "gpt2" || rows[1][2] != "onnxruntime" {
		t.Fatalf("row = %v", rows[1])
	}
}

func TestWriteSummaryRejectsMixedIdentities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	a := record("gpt2", 1, 1, 8, "10.00")
	b := record("gpt2", 1, 1, 32, "20.00")
	b.Version = "1.4.0"

	err := WriteSummary(path, []grid.Record{a, b}, []string{"gpt2"}, []string{"onnxruntime"}, []int{1}, []int{8, 32})
	if err == nil {
		t.Fatal("expected identity mismatch error")
	}
}

func TestWriteFusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.csv")
	fusion := artifact.NewFusionStats()
	fusion.Record("bert_3_fp32.onnx", map[string]int{"Attention": 12, "Gelu": 12})
	fusion.Record("gpt2_1_fp32.onnx", map[string]int{"Gelu": 12, "LayerNormalization": 25})

	if err := WriteFusion(path, fusion); err != nil {
		t.Fatalf("write fusion: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	wantHeader := []string{"model_filename", "Attention", "Gelu", "LayerNormalization"}
	for i, name := range wantHeader {
		if rows[0][i] != name {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], name)
		}
	}
	wantFirst := []string{"bert_3_fp32.onnx", "12", "12", ""}
	for i := range wantFirst {
		if rows[1][i] != wantFirst[i] {
			t.Fatalf("row[%d] = %q, want %q", i, rows[1][i], wantFirst[i])
		}
	}
	if rows[2][0] != "gpt2_1_fp32.onnx" || rows[2][1] != "" || rows[2][3] != "25" {
		t.Fatalf("second row = %v", rows[2])
	}
}
