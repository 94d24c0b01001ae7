// internal/report/report.go
// Package report writes the benchmark results as CSV: a per-combination
// detail file, a pivoted latency summary, and the graph-optimization fusion
// statistics.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/mwiater/dromos/internal/artifact"
	"github.com/mwiater/dromos/internal/grid"
	"github.com/mwiater/dromos/internal/logging"
)

var detailColumns = []string{
	"engine", "version", "device", "fp16", "optimize", "model_name", "inputs",
	"batch_size", "sequence_length", "test_times", "QPS", "average_latency_ms",
	"latency_variance", "latency_90_percentile", "latency_95_percentile",
	"latency_99_percentile",
}

// summaryInputCounts is the fixed input-count set the summary pivots over,
// independent of what the sweep actually ran.
var summaryInputCounts = [3]int{1, 2, 3}

// openAppend opens path for appending, creating it if needed. Each write
// session contributes its own header row.
func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// WriteDetails appends one row per record to path.
func WriteDetails(path string, records []grid.Record) error {
	file, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("open detail csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(detailColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Engine, r.Version, r.Device, pythonBool(r.FP16), r.Optimize,
			r.ModelName, strconv.Itoa(r.Inputs), strconv.Itoa(r.BatchSize),
			strconv.Itoa(r.SequenceLength), strconv.Itoa(r.TestTimes),
			r.QPS, r.AverageMS, r.Variance, r.P90, r.P95, r.P99,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	logging.LogEvent("Detail results are saved to csv file: %s", path)
	return nil
}

// WriteSummary appends the pivoted latency summary to path: one row per
// (model, input count, engine) that produced results, with one b{batch}_s{seq}
// column per configured grid cell holding the average latency. Records in one
// row must agree on every identifying column; a disagreement aborts the
// summary.
func WriteSummary(path string, records []grid.Record, models, engineNames []string, batchSizes, sequenceLengths []int) error {
	file, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("open summary csv: %w", err)
	}
	defer file.Close()

	header := []string{"model_name", "inputs", "engine", "version", "device", "fp16", "optimize"}
	type cell struct{ batch, seq int }
	var cells []cell
	for _, b := range batchSizes {
		for _, s := range sequenceLengths {
			header = append(header, fmt.Sprintf("b%d_s%d", b, s))
			cells = append(cells, cell{b, s})
		}
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, model := range models {
		for _, inputCount := range summaryInputCounts {
			for _, engineName := range engineNames {
				var identity []string
				latencies := make(map[cell]string)
				for _, r := range records {
					if r.ModelName != model || r.Inputs != inputCount || r.Engine != engineName {
						continue
					}
					id := []string{r.ModelName, strconv.Itoa(r.Inputs), r.Engine, r.Version, r.Device, pythonBool(r.FP16), r.Optimize}
					if identity == nil {
						identity = id
					} else if !equalRows(identity, id) {
						return fmt.Errorf("summary row %s/%d/%s mixes records with different identities: %v vs %v",
							model, inputCount, engineName, identity, id)
					}
					latencies[cell{r.BatchSize, r.SequenceLength}] = r.AverageMS
				}
				if identity == nil {
					continue
				}

				row := identity
				for _, c := range cells {
					row = append(row, latencies[c])
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	logging.LogEvent("Summary results are saved to csv file: %s", path)
	return nil
}

// WriteFusion appends the applied graph-optimization pass counts to path, one
// row per optimized model file, with a column per pass name seen anywhere in
// the run.
func WriteFusion(path string, fusion *artifact.FusionStats) error {
	file, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("open fusion csv: %w", err)
	}
	defer file.Close()

	passNames := fusion.PassNames()
	header := append([]string{"model_filename"}, passNames...)

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, modelFile := range fusion.Files() {
		passes := fusion.Passes(modelFile)
		row := make([]string, 0, len(header))
		row = append(row, modelFile)
		for _, name := range passNames {
			count, ok := passes[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.Itoa(count))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	logging.LogEvent("Fusion statistics is saved to csv file: %s", path)
	return nil
}

// pythonBool renders booleans the way the established CSV consumers expect.
func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
