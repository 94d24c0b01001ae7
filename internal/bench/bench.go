// internal/bench/bench.go
// Package bench orchestrates a full benchmark run: it assembles the model
// catalog and engines, sweeps the configured grid, and writes the CSV and
// console reports.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/artifact"
	"github.com/mwiater/dromos/internal/enginefactory"
	"github.com/mwiater/dromos/internal/grid"
	"github.com/mwiater/dromos/internal/logging"
	"github.com/mwiater/dromos/internal/modelzoo"
	"github.com/mwiater/dromos/internal/report"
	"github.com/mwiater/dromos/internal/util"
)

// Run executes the benchmark sweep described by cfg and writes the reports.
func Run(ctx context.Context, cfg *appconfig.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	if cfg.FP16 && !cfg.UseGPU {
		logging.Warnf("fp16 is only supported on GPU, ignoring it")
		cfg.FP16 = false
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache directory %q: %w", cfg.CacheDir, err)
	}

	catalog := modelzoo.NewCatalog()
	if cfg.Registry != "" {
		if err := catalog.LoadRegistry(cfg.Registry); err != nil {
			return err
		}
	}

	fusion := artifact.NewFusionStats()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	runner := grid.NewRunner(cfg, catalog, rng)

	logging.Debugf("sweep: batches=[%s] sequence lengths=[%s] input counts=[%s] repeats=%d",
		util.JoinInts(cfg.BatchSizes, ","), util.JoinInts(cfg.SequenceLengths, ","),
		util.JoinInts(cfg.InputCounts, ","), cfg.TestTimes)

	var records []grid.Record
	for _, name := range util.DedupeStrings(cfg.Engines) {
		engine, err := enginefactory.New(name, cfg, fusion)
		if err != nil {
			logging.Errorf("%v", err)
			continue
		}
		records = append(records, runner.Run(ctx, engine)...)
	}

	timestamp := util.Timestamp()

	// Fusion statistics cover the optimization work that ran, even when the
	// measurements themselves failed.
	if !fusion.Empty() {
		fusionCSV := cfg.FusionCSV
		if fusionCSV == "" {
			fusionCSV = fmt.Sprintf("benchmark_fusion_%s.csv", timestamp)
		}
		if err := report.WriteFusion(fusionCSV, fusion); err != nil {
			return err
		}
	}

	if len(records) == 0 {
		logging.Warnf("No benchmark results")
		return nil
	}

	detailCSV := cfg.DetailCSV
	if detailCSV == "" {
		detailCSV = fmt.Sprintf("benchmark_detail_%s.csv", timestamp)
	}
	if err := report.WriteDetails(detailCSV, records); err != nil {
		return err
	}

	models := cfg.Models
	if len(models) == 0 {
		models = modelzoo.DefaultModels
	}
	summaryCSV := cfg.SummaryCSV
	if summaryCSV == "" {
		summaryCSV = fmt.Sprintf("benchmark_summary_%s.csv", timestamp)
	}
	if err := report.WriteSummary(summaryCSV, records, models, cfg.Engines, cfg.BatchSizes, cfg.SequenceLengths); err != nil {
		return err
	}

	printConsoleSummary(records)
	return nil
}

// printConsoleSummary renders the measured combinations as a terminal table.
func printConsoleSummary(records []grid.Record) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-13s %-26s %6s %6s %5s %10s %10s",
		"ENGINE", "MODEL", "INPUTS", "BATCH", "SEQ", "AVG_MS", "QPS")))
	for _, r := range records {
		fmt.Println(rowStyle.Render(fmt.Sprintf("%-13s %-26s %6d %6d %5d %10s %10s",
			r.Engine, r.ModelName, r.Inputs, r.BatchSize, r.SequenceLength, r.AverageMS, r.QPS)))
	}
}
