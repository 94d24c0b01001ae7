// internal/cli/bench.go
package dromos

import (
	"github.com/mwiater/dromos/internal/bench"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the configured benchmark sweep",
	Long: `Benchmark transformer inference across the configured engines, sweeping
models, input-feature counts, batch sizes, and sequence lengths, then write
the detail, summary, and fusion-statistics CSV reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return bench.Run(cmd.Context(), GetConfig())
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	f := benchCmd.Flags()
	f.StringSliceP("models", "m", nil, "models to benchmark (default: the builtin default set)")
	f.StringSliceP("engines", "e", nil, "engines to benchmark: onnxruntime, torch, torchscript")
	f.BoolP("gpu", "g", false, "run on GPU")
	f.Bool("fp16", false, "use float16 model weights (GPU only)")
	f.BoolP("optimize", "o", false, "run graph optimization on exported models")
	f.Bool("validate", false, "validate exported models before benchmarking")
	f.IntP("test-times", "t", 0, "number of repeated timed inferences per combination")
	f.IntSliceP("batch-sizes", "b", nil, "batch sizes to sweep")
	f.IntSliceP("sequence-lengths", "s", nil, "sequence lengths to sweep")
	f.IntSliceP("input-counts", "i", nil, "input-feature counts to sweep, 1-3 (onnxruntime only)")
	f.String("cache-dir", "", "directory for exported model artifacts")
	f.String("detail-csv", "", "path of the per-combination detail report")
	f.String("summary-csv", "", "path of the pivoted latency summary report")
	f.String("fusion-csv", "", "path of the fusion-statistics report")
	f.String("registry", "", "JSON model registry merged over the builtin catalog")

	_ = viper.BindPFlag("models", f.Lookup("models"))
	_ = viper.BindPFlag("engines", f.Lookup("engines"))
	_ = viper.BindPFlag("useGpu", f.Lookup("gpu"))
	_ = viper.BindPFlag("fp16", f.Lookup("fp16"))
	_ = viper.BindPFlag("optimize", f.Lookup("optimize"))
	_ = viper.BindPFlag("validate", f.Lookup("validate"))
	_ = viper.BindPFlag("testTimes", f.Lookup("test-times"))
	_ = viper.BindPFlag("batchSizes", f.Lookup("batch-sizes"))
	_ = viper.BindPFlag("sequenceLengths", f.Lookup("sequence-lengths"))
	_ = viper.BindPFlag("inputCounts", f.Lookup("input-counts"))
	_ = viper.BindPFlag("cacheDir", f.Lookup("cache-dir"))
	_ = viper.BindPFlag("detailCsv", f.Lookup("detail-csv"))
	_ = viper.BindPFlag("summaryCsv", f.Lookup("summary-csv"))
	_ = viper.BindPFlag("fusionCsv", f.Lookup("fusion-csv"))
	_ = viper.BindPFlag("registry", f.Lookup("registry"))
}
