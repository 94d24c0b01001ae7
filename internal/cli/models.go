// internal/cli/models.go
package dromos

import (
	"github.com/spf13/cobra"
)

// modelsCmd groups subcommands that inspect the model catalog.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Group commands for the model catalog",
	Long:  `The 'models' command groups subcommands that inspect the models dromos can benchmark.`,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
