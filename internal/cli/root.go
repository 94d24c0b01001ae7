// internal/cli/root.go
package dromos

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
)

// boolFlagKeys maps boolean flag names to their viper keys so unchanged flags
// can be backfilled from the config file.
var boolFlagKeys = map[string]string{
	"debug":    "debug",
	"gpu":      "useGpu",
	"fp16":     "fp16",
	"optimize": "optimize",
	"validate": "validate",
}

var rootCmd = &cobra.Command{
	Use:   "dromos",
	Short: "dromos — transformer inference benchmarking across onnxruntime and torch runtimes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1) Load config (file or defaults)
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// 2) If user did NOT set a flag, copy the config value into the flag so
		//    both pflags and viper reflect the same, final value.
		for name, key := range boolFlagKeys {
			if flag := cmd.Flags().Lookup(name); flag != nil && !cmd.Flags().Changed(name) {
				_ = cmd.Flags().Set(name, strconv.FormatBool(viper.GetBool(key)))
			}
		}

		// 3) Materialize the fully merged configuration (flags > config >
		//    defaults) into a stable snapshot for the command packages.
		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		cfg.ApplyDefaults()
		if err := cfg.ValidateConfig(); err != nil {
			return err
		}

		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		logging.SetDebug(cfg.Debug)

		currentConfig = &cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file when present; a missing file just
// means flags and defaults apply.
func ensureConfigLoaded() error {
	viper.SetDefault("debug", false)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}
