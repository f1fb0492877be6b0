package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/foodatlas-cli/internal/config"
)

var (
	cfgFile   string
	stateFlag string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "foodatlas",
	Short: "Food access atlas for census tracts",
	Long: "Joins census tract boundaries with USDA food-access data for one state\n" +
		"and turns the result into choropleth figures, tables, exports, and a\n" +
		"small read-only API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if stateFlag != "" {
			cfg.State = strings.ToUpper(stateFlag)
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default foodatlas.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&stateFlag, "state", "", "two-letter USPS state code (overrides config)")
}
