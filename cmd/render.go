package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	renderOnly      string
	renderStylePath string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render figures from the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, counties, err := readAtlas(ctx, st)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("no tracts stored for %s; run ingest first", cfg.State)
		}

		style, err := loadStyle(renderStylePath)
		if err != nil {
			return err
		}
		r := newRenderer(style, cfg.Output.Dir)

		if renderOnly != "" {
			for _, name := range splitAndTrim(renderOnly) {
				path, err := r.Render(name, records, counties)
				if err != nil {
					return eris.Wrapf(err, "render %s", name)
				}
				fmt.Println(path)
			}
			return nil
		}

		paths, err := r.RenderAll(ctx, records, counties)
		if err != nil {
			return eris.Wrap(err, "render figures")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderOnly, "only", "", "comma-separated figure names (default all)")
	renderCmd.Flags().StringVar(&renderStylePath, "style", "", "YAML style file (overrides config)")
	rootCmd.AddCommand(renderCmd)
}
