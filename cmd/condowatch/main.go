// Command condowatch runs the condo monitoring core: camera capture, the
// detection loop, event fusion, the HTTP API and the notification scheduler
// in one process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "condowatch",
		Short:         "Condo security monitoring core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(&cobra.Command{
		Use:   "realtime",
		Short: "Run capture, detection, fusion, notifications and the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRealtime(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Resolve and print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.OutOrStdout(), configPath)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "condowatch:", err)
		os.Exit(1)
	}
}
