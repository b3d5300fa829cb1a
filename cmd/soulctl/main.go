// Command soulctl is the operator tool for a soulreflect deployment: it reads
// profiles straight from the configured store and checks the generator's
// response schemas against the domain types.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "soulctl",
		Short:         "Operator tool for soulreflect profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "service config file")

	root.AddCommand(newProfilesCmd(&configPath))
	root.AddCommand(newSchemasCmd())
	return root
}

func defaultConfigPath() string {
	if v := os.Getenv("REFLECTION_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
