package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/perflog/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect engine configuration files",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme := colorScheme(cmd)
		if _, err := config.LoadFile(args[0]); err != nil {
			var verrs *config.ValidationErrors
			if errors.As(err, &verrs) {
				fmt.Fprintln(cmd.OutOrStdout(), scheme.Failure.Sprint("Configuration validation errors:"))
				for _, e := range verrs.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e.Error())
				}
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", scheme.Name.Sprint(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, defaults applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
