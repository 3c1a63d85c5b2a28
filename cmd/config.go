package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print the effective settings",
		Long: `Config loads the configuration file (and ERFREADER_* environment overrides),
validates it and prints the result, defaults included, as YAML.`,
		Example: `  erfreader config -c /etc/erfreader/config.yml
  ERFREADER_DECODER_INCLUDE_UDP=true erfreader config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Dump(g.cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
