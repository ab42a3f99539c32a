package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/appserver/config"
	"github.com/GoCodeAlone/appserver/feeders"
)

var errKeyNotFound = errors.New("configuration key not found")

// NewShowCommand creates the show command. Without arguments it prints the
// loaded configuration with defaults applied; with a key it prints that
// top-level section of the file as written.
func NewShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show [key]",
		Short: "Print the configuration, or one top-level key of it, as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			if len(args) == 0 {
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				out = cfg
			} else {
				feeder, err := feeders.ForFile(path)
				if err != nil {
					return err
				}
				if err := feeder.FeedKey(args[0], &out); err != nil {
					return err
				}
				if out == nil {
					return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "appserver.yaml", "Configuration file (yaml, toml or json)")

	return cmd
}
