package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/appserver"
	"github.com/GoCodeAlone/appserver/receivers"
)

// NewTypesCommand creates the types command, which lists the type names a
// configuration may refer to.
func NewTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered receiver, worker and thread types",
		RunE: func(cmd *cobra.Command, args []string) error {
			ic, err := newInitialContext()
			if err != nil {
				return err
			}
			for _, name := range ic.Types() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newInitialContext() (*appserver.StdInitialContext, error) {
	ic := appserver.NewStdInitialContext()
	if err := receivers.Register(ic); err != nil {
		return nil, fmt.Errorf("failed to register built-in types: %w", err)
	}
	return ic, nil
}
