package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newArglistCommand creates the hidden "arglist" command used by the bash
// completion script. It prints every flag root accepts on one line.
func newArglistCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "arglist",
		Short:  "Print the recognized flags for shell completion",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(flagWords(root), " "))
			return nil
		},
	}
}

// flagWords lists "-x" and "--long" forms of root's flags, including the
// help and version flags cobra adds on its own.
func flagWords(root *cobra.Command) []string {
	root.InitDefaultHelpFlag()
	root.InitDefaultVersionFlag()

	var words []string
	root.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand != "" {
			words = append(words, "-"+f.Shorthand)
		}
		words = append(words, "--"+f.Name)
	})
	return words
}
