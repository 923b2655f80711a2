package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/logging"
	"github.com/abelbrown/insight/internal/segment"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the features the service can cluster on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		defer logging.Close()

		cat := e.dispatcher.LoadCatalog(cmd.Context())
		if cat.Fallback() {
			fmt.Fprintln(cmd.ErrOrStderr(), "note: service unavailable, showing the built-in feature list")
		}
		return printCatalog(cmd.OutOrStdout(), cat)
	},
}

func printCatalog(w io.Writer, cat segment.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tLABEL\tTYPE")
	for _, f := range cat.Features() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Value, f.Label, f.Type)
	}
	return tw.Flush()
}
