package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/logging"
	"github.com/abelbrown/insight/internal/segment"
	"github.com/abelbrown/insight/internal/store"
	"github.com/abelbrown/insight/internal/ui"
)

var (
	historyLimit  int
	historyOutDir string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored segmentation runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(st *store.Store) error {
			return listRuns(cmd.OutOrStdout(), st, historyLimit)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Re-render a stored run (id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			return showRun(cmd.OutOrStdout(), st, args[0], historyOutDir)
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyShowCmd.Flags().StringVarP(&historyOutDir, "out", "o", "", "write stored boxplots into this directory")
	historyCmd.AddCommand(historyShowCmd)
}

func withStore(fn func(*store.Store) error) error {
	e, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer logging.Close()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func listRuns(w io.Writer, st *store.Store, limit int) error {
	runs, err := st.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tALGORITHM\tFEATURES\tPARAMS\tCLUSTERS\tRECORDS\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Algorithm,
			strings.Join(r.Features, ", "),
			formatParams(r),
			r.ClusterCount,
			r.TotalRecords,
			r.Status(),
		)
	}
	return tw.Flush()
}

func showRun(w io.Writer, st *store.Store, id, outDir string) error {
	run, err := st.GetRun(id)
	if err != nil {
		return err
	}

	res := run.Result()
	fmt.Fprintf(w, "Run %s  %s  %s\n\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), formatParams(run))
	fmt.Fprintln(w, ui.RenderDisplay(segment.Render(run.Status(), &res, segment.BoxplotState{}), 100, ""))

	plots, err := st.Boxplots(run.ID)
	if err != nil {
		return err
	}
	if len(plots) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for _, p := range plots {
		if outDir == "" {
			fmt.Fprintf(w, "Boxplot: %s (use --out to write it)\n", p.Feature)
			continue
		}
		path := filepath.Join(outDir, segment.BoxplotFileName(run.ID, p.Feature))
		if err := segment.WriteBoxplot(path, p.ImageBase64); err != nil {
			return err
		}
		fmt.Fprintf(w, "Boxplot: %s -> %s\n", p.Feature, path)
	}
	return nil
}

func formatParams(r store.Run) string {
	switch r.Algorithm {
	case segment.KMeans:
		return fmt.Sprintf("n_clusters=%d", r.Params.NClusters)
	case segment.DBSCAN:
		return fmt.Sprintf("eps=%.1f min_samples=%d", r.Params.Eps, r.Params.MinSamples)
	default:
		return "-"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
