package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/logging"
	"github.com/abelbrown/insight/internal/segment"
	"github.com/abelbrown/insight/internal/store"
	"github.com/abelbrown/insight/internal/ui"
)

var errRunFailed = errors.New("segmentation run failed")

type runOptions struct {
	algorithm  string
	features   []string
	clusters   int
	eps        float64
	minSamples int
	boxplot    string

	// set when the matching flag was given, so an explicit 0 reaches validation
	clustersSet   bool
	epsSet        bool
	minSamplesSet bool

	out        string
	json       bool
	noSave     bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one segmentation without the dashboard",
	Example: `  insight run --algorithm kmeans --features Age,"Items Purchased" --clusters 3
  insight run --features Age,"Average Rating" --boxplot Age --out age.png
  insight run --algorithm dbscan --features Age,"Average Rating" --eps 0.8 --min-samples 4 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		defer logging.Close()

		return executeRun(cmd.Context(), e, markChanged(cmd, runOpts), cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.algorithm, "algorithm", "a", "", "kmeans or dbscan (default from config)")
	f.StringSliceVarP(&runOpts.features, "features", "f", nil, "comma-separated feature names (at least two)")
	f.IntVarP(&runOpts.clusters, "clusters", "k", 0, "K-Means n_clusters")
	f.Float64Var(&runOpts.eps, "eps", 0, "DBSCAN eps")
	f.IntVar(&runOpts.minSamples, "min-samples", 0, "DBSCAN min_samples")
	f.StringVar(&runOpts.boxplot, "boxplot", "", "feature to boxplot by cluster (K-Means only)")
	f.StringVarP(&runOpts.out, "out", "o", "", "write the boxplot PNG to this path")
	f.BoolVar(&runOpts.json, "json", false, "print the result as JSON")
	f.BoolVar(&runOpts.noSave, "no-save", false, "do not record the run in history")
}

// markChanged records which numeric parameters were given on the command line.
func markChanged(cmd *cobra.Command, opts runOptions) runOptions {
	opts.clustersSet = cmd.Flags().Changed("clusters")
	opts.epsSet = cmd.Flags().Changed("eps")
	opts.minSamplesSet = cmd.Flags().Changed("min-samples")
	return opts
}

func executeRun(ctx context.Context, e *env, opts runOptions, w io.Writer) error {
	ctrl, err := headlessRun(ctx, e.dispatcher, e.cfg.Workflow(), opts)
	if err != nil {
		return err
	}
	res := ctrl.Result()
	box := ctrl.Boxplot()

	if !opts.noSave {
		saveHeadless(e, res, box)
	}

	if opts.out != "" {
		switch {
		case box.Image != "":
			if err := segment.WriteBoxplot(opts.out, box.Image); err != nil {
				return err
			}
			logging.Info("boxplot written", "path", opts.out)
		case !res.Failed():
			return fmt.Errorf("no boxplot to write: %s", boxplotProblem(box))
		}
	}

	if opts.json {
		if err := writeRunJSON(w, res, box); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, ui.RenderDisplay(ctrl.Display(), 100, ""))
	}

	if res.Failed() {
		return errRunFailed
	}
	return nil
}

// headlessRun drives a Controller through one submit synchronously: catalog,
// form, run, then the boxplot if the panel activates.
func headlessRun(ctx context.Context, d *segment.Dispatcher, base segment.AlgorithmConfig, opts runOptions) (*segment.Controller, error) {
	ctrl := segment.NewController(base)
	ctrl.ApplyCatalog(d.LoadCatalog(ctx))

	if opts.algorithm != "" {
		a, err := segment.ParseAlgorithm(opts.algorithm)
		if err != nil {
			return nil, err
		}
		ctrl.SetAlgorithm(a)
	}
	if len(opts.features) > 0 {
		ctrl.SetFeatures(segment.NewSelection(opts.features...))
	}

	cfg := ctrl.Config()
	if opts.clustersSet {
		ctrl.SetKMeansParams(opts.clusters)
	}
	if opts.epsSet || opts.minSamplesSet {
		eps, minSamples := cfg.DBSCAN.Eps, cfg.DBSCAN.MinSamples
		if opts.epsSet {
			eps = opts.eps
		}
		if opts.minSamplesSet {
			minSamples = opts.minSamples
		}
		ctrl.SetDBSCANParams(eps, minSamples)
	}

	if opts.boxplot != "" {
		if _, err := ctrl.SetBoxplotFeature(opts.boxplot); err != nil {
			return nil, err
		}
	}

	req, err := ctrl.Submit()
	if err != nil {
		return nil, err
	}

	boxReq, _ := ctrl.ApplyResult(d.Run(ctx, *req))
	if boxReq != nil {
		ctrl.ApplyBoxplot(d.Boxplot(ctx, *boxReq))
	}
	return ctrl, nil
}

func saveHeadless(e *env, res *segment.Result, box segment.BoxplotState) {
	st, err := e.openStore()
	if err != nil {
		logging.Warn("history unavailable", "err", err)
		return
	}
	defer st.Close()

	now := time.Now()
	if err := st.SaveRun(store.RunFromResult(*res, now)); err != nil {
		logging.Warn("save run failed", "run", res.RunID, "err", err)
		return
	}
	if box.Image != "" {
		err := st.SaveBoxplot(store.Boxplot{RunID: res.RunID, Feature: box.Feature, ImageBase64: box.Image, CreatedAt: now})
		if err != nil {
			logging.Warn("save boxplot failed", "run", res.RunID, "err", err)
		}
	}
}

func boxplotProblem(box segment.BoxplotState) string {
	switch {
	case box.Err != "":
		return box.Err
	case !box.Active:
		return "boxplots need --algorithm kmeans and --boxplot <numeric feature>"
	default:
		return "boxplot still loading"
	}
}

type runJSON struct {
	RunID          string                           `json:"run_id"`
	Algorithm      segment.Algorithm                `json:"algorithm"`
	Features       []string                         `json:"features"`
	Error          string                           `json:"error,omitempty"`
	ElapsedMs      int64                            `json:"elapsed_ms"`
	Stats          map[string]analytics.ClusterStat `json:"cluster_stats,omitempty"`
	BoxplotFeature string                           `json:"boxplot_feature,omitempty"`
	BoxplotError   string                           `json:"boxplot_error,omitempty"`
}

func writeRunJSON(w io.Writer, res *segment.Result, box segment.BoxplotState) error {
	out := runJSON{
		RunID:          res.RunID,
		Algorithm:      res.Algorithm,
		Features:       res.Features,
		Error:          res.Err,
		ElapsedMs:      res.Elapsed.Milliseconds(),
		Stats:          res.Stats,
		BoxplotFeature: box.Feature,
		BoxplotError:   box.Err,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
