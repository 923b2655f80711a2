package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/fakeapi"
	"github.com/abelbrown/insight/internal/logging"
)

var fakeOpts struct {
	addr        string
	latency     time.Duration
	failBoxplot bool
	records     int
	seed        uint64
	origins     []string
}

var fakeAPICmd = &cobra.Command{
	Use:   "fake-api",
	Short: "Serve a local analytics service backed by synthetic customers",
	Long: `fake-api serves /segmentation/{features,kmeans,dbscan,boxplot} from a seeded
synthetic dataset. Point the dashboard at it with
  insight --api-url http://localhost:8000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lvl := logLevelFlag
		if lvl == "" {
			lvl = "debug"
		}
		logging.InitWriter(os.Stderr, logging.ParseLevel(lvl))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := fakeapi.New(fakeapi.Options{
			Records:      fakeOpts.records,
			Seed:         fakeOpts.seed,
			Latency:      fakeOpts.latency,
			FailBoxplot:  fakeOpts.failBoxplot,
			AllowOrigins: fakeOpts.origins,
		})
		logging.Info("fake analytics service listening", "addr", fakeOpts.addr, "records", fakeOpts.records, "latency", fakeOpts.latency)
		return srv.ListenAndServe(ctx, fakeOpts.addr)
	},
}

func init() {
	f := fakeAPICmd.Flags()
	f.StringVar(&fakeOpts.addr, "addr", ":8000", "listen address")
	f.DurationVar(&fakeOpts.latency, "latency", 0, "delay added to every response (e.g. 1.5s)")
	f.BoolVar(&fakeOpts.failBoxplot, "fail-boxplot", false, "answer every boxplot request with 500")
	f.IntVar(&fakeOpts.records, "records", 350, "number of synthetic customers")
	f.Uint64Var(&fakeOpts.seed, "seed", 42, "dataset seed")
	f.StringSliceVar(&fakeOpts.origins, "allow-origin", nil, "CORS origins (default all)")
}
