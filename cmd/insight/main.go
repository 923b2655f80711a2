// Command insight is a terminal dashboard for the customer segmentation
// service.
//
// Usage:
//
//	insight                 Interactive dashboard (default)
//	insight run             Headless segmentation run
//	insight features        List the feature catalog
//	insight history         Stored runs
//	insight history show ID Re-render a stored run
//	insight events          JSONL event log viewer
//	insight fake-api        Local canned analytics service
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDirFlag  string
	apiURLFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Customer segmentation dashboard",
	Long: `insight drives the customer analytics segmentation service: pick features and
an algorithm (K-Means or DBSCAN), run it, and browse cluster statistics and
per-feature boxplots. Every run is kept in a local history.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDirFlag, "data-dir", "", "data directory (default $INSIGHT_DATA_DIR or ~/.insight)")
	pf.StringVar(&apiURLFlag, "api-url", "", "analytics service base URL (overrides config and $INSIGHT_API_URL)")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(fakeAPICmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
