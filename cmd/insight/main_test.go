package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/config"
	"github.com/abelbrown/insight/internal/fakeapi"
	"github.com/abelbrown/insight/internal/otel"
	"github.com/abelbrown/insight/internal/segment"
	"github.com/abelbrown/insight/internal/store"
)

// testEnv points an env at a fresh fake service and temp data dir.
func testEnv(t *testing.T, opts fakeapi.Options) (*env, *fakeapi.Server) {
	t.Helper()
	srv := fakeapi.New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := analytics.NewClient(ts.URL, 5*time.Second, 0)
	return &env{
		dataDir:    t.TempDir(),
		cfg:        config.DefaultConfig(),
		client:     client,
		dispatcher: segment.NewDispatcher(client),
	}, srv
}

func TestHeadlessRunWithBoxplot(t *testing.T) {
	e, srv := testEnv(t, fakeapi.Options{Records: 120})

	ctrl, err := headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		algorithm: "kmeans",
		features:  []string{"Age", "Items Purchased"},
		clusters:    3,
		clustersSet: true,
		boxplot:     "Age",
	})
	require.NoError(t, err)
	require.Equal(t, segment.StatusSuccess, ctrl.Status())

	res := ctrl.Result()
	require.NotNil(t, res)
	require.Len(t, res.Stats, 3)
	require.Len(t, res.Assignments, 120)

	box := ctrl.Boxplot()
	require.True(t, box.Active)
	require.Equal(t, "Age", box.Feature)
	require.NotEmpty(t, box.Image)
	require.Equal(t, 1, srv.Calls("/segmentation/boxplot"))
}

func TestHeadlessRunDBSCANSkipsBoxplot(t *testing.T) {
	e, srv := testEnv(t, fakeapi.Options{})

	ctrl, err := headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		algorithm:  "dbscan",
		features:   []string{"Age", "Average Rating"},
		eps:           0.8,
		epsSet:        true,
		minSamples:    4,
		minSamplesSet: true,
	})
	require.NoError(t, err)
	require.Equal(t, segment.StatusSuccess, ctrl.Status())
	require.Equal(t, segment.DBSCANParams{Eps: 0.8, MinSamples: 4}, ctrl.Result().DBSCAN)
	require.Equal(t, 0, srv.Calls("/segmentation/boxplot"))
}

func TestHeadlessRunValidation(t *testing.T) {
	e, srv := testEnv(t, fakeapi.Options{})

	_, err := headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		features: []string{"Age"},
	})
	var ve *segment.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "features", ve.Field)

	_, err = headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		features:    []string{"Age", "Items Purchased"},
		clusters:    11,
		clustersSet: true,
	})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "n_clusters", ve.Field)

	_, err = headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		features:    []string{"Age", "Items Purchased"},
		clusters:    0,
		clustersSet: true,
	})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "n_clusters", ve.Field)

	_, err = headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		algorithm: "dbscan",
		features:  []string{"Age", "Items Purchased"},
		eps:       0,
		epsSet:    true,
	})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "eps", ve.Field)

	_, err = headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		algorithm: "spectral",
	})
	require.Error(t, err)

	_, err = headlessRun(context.Background(), e.dispatcher, segment.DefaultConfig(), runOptions{
		features: []string{"Age", "Gender_Male"},
		boxplot:  "Gender_Male",
	})
	require.Error(t, err, "categorical features cannot be boxplotted")

	require.Equal(t, 0, srv.Calls("/segmentation/kmeans"))
}

func TestMarkChangedExplicitZero(t *testing.T) {
	defer func() { runOpts = runOptions{} }()

	require.NoError(t, runCmd.Flags().Parse([]string{"--clusters", "0", "--features", "Age,Items Purchased"}))
	opts := markChanged(runCmd, runOpts)
	require.True(t, opts.clustersSet)
	require.Zero(t, opts.clusters)
	require.False(t, opts.epsSet)
	require.False(t, opts.minSamplesSet)
	require.Equal(t, []string{"Age", "Items Purchased"}, opts.features)
}

func TestExecuteRunSavesHistory(t *testing.T) {
	e, _ := testEnv(t, fakeapi.Options{Records: 60})
	out := filepath.Join(t.TempDir(), "plots", "age.png")

	var buf bytes.Buffer
	err := executeRun(context.Background(), e, runOptions{
		features:    []string{"Age", "Items Purchased"},
		clusters:    2,
		clustersSet: true,
		boxplot:     "Age",
		out:         out,
	}, &buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Algorithm: K-Means Clustering | Features: Age, Items Purchased")
	require.Contains(t, buf.String(), "Cluster 2")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	st, err := e.openStore()
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 60, runs[0].TotalRecords)

	plots, err := st.Boxplots(runs[0].ID)
	require.NoError(t, err)
	require.Len(t, plots, 1)
	require.Equal(t, "Age", plots[0].Feature)
}

func TestExecuteRunServiceError(t *testing.T) {
	e, _ := testEnv(t, fakeapi.Options{})

	var buf bytes.Buffer
	err := executeRun(context.Background(), e, runOptions{
		features: []string{"Age", "Shoe Size"},
		json:     true,
		noSave:   true,
	}, &buf)
	require.ErrorIs(t, err, errRunFailed)

	var got runJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "Error: Invalid feature: Shoe Size", got.Error)
	require.Empty(t, got.Stats)

	_, statErr := os.Stat(filepath.Join(e.dataDir, dbFile))
	require.True(t, os.IsNotExist(statErr), "--no-save must not create the history db")
}

func TestExecuteRunOutWithoutBoxplot(t *testing.T) {
	e, _ := testEnv(t, fakeapi.Options{FailBoxplot: true})

	err := executeRun(context.Background(), e, runOptions{
		features: []string{"Age", "Items Purchased"},
		boxplot:  "Age",
		out:      filepath.Join(t.TempDir(), "x.png"),
		noSave:   true,
	}, &bytes.Buffer{})
	require.ErrorContains(t, err, segment.BoxplotErrorMessage)
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printCatalog(&buf, segment.NewCatalog(fakeapi.Catalog, nil)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(fakeapi.Catalog)+1)
	require.True(t, strings.HasPrefix(lines[0], "VALUE"))
	require.Contains(t, buf.String(), "Membership (Gold)")
	require.Contains(t, buf.String(), "categorical")
}

func TestHistoryListAndShow(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, st, 10))
	require.Contains(t, buf.String(), "No runs recorded yet.")

	res := segment.Result{
		RunID:     "3f2a9c10-aaaa-bbbb-cccc-000000000000",
		Algorithm: segment.KMeans,
		Features:  []string{"Age", "Items Purchased"},
		KMeans:    segment.KMeansParams{NClusters: 2},
		Stats: map[string]analytics.ClusterStat{
			"0": {Size: 30},
			"1": {Size: 70},
		},
	}
	require.NoError(t, st.SaveRun(store.RunFromResult(res, time.Now())))

	buf.Reset()
	require.NoError(t, listRuns(&buf, st, 10))
	require.Contains(t, buf.String(), "3f2a9c10")
	require.Contains(t, buf.String(), "n_clusters=2")

	buf.Reset()
	require.NoError(t, showRun(&buf, st, "3f2a", ""))
	require.Contains(t, buf.String(), "Features: Age, Items Purchased")
	require.Contains(t, buf.String(), "70.0%")

	require.ErrorIs(t, showRun(&buf, st, "ffff", ""), store.ErrNotFound)
}

func TestReadTailLinesFilters(t *testing.T) {
	var log bytes.Buffer
	l := otel.NewLogger(&log)
	l.Info(otel.KindStartup, "main", "boot")
	l.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRunSubmit, Comp: "ui", RunID: "r1", Gen: 1})
	l.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindRunError, Comp: "ui", RunID: "r1", Gen: 1, Err: "Error: Network Error"})
	l.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindBoxplotError, Comp: "ui", Feature: "Age"})
	l.Close()

	all, err := readTailLines(bytes.NewReader(log.Bytes()), 50, eventFilter{}.match)
	require.NoError(t, err)
	require.Len(t, all, 4)

	last, err := readTailLines(bytes.NewReader(log.Bytes()), 2, eventFilter{}.match)
	require.NoError(t, err)
	require.Len(t, last, 2)
	require.Equal(t, otel.KindBoxplotError, last[1].ev.Kind)

	runs, err := readTailLines(bytes.NewReader(log.Bytes()), 50, eventFilter{kind: "run."}.match)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	severe, err := readTailLines(bytes.NewReader(log.Bytes()), 50, eventFilter{level: "warn"}.match)
	require.NoError(t, err)
	require.Len(t, severe, 2)

	line := eventFilter{}.format(severe[0].ev, severe[0].raw)
	require.Contains(t, line, "ERROR")
	require.Contains(t, line, "gen=1")
	require.Contains(t, line, "err=Error: Network Error")

	raw := eventFilter{json: true}.format(severe[0].ev, severe[0].raw)
	require.True(t, strings.HasPrefix(raw, "{"))
}

func TestReadTailLinesOversizedRecord(t *testing.T) {
	var log bytes.Buffer
	log.WriteString(`{"t":"2026-01-02T15:04:05Z","level":"info","kind":"sys.startup","comp":"main"}` + "\n")
	log.WriteString(`{"kind":"run.submit","msg":"` + strings.Repeat("x", maxEventLine) + `"}` + "\n")
	log.WriteString(`{"kind":"sys.shutdown"}` + "\n")

	lines, err := readTailLines(&log, 50, eventFilter{}.match)
	require.ErrorIs(t, err, bufio.ErrTooLong)
	require.Len(t, lines, 1, "lines read before the oversized record are kept")
	require.Equal(t, otel.KindStartup, lines[0].ev.Kind)
}
