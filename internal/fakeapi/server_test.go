package fakeapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abelbrown/insight/internal/analytics"
)

func newClient(t *testing.T, opts Options) (*analytics.Client, *Server) {
	t.Helper()
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return analytics.NewClient(ts.URL, 5*time.Second, 0), srv
}

func TestFeatures(t *testing.T) {
	client, _ := newClient(t, Options{})
	got, err := client.Features(context.Background())
	require.NoError(t, err)
	require.Equal(t, Catalog, got)
}

func TestKMeansPartition(t *testing.T) {
	client, _ := newClient(t, Options{Records: 100})
	resp, err := client.KMeans(context.Background(), analytics.KMeansRequest{
		Features:  []string{"Age", "Items Purchased"},
		NClusters: 4,
	})
	require.NoError(t, err)
	require.Len(t, resp.Stats, 4)
	require.Len(t, resp.Assignments, 100)

	total := 0
	for id, st := range resp.Stats {
		require.NotContains(t, id, "-", "kmeans must never report noise")
		require.Equal(t, 25, st.Size)
		require.NotNil(t, st.AvgAge)
		require.InDelta(t, 1.0, st.GenderDistribution["Male"]+st.GenderDistribution["Female"], 1e-9)
		total += st.Size
	}
	require.Equal(t, 100, total)
}

func TestDBSCANNoise(t *testing.T) {
	client, _ := newClient(t, Options{})
	tight, err := client.DBSCAN(context.Background(), analytics.DBSCANRequest{
		Features: []string{"Age", "Average Rating"}, Eps: 0.1, MinSamples: 20,
	})
	require.NoError(t, err)
	loose, err := client.DBSCAN(context.Background(), analytics.DBSCANRequest{
		Features: []string{"Age", "Average Rating"}, Eps: 2.0, MinSamples: 2,
	})
	require.NoError(t, err)

	require.Contains(t, tight.Stats, "-1")
	require.Greater(t, tight.Stats["-1"].Size, loose.Stats["-1"].Size)
}

func TestDeterministic(t *testing.T) {
	a := generate(50, 7)
	b := generate(50, 7)
	require.Equal(t, a, b)
	require.NotEqual(t, a, generate(50, 8))
}

func TestBoxplotPNG(t *testing.T) {
	client, srv := newClient(t, Options{})
	resp, err := client.Boxplot(context.Background(), analytics.BoxplotRequest{
		Features: []string{"Age", "Items Purchased"}, NClusters: 3, FeatureToPlot: "Age",
	})
	require.NoError(t, err)

	img, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))
	require.Equal(t, 1, srv.Calls("/segmentation/boxplot"))
}

func TestErrorBodies(t *testing.T) {
	client, _ := newClient(t, Options{})
	ctx := context.Background()

	_, err := client.KMeans(ctx, analytics.KMeansRequest{Features: []string{"Age", "Shoe Size"}, NClusters: 3})
	require.Equal(t, "Invalid feature: Shoe Size", analytics.ErrorMessage(err))

	_, err = client.KMeans(ctx, analytics.KMeansRequest{Features: []string{"Age", "Items Purchased"}, NClusters: 11})
	require.Equal(t, "Input should be between 2 and 10", analytics.ErrorMessage(err))

	_, err = client.Boxplot(ctx, analytics.BoxplotRequest{Features: []string{"Age", "Gender_Male"}, NClusters: 3, FeatureToPlot: "Gender_Male"})
	require.Equal(t, "Cannot plot feature: Gender_Male", analytics.ErrorMessage(err))

	failing, _ := newClient(t, Options{FailBoxplot: true})
	_, err = failing.Boxplot(ctx, analytics.BoxplotRequest{Features: []string{"Age", "Items Purchased"}, NClusters: 3, FeatureToPlot: "Age"})
	var apiErr *analytics.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := New(Options{})
	req := httptest.NewRequest(http.MethodOptions, "/segmentation/kmeans", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Less(t, rec.Code, 300)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQuartiles(t *testing.T) {
	require.Equal(t, [5]float64{1, 2, 3, 4, 5}, quartiles([]float64{5, 1, 4, 2, 3}))
	require.Equal(t, [5]float64{7, 7, 7, 7, 7}, quartiles([]float64{7}))
}
