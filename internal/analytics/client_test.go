package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, 0)
}

func TestFeatures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != PathFeatures {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[{"value":"Age","label":"Age","type":"numeric"},{"value":"Gender","label":"Gender","type":"categorical"}]}`))
	})

	features, err := c.Features(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 2)
	require.Equal(t, Feature{Value: "Gender", Label: "Gender", Type: FeatureCategorical}, features[1])
}

func TestKMeansRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathKMeans {
			t.Errorf("path = %s, want %s", r.URL.Path, PathKMeans)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body) != 2 || body["n_clusters"] != float64(3) {
			t.Errorf("unexpected body: %v", body)
		}
		w.Write([]byte(`{"assignments":{"0":1,"1":0},"stats":{"0":{"size":1},"1":{"size":1,"avg_age":31.5}}}`))
	})

	resp, err := c.KMeans(context.Background(), KMeansRequest{Features: []string{"Age", "Items Purchased"}, NClusters: 3})
	require.NoError(t, err)
	require.Equal(t, Assignments{0: "1", 1: "0"}, resp.Assignments)
	require.Equal(t, 1, resp.Stats["1"].Size)
	require.NotNil(t, resp.Stats["1"].AvgAge)
	require.InDelta(t, 31.5, *resp.Stats["1"].AvgAge, 1e-9)
	require.Nil(t, resp.Stats["0"].AvgAge)
}

func TestDBSCANRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req DBSCANRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if r.URL.Path != PathDBSCAN || req.Eps != 0.5 || req.MinSamples != 5 {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		w.Write([]byte(`{"assignments":[{"Age":30,"Cluster":-1},{"Age":41,"Cluster":0}],"stats":{"-1":{"size":1},"0":{"size":1}}}`))
	})

	resp, err := c.DBSCAN(context.Background(), DBSCANRequest{Features: []string{"Age", "Items Purchased"}, Eps: 0.5, MinSamples: 5})
	require.NoError(t, err)
	require.Equal(t, Assignments{0: "-1", 1: "0"}, resp.Assignments)
	require.Contains(t, resp.Stats, "-1")
}

func TestBoxplot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req BoxplotRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.FeatureToPlot != "Age" || req.NClusters != 4 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"image_base64":"iVBORw0KGgo="}`))
	})

	resp, err := c.Boxplot(context.Background(), BoxplotRequest{Features: []string{"Age"}, NClusters: 4, FeatureToPlot: "Age"})
	require.NoError(t, err)
	require.Equal(t, "iVBORw0KGgo=", resp.ImageBase64)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusBadRequest, `{"detail":"Invalid feature"}`, "Invalid feature"},
		{"list detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","features"],"msg":"field required"},{"msg":"value is not a valid integer"}]}`, "field required; value is not a valid integer"},
		{"no detail", http.StatusInternalServerError, `<html>oops</html>`, "Request failed with status code 500"},
		{"empty detail", http.StatusBadGateway, `{"detail":null}`, "Request failed with status code 502"},
		{"malformed success", http.StatusOK, `{"stats":`, "invalid response from analytics service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.KMeans(context.Background(), KMeansRequest{Features: []string{"a", "b"}, NClusters: 3})
			require.Error(t, err)
			require.Equal(t, tt.want, ErrorMessage(err))
		})
	}
}

func TestErrorMessageNetwork(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url, time.Second, 0)
	_, err := c.Features(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
	require.Equal(t, "Network Error", ErrorMessage(err))
}

func TestErrorMessageNil(t *testing.T) {
	if got := ErrorMessage(nil); got != "" {
		t.Errorf("ErrorMessage(nil) = %q, want empty", got)
	}
}

func TestAssignmentsUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Assignments
		wantErr bool
	}{
		{"object numbers", `{"0":2,"5":-1}`, Assignments{0: "2", 5: "-1"}, false},
		{"object strings", `{"0":"2"}`, Assignments{0: "2"}, false},
		{"records", `[{"Cluster":1},{"Cluster":0}]`, Assignments{0: "1", 1: "0"}, false},
		{"null", `null`, nil, false},
		{"bad index", `{"x":1}`, nil, true},
		{"record without cluster", `[{"Age":3}]`, nil, true},
		{"scalar", `7`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assignments
			err := json.Unmarshal([]byte(tt.in), &a)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, a)
		})
	}
}
