// Package fakeapi is a canned analytics service speaking the same HTTP
// contract as the hosted one. It backs client tests and the
// `insight fake-api` dev command. Clustering is a deterministic stand-in
// over synthetic customers, not a real algorithm.
package fakeapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/logging"
)

// Options configures the fake service.
type Options struct {
	Records      int           // synthetic customers; default 350
	Seed         uint64        // dataset seed; default 42
	Latency      time.Duration // added to every response
	FailBoxplot  bool          // boxplot endpoint always answers 500
	AllowOrigins []string      // CORS origins; default all
}

// Server serves the analytics endpoints.
type Server struct {
	opts   Options
	data   []customer
	engine *gin.Engine

	mu    sync.Mutex
	calls map[string]int
}

// New builds the service and its routes.
func New(opts Options) *Server {
	if opts.Records <= 0 {
		opts.Records = 350
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		opts:  opts,
		data:  generate(opts.Records, opts.Seed),
		calls: map[string]int{},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.track())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "records": len(s.data)})
	})

	seg := router.Group("/segmentation")
	{
		seg.GET("/features", s.features)
		seg.POST("/kmeans", s.kmeans)
		seg.POST("/dbscan", s.dbscan)
		seg.POST("/boxplot", s.boxplot)
	}

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Calls returns how many requests hit path (e.g. "/segmentation/boxplot").
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// track counts requests, applies the configured latency and logs.
func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[c.Request.URL.Path]++
		s.mu.Unlock()

		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		start := time.Now()
		c.Next()
		logging.Debug("fake api request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "elapsed", time.Since(start))
	}
}

func (s *Server) features(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": Catalog})
}

func (s *Server) kmeans(c *gin.Context) {
	var req analytics.KMeansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, "body", err.Error())
		return
	}
	if !s.checkFeatures(c, req.Features) {
		return
	}
	if req.NClusters < 2 || req.NClusters > 10 {
		unprocessable(c, "n_clusters", "Input should be between 2 and 10")
		return
	}
	labels := partition(s.data, req.Features, req.NClusters)
	c.JSON(http.StatusOK, s.clusterResponse(req.Features, labels))
}

func (s *Server) dbscan(c *gin.Context) {
	var req analytics.DBSCANRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, "body", err.Error())
		return
	}
	if !s.checkFeatures(c, req.Features) {
		return
	}
	if req.Eps <= 0 {
		unprocessable(c, "eps", "Input should be greater than 0")
		return
	}
	if req.MinSamples < 1 {
		unprocessable(c, "min_samples", "Input should be greater than or equal to 1")
		return
	}
	labels := density(s.data, req.Features, req.Eps, req.MinSamples)
	c.JSON(http.StatusOK, s.clusterResponse(req.Features, labels))
}

func (s *Server) boxplot(c *gin.Context) {
	var req analytics.BoxplotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, "body", err.Error())
		return
	}
	if !s.checkFeatures(c, req.Features) {
		return
	}
	if !numeric(req.FeatureToPlot) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Cannot plot feature: %s", req.FeatureToPlot)})
		return
	}
	if req.NClusters < 2 || req.NClusters > 10 {
		unprocessable(c, "n_clusters", "Input should be between 2 and 10")
		return
	}
	if s.opts.FailBoxplot {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "boxplot rendering failed"})
		return
	}

	labels := partition(s.data, req.Features, req.NClusters)
	groups := make([][]float64, req.NClusters)
	for i, l := range labels {
		v, _ := s.data[i].value(req.FeatureToPlot)
		groups[l] = append(groups[l], v)
	}
	img, err := renderBoxplot(groups)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analytics.BoxplotResponse{ImageBase64: base64.StdEncoding.EncodeToString(img)})
}

// checkFeatures rejects empty or unknown feature lists with a 400.
func (s *Server) checkFeatures(c *gin.Context, features []string) bool {
	if len(features) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No features provided"})
		return false
	}
	for _, f := range features {
		if _, ok := s.data[0].value(f); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid feature: " + f})
			return false
		}
	}
	return true
}

// clusterResponse builds the body in the hosted service's shape:
// assignments as a list of records carrying their Cluster.
func (s *Server) clusterResponse(features []string, labels []int) gin.H {
	records := make([]gin.H, len(s.data))
	for i, c := range s.data {
		rec := gin.H{"Cluster": labels[i]}
		for _, f := range features {
			rec[f], _ = c.value(f)
		}
		records[i] = rec
	}
	return gin.H{"assignments": records, "stats": summarize(s.data, labels)}
}

func numeric(feature string) bool {
	for _, f := range Catalog {
		if f.Value == feature {
			return f.Type == analytics.FeatureNumeric
		}
	}
	return false
}

// unprocessable mimics FastAPI's 422 validation body.
func unprocessable(c *gin.Context, field, msg string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{
		"loc":  []string{"body", field},
		"msg":  msg,
		"type": "value_error",
	}}})
}
