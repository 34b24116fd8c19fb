// Package server exposes a trained bundle over HTTP: a prediction endpoint
// for student records plus small introspection routes.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edustats/dropout/experiment"
	"github.com/edustats/dropout/pkg/errors"
)

// Server holds the bundle behind the prediction API. The bundle can be
// swapped at runtime after a retrain.
type Server struct {
	mu     sync.RWMutex
	bundle *experiment.Bundle
}

// New creates a server. A nil bundle is allowed; prediction routes answer
// 503 until SetBundle installs one.
func New(bundle *experiment.Bundle) *Server {
	return &Server{bundle: bundle}
}

// SetBundle installs a new bundle, replacing the current one.
func (s *Server) SetBundle(bundle *experiment.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = bundle
}

func (s *Server) currentBundle() *experiment.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/models", s.handleModels)
	api.POST("/predict", s.handlePredict)
	return r
}

// Run starts the HTTP server on addr and blocks.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

type modelsResponse struct {
	Models         []string       `json:"models"`
	Best           string         `json:"best"`
	Classes        map[int]string `json:"classes"`
	FeatureColumns []string       `json:"feature_columns"`
	TrainedAt      time.Time      `json:"trained_at"`
}

func (s *Server) handleModels(c *gin.Context) {
	bundle := s.currentBundle()
	if bundle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no model bundle loaded"})
		return
	}

	c.JSON(http.StatusOK, modelsResponse{
		Models:         bundle.ModelNames(),
		Best:           bundle.Best,
		Classes:        bundle.ClassNames(),
		FeatureColumns: bundle.FeatureColumns,
		TrainedAt:      bundle.TrainedAt,
	})
}

// predictRequest carries the records to score. Feature values may be JSON
// strings or numbers; both are normalized to cell strings.
type predictRequest struct {
	Model   string                   `json:"model"`
	Records []map[string]interface{} `json:"records" binding:"required"`
}

type predictionJSON struct {
	Code          int                `json:"code"`
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

func (s *Server) handlePredict(c *gin.Context) {
	bundle := s.currentBundle()
	if bundle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no model bundle loaded"})
		return
	}

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records must not be empty"})
		return
	}

	records := make([]map[string]string, len(req.Records))
	for i, rec := range req.Records {
		cells := make(map[string]string, len(rec))
		for k, v := range rec {
			cells[k] = cellString(v)
		}
		records[i] = cells
	}

	preds, err := bundle.Predict(req.Model, records)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	out := make([]predictionJSON, len(preds))
	for i, p := range preds {
		out[i] = predictionJSON{Code: p.Code, Label: p.Label, Probabilities: p.Probabilities}
	}
	c.JSON(http.StatusOK, gin.H{"model": modelOrBest(req.Model, bundle), "predictions": out})
}

func modelOrBest(name string, bundle *experiment.Bundle) string {
	if name == "" {
		return bundle.Best
	}
	return name
}

// cellString normalizes a JSON value to the string form the pipeline's cell
// parsing expects.
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// statusFor maps pipeline errors to HTTP statuses: client mistakes (bad
// columns, bad values, wrong shapes) are 400, an unfitted model is 503.
func statusFor(err error) int {
	var (
		valueErr      *errors.ValueError
		validationErr *errors.ValidationError
		dimErr        *errors.DimensionError
		notFitted     *errors.NotFittedError
	)
	switch {
	case errors.As(err, &notFitted):
		return http.StatusServiceUnavailable
	case errors.As(err, &valueErr), errors.As(err, &validationErr), errors.As(err, &dimErr):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrEmptyData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
