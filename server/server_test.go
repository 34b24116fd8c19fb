package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/edustats/dropout/config"
	"github.com/edustats/dropout/experiment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// trainBundle runs a small binary experiment and returns its bundle.
func trainBundle(t *testing.T) *experiment.Bundle {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Grade,Absences,Target\n")
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "%d,%d,Dropout\n", 7+i%3, 22+i%5)
	}
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "%d,%d,Graduate\n", 16+i%3, i%5)
	}
	dataPath := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(dataPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	src := fmt.Sprintf(`
dataset {
  path           = %q
  target         = "Target"
  positive_label = "Dropout"
}

model "knn" {
  k = 3
}

model "logistic_regression" {}

output {
  model_dir = %q
}
`, dataPath, filepath.Join(dir, "out"))
	exp, err := config.ParseExperiment([]byte(src), "server.hcl")
	if err != nil {
		t.Fatal(err)
	}

	result, err := experiment.Run(exp)
	if err != nil {
		t.Fatal(err)
	}
	return result.Bundle
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	router := New(nil).Router()
	w := doJSON(t, router, http.MethodGet, "/api/ping", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPredictWithoutBundle(t *testing.T) {
	router := New(nil).Router()

	w := doJSON(t, router, http.MethodPost, "/api/predict", map[string]interface{}{
		"records": []map[string]interface{}{{"Grade": 10}},
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/models", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("models status = %d, want 503", w.Code)
	}
}

func TestModels(t *testing.T) {
	bundle := trainBundle(t)
	router := New(bundle).Router()

	w := doJSON(t, router, http.MethodGet, "/api/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Models         []string `json:"models"`
		Best           string   `json:"best"`
		FeatureColumns []string `json:"feature_columns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Models) != 2 {
		t.Errorf("models = %v", resp.Models)
	}
	if resp.Best == "" {
		t.Error("best model missing")
	}
	if len(resp.FeatureColumns) != 2 {
		t.Errorf("feature_columns = %v", resp.FeatureColumns)
	}
}

func TestPredict(t *testing.T) {
	bundle := trainBundle(t)
	router := New(bundle).Router()

	// Numeric JSON values are accepted alongside strings.
	w := doJSON(t, router, http.MethodPost, "/api/predict", map[string]interface{}{
		"records": []map[string]interface{}{
			{"Grade": 8, "Absences": 25},
			{"Grade": "17", "Absences": "1"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Model       string `json:"model"`
		Predictions []struct {
			Label         string             `json:"label"`
			Probabilities map[string]float64 `json:"probabilities"`
		} `json:"predictions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Model == "" {
		t.Error("response should name the model used")
	}
	if len(resp.Predictions) != 2 {
		t.Fatalf("got %d predictions", len(resp.Predictions))
	}
	if resp.Predictions[0].Label != "Dropout" {
		t.Errorf("struggling student predicted %q", resp.Predictions[0].Label)
	}
	if resp.Predictions[1].Label != "Not Dropout" {
		t.Errorf("strong student predicted %q", resp.Predictions[1].Label)
	}
	if len(resp.Predictions[0].Probabilities) != 2 {
		t.Errorf("probabilities = %v", resp.Predictions[0].Probabilities)
	}
}

func TestPredictBadRequests(t *testing.T) {
	bundle := trainBundle(t)
	router := New(bundle).Router()

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{
			name: "missing feature column",
			body: map[string]interface{}{
				"records": []map[string]interface{}{{"Grade": 10}},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "non-numeric feature",
			body: map[string]interface{}{
				"records": []map[string]interface{}{{"Grade": "abc", "Absences": 3}},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown model",
			body: map[string]interface{}{
				"model":   "random_forest",
				"records": []map[string]interface{}{{"Grade": 10, "Absences": 3}},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "empty records",
			body: map[string]interface{}{"records": []map[string]interface{}{}},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/predict", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSetBundle(t *testing.T) {
	srv := New(nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodGet, "/api/models", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before a bundle is set", w.Code)
	}

	srv.SetBundle(trainBundle(t))
	w = doJSON(t, router, http.MethodGet, "/api/models", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d after SetBundle", w.Code)
	}
}
