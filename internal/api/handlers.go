package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"irisml/internal/dataset"
	"irisml/internal/logging"
	"irisml/internal/predict"
	"irisml/internal/telemetry"
	"irisml/internal/tracking"
)

// Predictor is the serving side of *predict.Service.
type Predictor interface {
	Ready() bool
	Predict(features *dataset.Table) (string, error)
	Reload(ctx context.Context) (tracking.ModelVersion, error)
	ModelName() string
}

// IrisFeatures is the /predict request body. Pointers let a literal 0 pass
// the required check while a missing field fails it.
type IrisFeatures struct {
	SepalLength *Measurement `json:"sepal_length" binding:"required"`
	SepalWidth  *Measurement `json:"sepal_width" binding:"required"`
	PetalLength *Measurement `json:"petal_length" binding:"required"`
	PetalWidth  *Measurement `json:"petal_width" binding:"required"`
}

func (f IrisFeatures) values() []float64 {
	return []float64{float64(*f.SepalLength), float64(*f.SepalWidth), float64(*f.PetalLength), float64(*f.PetalWidth)}
}

// Measurement is a finite float that also accepts a numeric string ("5.1").
type Measurement float64

func (m *Measurement) UnmarshalJSON(b []byte) error {
	s := string(b)
	if uq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(uq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not a valid number", b)
	}
	*m = Measurement(v)
	return nil
}

type Prediction struct {
	Prediction string `json:"prediction"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
}

const (
	ModelLoaded     = "loaded"
	ModelLoadFailed = "load_failed"
)

// HealthCheck reports liveness plus whether a model is serving.
func HealthCheck(p Predictor) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := ModelLoadFailed
		if p.Ready() {
			st = ModelLoaded
		}
		c.JSON(http.StatusOK, HealthResponse{Status: "ok", ModelStatus: st})
	}
}

// HandlePredict classifies one set of measurements.
func HandlePredict(p Predictor, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		outcome := "ok"
		defer func() {
			if m != nil {
				m.PredictionsTotal.WithLabelValues(outcome).Inc()
				m.PredictionDuration.Observe(time.Since(start).Seconds())
			}
		}()

		var req IrisFeatures
		if err := c.ShouldBindJSON(&req); err != nil {
			outcome = "invalid"
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		if !p.Ready() {
			outcome = "unavailable"
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Model is not available. Check server logs."})
			return
		}

		features, err := predict.FeatureTable(req.values())
		if err == nil {
			var label string
			if label, err = p.Predict(features); err == nil {
				c.JSON(http.StatusOK, Prediction{Prediction: label})
				return
			}
		}
		if errors.Is(err, predict.ErrModelUnavailable) {
			outcome = "unavailable"
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Model is not available. Check server logs."})
			return
		}
		outcome = "error"
		logging.For("api").Warn("prediction failed", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Prediction error: %v", err)})
	}
}

// HandleReload loads the newest registered version. onChange, if set, is
// told whether a model is serving afterwards.
func HandleReload(p Predictor, onChange func(ready bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		mv, err := p.Reload(c.Request.Context())
		if onChange != nil {
			onChange(p.Ready())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"model":   p.ModelName(),
			"version": mv.Version,
			"run_id":  mv.RunID,
		})
	}
}
