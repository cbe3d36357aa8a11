package tracking

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("tracking: not found")

type RunStatus string

const (
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusFailed   RunStatus = "FAILED"
)

type Experiment struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Run struct {
	ID           string
	ExperimentID string
	Name         string
	Status       RunStatus
	StartTime    time.Time
	EndTime      time.Time // zero while running
	Params       map[string]string
	Metrics      map[string]float64 // latest value per key
}

type ModelVersion struct {
	Name      string
	Version   int
	RunID     string
	Artifact  []byte
	CreatedAt time.Time
}
