package pipeline

import (
	"time"

	"findoc-backend/internal/shared/metrics"
)

// MetricsObserver records stage outcomes and durations.
type MetricsObserver struct{}

func (MetricsObserver) OnStageStart(name string, index int) {}

func (MetricsObserver) OnStageFinish(name string, index int, elapsed time.Duration, err error) {
	outcome := "ok"
	if se, ok := AsStageError(err); ok {
		outcome = string(se.Kind)
	}
	metrics.ObserveStage(name, outcome, float64(elapsed.Milliseconds()))
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) OnStageStart(name string, index int) {
	for _, ob := range o {
		ob.OnStageStart(name, index)
	}
}

func (o Observers) OnStageFinish(name string, index int, elapsed time.Duration, err error) {
	for _, ob := range o {
		ob.OnStageFinish(name, index, elapsed, err)
	}
}
