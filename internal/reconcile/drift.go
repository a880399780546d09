package reconcile

import (
	"context"

	"go.uber.org/zap"
)

// Decision is the verdict of one drift evaluation.
type Decision string

const (
	DecisionInsufficientData Decision = "insufficient_data"
	DecisionWithinThreshold  Decision = "within_threshold"
	DecisionRetrainScheduled Decision = "retrain_scheduled"
)

// RetrainScheduler hands retraining requests to an out-of-band
// executor. TryEnqueue must not block; it reports whether the request
// was accepted.
type RetrainScheduler interface {
	TryEnqueue(region, crop string) bool
}

// Detector evaluates rolling RMSE against the drift threshold after
// each promotion and schedules retraining when the model has drifted.
// Evaluation never fails the write path that triggered it.
type Detector struct {
	window    *Window
	threshold float64
	scheduler RetrainScheduler
}

// NewDetector creates a drift detector. threshold is the RMSE above
// which retraining is scheduled.
func NewDetector(window *Window, threshold float64, scheduler RetrainScheduler) *Detector {
	return &Detector{window: window, threshold: threshold, scheduler: scheduler}
}

// Evaluate computes the rolling RMSE for (region, crop) as of the given
// date and schedules retraining if it exceeds the threshold. The
// hand-off is fire-and-forget: a full queue drops the request, to be
// re-raised by the next qualifying price report.
func (d *Detector) Evaluate(ctx context.Context, region, crop, asOf string) (Decision, error) {
	res, err := d.window.RollingRMSE(ctx, region, crop, asOf)
	if err != nil {
		return "", err
	}

	log := zap.L().With(
		zap.String("region", region), zap.String("crop", crop), zap.String("as_of", asOf),
		zap.Int("samples", res.SampleCount),
	)

	if !res.Sufficient {
		log.Debug("not enough error samples in rolling window")
		return DecisionInsufficientData, nil
	}

	if res.RMSE <= d.threshold {
		log.Info("rolling rmse within threshold", zap.Float64("rmse", res.RMSE))
		return DecisionWithinThreshold, nil
	}

	log.Warn("rolling rmse exceeds threshold, scheduling retraining",
		zap.Float64("rmse", res.RMSE), zap.Float64("threshold", d.threshold),
	)
	if !d.scheduler.TryEnqueue(region, crop) {
		log.Warn("retraining queue full, request dropped")
	}
	return DecisionRetrainScheduled, nil
}
