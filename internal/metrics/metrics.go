// Package metrics emits operational metrics to CloudWatch. Every recorder
// method is safe on a nil receiver so deployments without CloudWatch
// configured pay nothing; emission failures are logged and absorbed, never
// returned, because telemetry must not interfere with the reconciliation path.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"zonewatch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder publishes zonewatch metrics to a CloudWatch namespace.
//
// Metrics emitted:
//   - ReconcilePass: Dims {Trigger} -- one per reconciliation pass, value is pass duration in ms
//   - TransitionDetected: Dims {Direction, Category, Severity} -- one per ENTER/EXIT
//   - AlertDispatched / AlertDispatchFailed: no dims -- dispatch outcomes
//   - PositioningFailure: Dims {Trigger} -- degraded-path entries
//   - PersistenceFailure: Dims {Reason} -- absorbed blob store failures
//   - SignalDropped: Dims {Reason} -- background signals dropped before reconciliation
//   - ArchiveBatch: no dims -- entries captured per archive run
//   - APIRequest: Dims {Method, Endpoint, Status} -- one per HTTP request, value is latency in ms
type Recorder struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewRecorder creates a Recorder publishing to the zonewatch namespace.
func NewRecorder(client CloudWatchClient, logger types.Logger) *Recorder {
	return &Recorder{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// put emits a single datum, logging and absorbing any failure.
func (r *Recorder) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	if r == nil || r.client == nil {
		return
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Dimensions: dims,
			},
		},
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", name,
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// ReconcilePass records one reconciliation pass and its duration.
func (r *Recorder) ReconcilePass(ctx context.Context, trigger types.ReconcileTrigger, duration time.Duration) {
	r.put(ctx, types.MetricReconcilePass, float64(duration.Milliseconds()),
		cwtypes.StandardUnitMilliseconds,
		dim(types.DimTrigger, string(trigger)))
}

// TransitionDetected records one detected zone transition.
func (r *Recorder) TransitionDetected(ctx context.Context, direction types.TransitionDirection, zone types.DisasterZone) {
	r.put(ctx, types.MetricTransitionDetected, 1, cwtypes.StandardUnitCount,
		dim(types.DimDirection, string(direction)),
		dim(types.DimCategory, string(zone.Category)),
		dim(types.DimSeverity, string(zone.Severity)))
}

// AlertDispatched records one successful alert dispatch.
func (r *Recorder) AlertDispatched(ctx context.Context) {
	r.put(ctx, types.MetricAlertDispatched, 1, cwtypes.StandardUnitCount)
}

// AlertDispatchFailed records one failed alert dispatch.
func (r *Recorder) AlertDispatchFailed(ctx context.Context) {
	r.put(ctx, types.MetricAlertDispatchFailed, 1, cwtypes.StandardUnitCount)
}

// PositioningFailure records a positioning collaborator failure on the given
// trigger path.
func (r *Recorder) PositioningFailure(ctx context.Context, trigger types.ReconcileTrigger) {
	r.put(ctx, types.MetricPositioningFailure, 1, cwtypes.StandardUnitCount,
		dim(types.DimTrigger, string(trigger)))
}

// PersistenceFailure records an absorbed blob-store failure. Reason names the
// failing operation (load, save, clear, append).
func (r *Recorder) PersistenceFailure(ctx context.Context, reason string) {
	r.put(ctx, types.MetricPersistenceFailure, 1, cwtypes.StandardUnitCount,
		dim(types.DimReason, reason))
}

// SignalDropped records a background region signal discarded before
// reconciliation (unknown zone, malformed payload).
func (r *Recorder) SignalDropped(ctx context.Context, reason string) {
	r.put(ctx, types.MetricSignalDropped, 1, cwtypes.StandardUnitCount,
		dim(types.DimReason, reason))
}

// ArchiveBatch records the number of entries captured by one archive run.
func (r *Recorder) ArchiveBatch(ctx context.Context, entries int) {
	r.put(ctx, types.MetricArchiveBatch, float64(entries), cwtypes.StandardUnitCount)
}

// RecordRequest records one served HTTP request and its latency.
func (r *Recorder) RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration) {
	r.put(ctx, types.MetricAPIRequest, float64(duration.Milliseconds()),
		cwtypes.StandardUnitMilliseconds,
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status))
}
