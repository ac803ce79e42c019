package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricReconcilePass       = "ReconcilePass"
	MetricTransitionDetected  = "TransitionDetected"
	MetricAlertDispatched     = "AlertDispatched"
	MetricAlertDispatchFailed = "AlertDispatchFailed"
	MetricPositioningFailure  = "PositioningFailure"
	MetricPersistenceFailure  = "PersistenceFailure"
	MetricSignalDropped       = "SignalDropped"
	MetricArchiveBatch        = "ArchiveBatch"
	MetricAPIRequest          = "APIRequest"

	// Dimension Keys
	DimDirection = "Direction"
	DimCategory  = "Category"
	DimSeverity  = "Severity"
	DimTrigger   = "Trigger"
	DimReason    = "Reason"
	DimMethod    = "Method"
	DimEndpoint  = "Endpoint"
	DimStatus    = "Status"

	// Metric Namespace
	MetricNamespace = "ZoneWatch"
)
