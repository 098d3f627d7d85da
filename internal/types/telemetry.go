package types

// Metric names for CloudWatch and Prometheus. Components use these constants
// so both sinks report the same series.
const (
	MetricRunCompleted        = "RunCompleted"
	MetricRunFailed           = "RunFailed"
	MetricRunDuration         = "RunDuration"
	MetricExpiringIngredients = "ExpiringIngredients"
	MetricEmailsSent          = "EmailsSent"
	MetricEmailErrors         = "EmailErrors"
	MetricLogErrors           = "LogErrors"
	MetricAlreadyNotified     = "AlreadyNotified"
	MetricExternalAPIFailure  = "ExternalAPIFailure"
	MetricAPILatency          = "APILatency"

	// Dimension keys
	DimMode     = "Mode"
	DimProvider = "Provider"
	DimEndpoint = "Endpoint"
	DimTrigger  = "Trigger"

	MetricNamespace = "PantryNotify"
)
