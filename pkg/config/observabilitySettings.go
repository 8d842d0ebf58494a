package config

// Observability configures tracing export. TracingURL may be empty, in which
// case telemetry initialization is skipped.
type Observability struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	TracingURL  string `mapstructure:"tracing_url" validate:"omitempty,url"`
}
