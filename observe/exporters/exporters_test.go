package exporters

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewTracingExporter(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		endpoint string
		wantErr  error
		wantNil  bool
	}{
		{name: "stdout", exporter: "stdout"},
		{name: "none", exporter: "none", wantNil: true},
		{name: "empty", exporter: "", wantNil: true},
		{name: "otlp with endpoint", exporter: "otlp", endpoint: "http://localhost:4317"},
		{name: "otlp without endpoint", exporter: "otlp", wantErr: ErrEndpointNotConfigured},
		{name: "unknown", exporter: "jaeger", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.endpoint)
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

			exp, err := NewTracingExporter(context.Background(), tt.exporter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewTracingExporter(%q) error = %v, want %v", tt.exporter, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTracingExporter(%q) error = %v", tt.exporter, err)
			}
			if (exp == nil) != tt.wantNil {
				t.Errorf("NewTracingExporter(%q) nil = %v, want %v", tt.exporter, exp == nil, tt.wantNil)
			}
		})
	}
}

func TestNewMetricsReader(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		endpoint string
		wantErr  error
	}{
		{name: "stdout", exporter: "stdout"},
		{name: "none", exporter: "none"},
		{name: "prometheus", exporter: "prometheus"},
		{name: "otlp with endpoint", exporter: "otlp", endpoint: "http://localhost:4317"},
		{name: "otlp without endpoint", exporter: "otlp", wantErr: ErrEndpointNotConfigured},
		{name: "unknown", exporter: "statsd", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.endpoint)
			t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

			reader, err := NewMetricsReader(context.Background(), tt.exporter, prometheus.NewRegistry())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewMetricsReader(%q) error = %v, want %v", tt.exporter, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMetricsReader(%q) error = %v", tt.exporter, err)
			}
			if reader == nil {
				t.Fatalf("NewMetricsReader(%q) returned nil reader", tt.exporter)
			}
		})
	}
}

func TestNewMetricsReader_PrometheusRegistersPerRegistry(t *testing.T) {
	for i := 0; i < 2; i++ {
		if _, err := NewMetricsReader(context.Background(), "prometheus", prometheus.NewRegistry()); err != nil {
			t.Fatalf("reader %d: error = %v", i, err)
		}
	}
}
