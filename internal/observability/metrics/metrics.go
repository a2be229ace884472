package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	schedulesGenerated metric.Int64Counter
	adjustmentsApplied metric.Int64Counter
	entriesPosted      metric.Int64Counter
	ledgerExports      metric.Int64Counter
	reconciliationRuns metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "revrec"
	}
	meter := provider.Meter(name)

	schedulesGenerated, err := meter.Int64Counter("revrec_schedules_generated_total")
	if err != nil {
		return nil, err
	}
	adjustmentsApplied, err := meter.Int64Counter("revrec_adjustments_applied_total")
	if err != nil {
		return nil, err
	}
	entriesPosted, err := meter.Int64Counter("revrec_entries_posted_total")
	if err != nil {
		return nil, err
	}
	ledgerExports, err := meter.Int64Counter("revrec_ledger_exports_total")
	if err != nil {
		return nil, err
	}
	reconciliationRuns, err := meter.Int64Counter("revrec_reconciliation_runs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		schedulesGenerated: schedulesGenerated,
		adjustmentsApplied: adjustmentsApplied,
		entriesPosted:      entriesPosted,
		ledgerExports:      ledgerExports,
		reconciliationRuns: reconciliationRuns,
	}, nil
}

// RecordScheduleGenerated increments generated schedule counts.
func (m *Metrics) RecordScheduleGenerated(ctx context.Context) {
	if m == nil {
		return
	}
	m.schedulesGenerated.Add(ctx, 1)
}

// RecordAdjustment increments applied adjustment counts by strategy.
func (m *Metrics) RecordAdjustment(ctx context.Context, strategy string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("strategy", strings.TrimSpace(strategy)))
	m.adjustmentsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEntryPosted increments posted schedule entry counts.
func (m *Metrics) RecordEntryPosted(ctx context.Context) {
	if m == nil {
		return
	}
	m.entriesPosted.Add(ctx, 1)
}

// RecordLedgerExport increments ledger export counts by provider and outcome.
func (m *Metrics) RecordLedgerExport(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.ledgerExports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliationRun increments reconciliation run counts by scope and outcome.
func (m *Metrics) RecordReconciliationRun(ctx context.Context, scope string, matched bool) {
	if m == nil {
		return
	}
	outcome := "mismatched"
	if matched {
		outcome = "matched"
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("outcome", outcome),
	)
	m.reconciliationRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"strategy":    {},
	"provider":    {},
	"scope":       {},
	"outcome":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
