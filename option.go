package actgate

import (
	"time"

	"github.com/viant/x"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sigil-dev/actgate/model/types"
	"github.com/sigil-dev/actgate/policy"
	"github.com/sigil-dev/actgate/service/audit"
	dproposal "github.com/sigil-dev/actgate/service/dao/proposal"
	"github.com/sigil-dev/actgate/service/executor"
	"github.com/sigil-dev/actgate/service/gateway"
	"github.com/sigil-dev/actgate/service/ledger"
	"github.com/sigil-dev/actgate/service/messaging"
	"github.com/sigil-dev/actgate/service/notify"
	"github.com/sigil-dev/actgate/tracing"
)

// Option customises the Service.
type Option func(s *Service)

// WithProposalStore sets the ledger persistence backend.
func WithProposalStore(store dproposal.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithAuditConfig sets the audit log configuration.
func WithAuditConfig(config audit.Config) Option {
	return func(s *Service) { s.auditConfig = config }
}

// WithAuditService sets a pre-built audit service, overriding WithAuditConfig.
func WithAuditService(service *audit.Service) Option {
	return func(s *Service) { s.auditService = service }
}

// WithPolicy sets the auto-approval policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPolicyURL loads the auto-approval policy from a URL at start-up.
func WithPolicyURL(URL string) Option {
	return func(s *Service) { s.policyURL = URL }
}

// WithExtensionTypes registers additional data types with the capability
// registry.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithCapabilityServices registers additional capability backends.
func WithCapabilityServices(services ...types.Service) Option {
	return func(s *Service) { s.extensionServices = services }
}

// WithNotificationQueue overrides the notification queue (e.g. with a
// filesystem-backed one).
func WithNotificationQueue(queue messaging.Queue[notify.Notification]) Option {
	return func(s *Service) { s.notifyQueue = queue }
}

// WithQueueVendor selects the notification queue backend by vendor name;
// the fs vendor persists notifications under basePath.
func WithQueueVendor(vendor messaging.Vendor, basePath string) Option {
	return func(s *Service) {
		s.queueVendor = vendor
		s.queueBasePath = basePath
	}
}

// WithEventQueue publishes ledger events to the supplied queue.
func WithEventQueue(queue messaging.Queue[ledger.Event]) Option {
	return func(s *Service) { s.eventQueue = queue }
}

// WithGatewayConfig sets the execution gateway configuration.
func WithGatewayConfig(config gateway.Config) Option {
	return func(s *Service) { s.gatewayConfig = config }
}

// WithOverdueAfter sets the threshold after which pending proposals are
// flagged overdue.
func WithOverdueAfter(threshold time.Duration) Option {
	return func(s *Service) { s.overdueAfter = threshold }
}

// WithOverdueScanInterval sets how often the runtime scans for overdue
// proposals.
func WithOverdueScanInterval(interval time.Duration) Option {
	return func(s *Service) { s.overdueInterval = interval }
}

// WithDedupTTL bounds how long submission fingerprints are remembered.
func WithDedupTTL(ttl time.Duration) Option {
	return func(s *Service) { s.dedupTTL = ttl }
}

// WithExecutorOptions supplies additional options to executor.NewService
// (e.g. an invocation listener).
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Service) {
		s.executorOptions = append(s.executorOptions, opts...)
	}
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty traces go to os.Stdout. Safe to call multiple times;
// the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter (OTLP, Jaeger, Zipkin...).
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
