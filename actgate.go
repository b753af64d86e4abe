package actgate

import (
	"context"
	"log"
	"time"

	"github.com/viant/afs"
	"github.com/viant/x"

	"github.com/sigil-dev/actgate/extension"
	mproposal "github.com/sigil-dev/actgate/model/proposal"
	"github.com/sigil-dev/actgate/model/types"
	"github.com/sigil-dev/actgate/policy"
	"github.com/sigil-dev/actgate/service/action/nop"
	"github.com/sigil-dev/actgate/service/action/printer"
	aexec "github.com/sigil-dev/actgate/service/action/system/exec"
	asecret "github.com/sigil-dev/actgate/service/action/system/secret"
	"github.com/sigil-dev/actgate/service/audit"
	dproposal "github.com/sigil-dev/actgate/service/dao/proposal"
	pmemory "github.com/sigil-dev/actgate/service/dao/proposal/memory"
	"github.com/sigil-dev/actgate/service/executor"
	"github.com/sigil-dev/actgate/service/gateway"
	"github.com/sigil-dev/actgate/service/ledger"
	"github.com/sigil-dev/actgate/service/messaging"
	qfs "github.com/sigil-dev/actgate/service/messaging/fs"
	"github.com/sigil-dev/actgate/service/notify"
)

// Service is the approval gateway façade: it wires the ledger, the
// execution gateway, the audit trail and the capability registry together.
type Service struct {
	runtime           *Runtime
	capabilities      *extension.Capabilities
	extensionTypes    []*x.Type
	extensionServices []types.Service
	store             dproposal.Store
	auditConfig       audit.Config
	auditService      *audit.Service
	policy            *policy.Policy
	policyURL         string
	notifyQueue       messaging.Queue[notify.Notification]
	eventQueue        messaging.Queue[ledger.Event]
	queueVendor       messaging.Vendor
	queueBasePath     string
	gatewayConfig     gateway.Config
	overdueAfter      time.Duration
	overdueInterval   time.Duration
	dedupTTL          time.Duration
	executorOptions   []executor.Option
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()

	s.capabilities = extension.NewCapabilities(s.extensionTypes...)
	s.capabilities.Register(printer.New())
	s.capabilities.Register(nop.New())
	s.capabilities.Register(aexec.New())
	s.capabilities.Register(asecret.New())
	for _, service := range s.extensionServices {
		s.capabilities.Register(service)
	}

	notifier := notify.New(notify.WithQueue(s.notifyQueue))

	ledgerOptions := []ledger.Option{
		ledger.WithStore(s.store),
		ledger.WithCapabilities(s.capabilities),
		ledger.WithNotifier(notifier),
		ledger.WithOverdueAfter(s.overdueAfter),
		ledger.WithDedupTTL(s.dedupTTL),
	}
	if s.policy != nil {
		ledgerOptions = append(ledgerOptions, ledger.WithPolicy(s.policy))
	}
	if s.eventQueue != nil {
		ledgerOptions = append(ledgerOptions, ledger.WithEvents(s.eventQueue))
	}
	ledgerService := ledger.New(ledgerOptions...)

	executorService := executor.NewService(s.capabilities, s.executorOptions...)
	gatewayService := gateway.New(ledgerService, executorService, s.auditService, notifier, s.gatewayConfig)

	s.runtime = &Runtime{
		ledger:          ledgerService,
		gateway:         gatewayService,
		notifier:        notifier,
		overdueInterval: s.overdueInterval,
		shutdownCh:      make(chan struct{}),
	}
}

func (s *Service) ensureBaseSetup() {
	defaults := DefaultConfig()
	if s.store == nil {
		s.store = pmemory.New()
	}
	if s.auditConfig.BaseURL == "" {
		s.auditConfig = defaults.Audit
		s.auditConfig.BaseURL = "audit"
	}
	if s.auditService == nil {
		auditService, err := audit.New(s.auditConfig)
		if err != nil {
			log.Printf("actgate: failed to initialise audit log: %v", err)
		}
		s.auditService = auditService
	}
	if s.overdueAfter <= 0 {
		s.overdueAfter = defaults.OverdueAfter
	}
	if s.overdueInterval <= 0 {
		s.overdueInterval = defaults.OverdueScanInterval
	}
	if s.dedupTTL <= 0 {
		s.dedupTTL = defaults.DedupTTL
	}
	if s.notifyQueue == nil && s.queueVendor == messaging.VendorFs {
		queue, err := qfs.NewQueue[notify.Notification](afs.New(), qfs.Config{BasePath: s.queueBasePath})
		if err != nil {
			log.Printf("actgate: failed to initialise fs notification queue: %v", err)
		} else {
			s.notifyQueue = queue
		}
	}
	if s.policy == nil && s.policyURL != "" {
		loaded, err := policy.Load(context.Background(), s.policyURL)
		if err != nil {
			// fail closed: no policy means nothing is auto-approved
			log.Printf("actgate: failed to load policy %s: %v", s.policyURL, err)
		} else {
			s.policy = loaded
		}
	}
}

// Submit records a new action proposal.
func (s *Service) Submit(ctx context.Context, prop *mproposal.Proposal) (string, error) {
	return s.runtime.ledger.Submit(ctx, prop)
}

// Decide applies a human verdict to a pending proposal.
func (s *Service) Decide(ctx context.Context, id string, decision ledger.Decision, approver, reason string) (*mproposal.Proposal, error) {
	return s.runtime.ledger.Decide(ctx, id, decision, approver, reason)
}

// ListPending returns the approval inbox.
func (s *Service) ListPending(ctx context.Context) ([]*ledger.Pending, error) {
	return s.runtime.ledger.ListPending(ctx)
}

// Proposal returns a proposal by id.
func (s *Service) Proposal(ctx context.Context, id string) (*mproposal.Proposal, error) {
	return s.runtime.ledger.Get(ctx, id)
}

// Ledger returns the approval ledger.
func (s *Service) Ledger() *ledger.Service {
	return s.runtime.ledger
}

// Audit returns the audit log.
func (s *Service) Audit() *audit.Service {
	return s.auditService
}

// Notifications returns the notification queue consumers drain.
func (s *Service) Notifications() messaging.Queue[notify.Notification] {
	return s.runtime.notifier.Queue()
}

// Capabilities returns the capability registry.
func (s *Service) Capabilities() *extension.Capabilities {
	return s.capabilities
}

// RegisterCapability registers an additional capability backend.
func (s *Service) RegisterCapability(service types.Service) {
	s.capabilities.Register(service)
}

// Runtime returns the execution runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// New creates the approval gateway service.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

// NewFromConfig creates the service from a serialisable configuration.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithGatewayConfig(config.Gateway),
		WithAuditConfig(config.Audit),
		WithOverdueAfter(config.OverdueAfter),
		WithOverdueScanInterval(config.OverdueScanInterval),
		WithDedupTTL(config.DedupTTL),
	}
	if config.PolicyURL != "" {
		base = append(base, WithPolicyURL(config.PolicyURL))
	}
	if config.QueueVendor != "" {
		base = append(base, WithQueueVendor(config.QueueVendor, config.QueueBasePath))
	}
	return New(append(base, options...)...), nil
}
