package actgate

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/actgate/service/audit"
	"github.com/sigil-dev/actgate/service/gateway"
	"github.com/sigil-dev/actgate/service/messaging"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML or JSON; zero-value fields inherit their
// package defaults.
type Config struct {
	Gateway gateway.Config `json:"gateway" yaml:"gateway"`
	Audit   audit.Config   `json:"audit" yaml:"audit"`

	// PolicyURL points at the auto-approval rule table; empty disables
	// auto-approval entirely.
	PolicyURL string `json:"policyURL,omitempty" yaml:"policyURL,omitempty"`

	// OverdueAfter flags pending proposals that waited longer for a
	// decision.
	OverdueAfter time.Duration `json:"overdueAfter,omitempty" yaml:"overdueAfter,omitempty"`

	// OverdueScanInterval is how often the runtime scans for overdue
	// proposals.
	OverdueScanInterval time.Duration `json:"overdueScanInterval,omitempty" yaml:"overdueScanInterval,omitempty"`

	// DedupTTL bounds how long submission fingerprints are remembered.
	DedupTTL time.Duration `json:"dedupTTL,omitempty" yaml:"dedupTTL,omitempty"`

	// QueueVendor selects the notification queue backend: memory (default)
	// or fs. The fs vendor keeps notifications across restarts.
	QueueVendor messaging.Vendor `json:"queueVendor,omitempty" yaml:"queueVendor,omitempty"`

	// QueueBasePath is the directory backing the fs queue vendor.
	QueueBasePath string `json:"queueBasePath,omitempty" yaml:"queueBasePath,omitempty"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway:             gateway.DefaultConfig(),
		Audit:               audit.DefaultConfig(),
		OverdueAfter:        24 * time.Hour,
		OverdueScanInterval: time.Minute,
		DedupTTL:            24 * time.Hour,
	}
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Gateway.MaxAttempts < 0 {
		return fmt.Errorf("gateway.maxAttempts must be >= 0")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retentionDays must be >= 0")
	}
	if c.OverdueAfter < 0 {
		return fmt.Errorf("overdueAfter must be >= 0")
	}
	switch c.QueueVendor {
	case "", messaging.VendorMemory:
	case messaging.VendorFs:
		if c.QueueBasePath == "" {
			return fmt.Errorf("queueBasePath is required for the fs queue vendor")
		}
	default:
		return fmt.Errorf("unknown queue vendor %q", c.QueueVendor)
	}
	return nil
}

// LoadConfig reads a YAML configuration from the supplied URL.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
