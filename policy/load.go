package policy

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Load reads a policy rule table from a YAML document at the given URL.
func Load(ctx context.Context, URL string) (*Policy, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", URL, err)
	}
	ret := &Policy{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", URL, err)
	}
	return ret, nil
}
