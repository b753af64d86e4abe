// Package printer is a demo message capability: it renders outbound
// messages to a writer instead of talking to a real mail or chat provider.
// It backs the send-message examples and the gateway tests.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/sigil-dev/actgate/model/state"
	"github.com/sigil-dev/actgate/model/types"
)

const name = "printer"

var sendMessageSchema = state.Parameters{
	state.MustParse("to[string](parameter/to)"),
	state.MustParse("subject[string](parameter/subject)"),
	state.MustParse("body[string](parameter/body)!"),
	state.MustParse("attachments[[]string](parameter/attachments)"),
}

// Service renders messages to a writer.
type Service struct {
	writer io.Writer
}

type Input struct {
	To          string   `json:"to,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Body        string   `json:"body,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

type Output struct {
	Delivered bool `json:"delivered"`
}

// Option customises the printer capability.
type Option func(*Service)

// WithWriter redirects output, used by tests.
func WithWriter(writer io.Writer) Option {
	return func(s *Service) {
		s.writer = writer
	}
}

// New creates a new printer capability
func New(options ...Option) *Service {
	ret := &Service{}
	for _, opt := range options {
		opt(ret)
	}
	if ret.writer == nil {
		ret.writer = os.Stdout
	}
	return ret
}

// Name returns the capability name
func (s *Service) Name() string {
	return name
}

// Methods returns the capability methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:   "send-message",
			Input:  reflect.TypeOf(&Input{}),
			Output: reflect.TypeOf(&Output{}),
		},
	}
}

// Parameters publishes the schema enforced at the submit boundary.
func (s *Service) Parameters(method string) state.Parameters {
	if strings.ToLower(method) == "send-message" {
		return sendMessageSchema
	}
	return nil
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "send-message":
		return s.sendMessage, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) sendMessage(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	var builder strings.Builder
	if input.To != "" {
		builder.WriteString("To: " + input.To + "\n")
	}
	if input.Subject != "" {
		builder.WriteString("Subject: " + input.Subject + "\n")
	}
	builder.WriteString(input.Body)
	if len(input.Attachments) > 0 {
		builder.WriteString("\nAttachments: " + strings.Join(input.Attachments, ", "))
	}
	if _, err := fmt.Fprintln(s.writer, builder.String()); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	output.Delivered = true
	return nil
}
