// Package fs provides a filesystem-backed queue so that notifications
// survive process restarts. Messages are JSON documents moved between a
// pending and a processing directory; acked messages are deleted,
// nacked messages return to pending until the retry budget is exhausted
// and then land in the dead letter directory.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/sigil-dev/actgate/internal/clock"
	"github.com/sigil-dev/actgate/internal/idgen"
	"github.com/sigil-dev/actgate/service/messaging"
)

// Config holds configuration for the filesystem queue.
type Config struct {
	BasePath   string
	MaxRetries int
}

// DefaultConfig returns a default queue configuration.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

type envelope[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	envelope  envelope[T]
	queue     *Queue[T]
	mu        sync.Mutex
	processed bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.envelope.Data
}

// Ack removes the message from the processing directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return m.queue.remove(context.Background(), m.queue.processingDir, m.envelope.ID)
}

// Nack requeues the message, or parks it in the dead letter directory once
// the retry budget is exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.envelope.Retries++

	ctx := context.Background()
	destination := m.queue.pendingDir
	if m.envelope.Retries > m.queue.config.MaxRetries {
		destination = m.queue.dlqDir
	}
	if wErr := m.queue.write(ctx, destination, &m.envelope); wErr != nil {
		return wErr
	}
	return m.queue.remove(ctx, m.queue.processingDir, m.envelope.ID)
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-backed queue rooted at config.BasePath.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish appends a new message to the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	message := &envelope[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: clock.Now(),
	}
	return q.write(ctx, q.pendingDir, message)
}

// Consume moves one pending message into processing and returns it. It
// returns (nil, nil) when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := q.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read message %s: %w", object.URL(), err)
		}
		message := &Message[T]{queue: q}
		if err := json.Unmarshal(data, &message.envelope); err != nil {
			// quarantine the unreadable document and keep consuming
			_ = q.fs.Move(ctx, object.URL(), path.Join(q.dlqDir, "invalid-"+object.Name()))
			continue
		}
		if err := q.write(ctx, q.processingDir, &message.envelope); err != nil {
			return nil, err
		}
		if err := q.fs.Delete(ctx, object.URL()); err != nil {
			return nil, fmt.Errorf("failed to remove pending message: %w", err)
		}
		return message, nil
	}
	return nil, nil
}

func (q *Queue[T]) write(ctx context.Context, dir string, message *envelope[T]) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	location := path.Join(dir, message.ID+".json")
	if err := q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", location, err)
	}
	return nil
}

func (q *Queue[T]) remove(ctx context.Context, dir, id string) error {
	location := path.Join(dir, id+".json")
	if exists, _ := q.fs.Exists(ctx, location); exists {
		if err := q.fs.Delete(ctx, location); err != nil {
			return fmt.Errorf("failed to delete message %s: %w", location, err)
		}
	}
	return nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
