package fs

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

type testPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func newTestQueue(t *testing.T) *Queue[testPayload] {
	tempDir, err := os.MkdirTemp("/tmp", "queue-test")
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	queue, err := NewQueue[testPayload](afs.New(), Config{BasePath: tempDir, MaxRetries: 1})
	assert.NoError(t, err)
	return queue
}

func TestQueue_PublishConsumeAck(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	assert.NoError(t, queue.Publish(ctx, &testPayload{ID: "m1", Message: "hello"}))

	msg, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, msg)
	assert.EqualValues(t, "hello", msg.T().Message)
	assert.NoError(t, msg.Ack())

	// queue drained
	next, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueue_NackReturnsToPendingThenDLQ(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	assert.NoError(t, queue.Publish(ctx, &testPayload{ID: "m1"}))

	msg, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, msg.Nack(errors.New("boom")))

	// first nack returns the message to pending
	msg, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, msg)
	assert.NoError(t, msg.Nack(errors.New("boom again")))

	// retry budget exhausted – nothing pending anymore
	next, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, next)

	objects, err := afs.New().List(ctx, queue.dlqDir)
	assert.NoError(t, err)
	count := 0
	for _, object := range objects {
		if !object.IsDir() {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestQueue_SurvivesRestart(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	assert.NoError(t, queue.Publish(ctx, &testPayload{ID: "m1", Message: "durable"}))

	// a second queue over the same directory sees the pending message
	reopened, err := NewQueue[testPayload](afs.New(), queue.config)
	assert.NoError(t, err)

	msg, err := reopened.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, msg)
	assert.EqualValues(t, "durable", msg.T().Message)
}
