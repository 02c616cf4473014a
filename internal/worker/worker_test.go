package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

type recordingWarmer struct {
	mu      sync.Mutex
	courses []string
	done    chan struct{}
}

func (r *recordingWarmer) WarmHistory(_ context.Context, courseID string) error {
	r.mu.Lock()
	r.courses = append(r.courses, courseID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestWorkerWarmsHistory(t *testing.T) {
	q := queue.NewInMemory(8)
	warm := &recordingWarmer{done: make(chan struct{}, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan error, 1)
	go func() { stopped <- New(q, warm, nil).Run(ctx) }()

	body, err := json.Marshal(attendance.SessionClosedEvent{CourseID: "c1", SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "unknown", Body: []byte("x")}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: attendance.MessageSessionClosed, Body: []byte("{bad")}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: attendance.MessageSessionClosed, Body: body}))

	select {
	case <-warm.done:
	case <-time.After(2 * time.Second):
		t.Fatal("history was not warmed")
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	warm.mu.Lock()
	defer warm.mu.Unlock()
	assert.Equal(t, []string{"c1"}, warm.courses)
}
