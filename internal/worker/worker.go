// Package worker consumes background jobs published by the API.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

// HistoryWarmer rebuilds the cached history of a course.
type HistoryWarmer interface {
	WarmHistory(ctx context.Context, courseID string) error
}

// Worker drains a queue until its context ends.
type Worker struct {
	q   queue.Queue
	svc HistoryWarmer
	log *zap.Logger
}

func New(q queue.Queue, svc HistoryWarmer, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{q: q, svc: svc, log: log}
}

// Run blocks until ctx is cancelled or the queue stops delivering.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("worker started")
	for msg := range messages {
		w.handle(ctx, msg)
	}
	w.log.Info("worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	switch msg.Type {
	case attendance.MessageSessionClosed:
		var evt attendance.SessionClosedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			w.log.Warn("drop malformed message", zap.String("type", msg.Type), zap.Error(err))
			return
		}
		if err := w.svc.WarmHistory(ctx, evt.CourseID); err != nil {
			w.log.Error("warm history failed",
				zap.String("course_id", evt.CourseID),
				zap.String("session_id", evt.SessionID),
				zap.Error(err))
			return
		}
		w.log.Debug("history warmed", zap.String("course_id", evt.CourseID))
	default:
		w.log.Warn("unknown message type", zap.String("type", msg.Type))
	}
}
