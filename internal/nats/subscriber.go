package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Mirai3103/remote-grader/internal/logger"
	"github.com/Mirai3103/remote-grader/internal/models"
)

const (
	DefaultRequestSubject = "grading.request"
	DefaultQueueGroup     = "grader-workers"
)

// GradeRequest asks a listening grader to grade one grading document.
type GradeRequest struct {
	Document string `json:"document"` // path readable by the grader host
}

// GradeReply is sent back when the request carried a reply subject.
type GradeReply struct {
	RunID   string             `json:"runId,omitempty"`
	Results models.ClassResult `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// RequestHandler grades one request. It must not panic.
type RequestHandler interface {
	HandleGradeRequest(ctx context.Context, req GradeRequest) GradeReply
}

type Subscriber struct {
	nc      *nats.Conn
	subject string
	queue   string
	handler RequestHandler
}

func NewSubscriber(nc *nats.Conn, subject, queue string, handler RequestHandler) *Subscriber {
	if subject == "" {
		subject = DefaultRequestSubject
	}
	if queue == "" {
		queue = DefaultQueueGroup
	}
	return &Subscriber{nc: nc, subject: subject, queue: queue, handler: handler}
}

// Subscribe joins the queue group so that each request is graded by exactly
// one listening grader. Requests are handled concurrently; ctx is passed to
// every handler call.
func (s *Subscriber) Subscribe(ctx context.Context) (*nats.Subscription, error) {
	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		var req GradeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Document == "" {
			logger.Warn(ctx, "invalid grade request", zap.ByteString("data", msg.Data), zap.Error(err))
			s.reply(ctx, msg, GradeReply{Error: "request must be a JSON object with a document path"})
			return
		}
		go func() {
			s.reply(ctx, msg, s.handler.HandleGradeRequest(ctx, req))
		}()
	})
	if err != nil {
		logger.Error(ctx, "subscribe to grade requests", zap.String("subject", s.subject), zap.Error(err))
		return nil, err
	}

	logger.Info(ctx, "listening for grade requests", zap.String("subject", s.subject), zap.String("queue", s.queue))
	return sub, nil
}

func (s *Subscriber) reply(ctx context.Context, msg *nats.Msg, reply GradeReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		logger.Error(ctx, "marshal grade reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		logger.Warn(ctx, "respond to grade request", zap.Error(err))
	}
}
