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
	DefaultResultSubject = "grading.result"
)

// Publisher sends each graded student's report to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultResultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

func (p *Publisher) PublishStudentResult(ctx context.Context, report models.StudentReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		logger.Error(ctx, "marshal student report", zap.Error(err))
		return err
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		logger.Error(ctx, "publish student report", zap.String("subject", p.subject), zap.Error(err))
		return err
	}
	logger.Debug(ctx, "published student report",
		zap.String("subject", p.subject),
		zap.Int("passed", report.Passed),
		zap.Int("total", report.Total),
	)
	return nil
}
