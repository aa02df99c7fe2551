package nats

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Mirai3103/remote-grader/internal/models"
)

func runServer(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestPublishStudentResult(t *testing.T) {
	nc := runServer(t)
	sub, err := nc.SubscribeSync(DefaultResultSubject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	report := models.StudentReport{
		RunID:   "run-1",
		Suite:   "sum",
		Student: "alice",
		Passed:  1,
		Total:   2,
		Results: models.StudentResult{"a": models.Passed(), "b": models.RunFailed("crashed")},
	}
	if err := NewPublisher(nc, "").PublishStudentResult(context.Background(), report); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	var got models.StudentReport
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Student != "alice" || got.Results["b"].Message != "crashed" || got.Results["a"].Status != models.Success {
		t.Fatalf("unexpected report %+v", got)
	}
}

type handlerFunc func(ctx context.Context, req GradeRequest) GradeReply

func (f handlerFunc) HandleGradeRequest(ctx context.Context, req GradeRequest) GradeReply {
	return f(ctx, req)
}

func TestSubscriberRepliesToGradeRequests(t *testing.T) {
	nc := runServer(t)
	handler := handlerFunc(func(_ context.Context, req GradeRequest) GradeReply {
		return GradeReply{
			RunID:   "run-2",
			Results: models.ClassResult{"bob": {req.Document: models.TimedOut()}},
		}
	})
	sub, err := NewSubscriber(nc, "", "", handler).Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	data, _ := json.Marshal(GradeRequest{Document: "grading.toml"})
	msg, err := nc.Request(DefaultRequestSubject, data, 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var reply GradeReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.RunID != "run-2" || reply.Results["bob"]["grading.toml"].Status != models.Timeout {
		t.Fatalf("unexpected reply %+v", reply)
	}

	bad, err := nc.Request(DefaultRequestSubject, []byte("not json"), 2*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var rejected GradeReply
	if err := json.Unmarshal(bad.Data, &rejected); err != nil || rejected.Error == "" {
		t.Fatalf("expected error reply, got %s (%v)", bad.Data, err)
	}
}

func TestSubscriberHandlesRequestsConcurrently(t *testing.T) {
	nc := runServer(t)
	const requests = 3
	var arrived atomic.Int32
	all := make(chan struct{})
	handler := handlerFunc(func(_ context.Context, req GradeRequest) GradeReply {
		if arrived.Add(1) == requests {
			close(all)
		}
		select {
		case <-all:
			return GradeReply{RunID: req.Document}
		case <-time.After(3 * time.Second):
			return GradeReply{Error: "handlers did not overlap"}
		}
	})
	sub, err := NewSubscriber(nc, "", "", handler).Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	replies := make([]GradeReply, requests)
	for i := range replies {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, _ := json.Marshal(GradeRequest{Document: "doc"})
			msg, err := nc.Request(DefaultRequestSubject, data, 5*time.Second)
			if err != nil {
				replies[i].Error = err.Error()
				return
			}
			if err := json.Unmarshal(msg.Data, &replies[i]); err != nil {
				replies[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	for i, r := range replies {
		if r.Error != "" || r.RunID != "doc" {
			t.Fatalf("request %d: %+v", i, r)
		}
	}
}
