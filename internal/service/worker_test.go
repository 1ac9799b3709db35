package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/biz/usecase"
	"github.com/tessbot/slack-chat-bridge/internal/data"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, req repo.ReplyRequest) (string, error) {
	return g.reply, g.err
}

type chanPoster struct {
	mu    sync.Mutex
	posts []string
	done  chan struct{}
}

func (p *chanPoster) PostMessage(ctx context.Context, channelID, text string) error {
	p.mu.Lock()
	p.posts = append(p.posts, channelID+":"+text)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func newWorkerFixture(t *testing.T, gen repo.ReplyGenerator, poster repo.MessagePoster) (*usecase.DispatchUsecase, repo.SessionRepo) {
	t.Helper()
	sessions, err := data.NewSessionRepo("sqlite", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSessionRepo failed: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	queue := data.NewMemoryQueue(5 * time.Minute)
	t.Cleanup(func() { queue.Close() })
	return usecase.NewDispatchUsecase(queue, sessions, gen, poster, usecase.DispatchConfig{BotID: "UBOT", BotName: "Tess"}), sessions
}

func runWorker(t *testing.T, w *ReplyWorker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})
	return cancel
}

func TestReplyWorker_PostsAndRecordsReply(t *testing.T) {
	poster := &chanPoster{done: make(chan struct{}, 1)}
	dispatch, sessions := newWorkerFixture(t, &stubGenerator{reply: "hey there"}, poster)
	ctx := context.Background()

	s := domain.NewSession("C1")
	s.Append(domain.NewHumanTurn("U1", "hello"))
	if err := sessions.Put(ctx, s); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := dispatch.Enqueue(ctx, "C1", []byte(`{}`), "e1"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	runWorker(t, NewReplyWorker(dispatch, 2, nil))

	select {
	case <-poster.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reply was not posted")
	}

	poster.mu.Lock()
	posts := append([]string(nil), poster.posts...)
	poster.mu.Unlock()
	if len(posts) != 1 || posts[0] != "C1:hey there" {
		t.Errorf("Unexpected posts: %v", posts)
	}

	got, err := sessions.Get(ctx, "C1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	last, err := got.History.LastTurn()
	if err != nil {
		t.Fatalf("LastTurn failed: %v", err)
	}
	if last.Role != domain.RoleAI || last.Speaker != "UBOT" || last.Content != "hey there" {
		t.Errorf("Unexpected last turn: %+v", last)
	}
}

// flakyGenerator fails the first call and succeeds afterwards
type flakyGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *flakyGenerator) Generate(ctx context.Context, req repo.ReplyRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls == 1 {
		return "", errors.New("model down")
	}
	return "second try", nil
}

func TestReplyWorker_FailureStillAcks(t *testing.T) {
	poster := &chanPoster{done: make(chan struct{}, 2)}
	dispatch, sessions := newWorkerFixture(t, &flakyGenerator{}, poster)
	ctx := context.Background()

	s := domain.NewSession("C1")
	s.Append(domain.NewHumanTurn("U1", "hello"))
	if err := sessions.Put(ctx, s); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// The second item is only released once the first is acknowledged
	for _, dedup := range []string{"e1", "e2"} {
		if _, err := dispatch.Enqueue(ctx, "C1", nil, dedup); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	runWorker(t, NewReplyWorker(dispatch, 1, nil))

	select {
	case <-poster.done:
	case <-time.After(2 * time.Second):
		t.Fatal("second item was never consumed")
	}
	poster.mu.Lock()
	defer poster.mu.Unlock()
	if len(poster.posts) != 1 || poster.posts[0] != "C1:second try" {
		t.Errorf("Unexpected posts: %v", poster.posts)
	}
}
