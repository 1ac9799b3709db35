package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/biz/usecase"
	"github.com/tessbot/slack-chat-bridge/internal/data"
	"github.com/tessbot/slack-chat-bridge/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestIngest builds the admission pipeline on a temp sqlite store.
// The coin always lands tails so only direct addresses enqueue.
func newTestIngest(t *testing.T, decoder service.EventDecoder) (*service.IngestService, repo.SessionRepo, repo.DispatchQueue) {
	t.Helper()
	sessions, err := data.NewSessionRepo("sqlite", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSessionRepo failed: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	queue := data.NewMemoryQueue(5 * time.Minute)
	t.Cleanup(func() { queue.Close() })

	dispatch := usecase.NewDispatchUsecase(queue, sessions, nil, nil, usecase.DispatchConfig{BotID: "UBOT"})
	admission := usecase.NewAdmissionUsecase(sessions, dispatch, usecase.DefaultAdmissionConfig(),
		usecase.WithCoin(usecase.CoinFunc(func() bool { return false })),
	)
	normalizer := usecase.NewEventNormalizer(usecase.NormalizerConfig{BotUserID: "UBOT"})
	return service.NewIngestService(decoder, normalizer, admission, nil), sessions, queue
}
