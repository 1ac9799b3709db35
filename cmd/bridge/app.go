package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/usecase"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
	"github.com/tessbot/slack-chat-bridge/internal/data"
	"github.com/tessbot/slack-chat-bridge/internal/infra/feishu"
	"github.com/tessbot/slack-chat-bridge/internal/infra/slack"
	"github.com/tessbot/slack-chat-bridge/internal/logutil"
	"github.com/tessbot/slack-chat-bridge/internal/service"
)

// app holds what every long-running command shares
type app struct {
	cfg      *conf.Config
	logger   *slog.Logger
	repos    *data.Repositories
	dispatch *usecase.DispatchUsecase
}

// loadConfig reads the environment, builds the logger and fills in the bot
// identity from the platform when it is not configured.
func loadConfig(ctx context.Context) (*conf.Config, *slog.Logger, error) {
	cfg := conf.LoadFromEnv()
	logger, err := logutil.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	if cfg.Bot.UserID == "" {
		if err := resolveBotIdentity(ctx, cfg); err != nil {
			logger.Warn("bot_identity_lookup_failed", "platform", cfg.Platform, "error", err)
		} else {
			logger.Info("bot_identity_resolved", "user_id", cfg.Bot.UserID, "app_id", cfg.Bot.AppID)
		}
	}
	return cfg, logger, nil
}

func resolveBotIdentity(ctx context.Context, cfg *conf.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Platform {
	case "slack":
		id, err := newSlackClient(cfg).AuthTest(ctx)
		if err != nil {
			return err
		}
		cfg.Bot.UserID = id.UserID
		if cfg.Bot.AppID == "" {
			cfg.Bot.AppID = id.BotID
		}
	case "feishu":
		openID, err := newFeishuClient(cfg).BotOpenID(ctx)
		if err != nil {
			return err
		}
		cfg.Bot.UserID = openID
	default:
		return fmt.Errorf("unknown platform %q", cfg.Platform)
	}
	return nil
}

func newSlackClient(cfg *conf.Config) *slack.Client {
	return slack.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.Slack.BaseURL, cfg.Slack.BotToken, cfg.Slack.AppToken)
}

func newFeishuClient(cfg *conf.Config) *feishu.Client {
	return feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
}

// newApp opens the store and queue. withReplies also builds the generator
// and poster needed to consume the queue.
func newApp(ctx context.Context, withReplies bool) (*app, error) {
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if withReplies {
		err = cfg.ValidateWorker()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repos, err := data.NewRepositories(cfg)
	if err != nil {
		return nil, fmt.Errorf("open repositories: %w", err)
	}
	logger.Info("store_opened", "driver", cfg.Store.Driver, "queue", cfg.Queue.Driver)

	dcfg := usecase.DispatchConfig{
		BotID:             cfg.Bot.UserID,
		BotName:           cfg.Bot.Name,
		ConditionalWrites: cfg.Store.ConditionalWrites,
		GenerateTimeout:   cfg.Worker.GenerateTimeout,
		PostTimeout:       cfg.Worker.PostTimeout,
	}
	a := &app{cfg: cfg, logger: logger, repos: repos}
	if !withReplies {
		a.dispatch = usecase.NewDispatchUsecase(repos.Queue, repos.Session, nil, nil, dcfg)
		return a, nil
	}

	generator, err := data.NewGenerator(ctx, cfg, repos.Prompt, logger)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}
	poster, err := data.NewPoster(cfg)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("init poster: %w", err)
	}
	a.dispatch = usecase.NewDispatchUsecase(repos.Queue, repos.Session, generator, poster, dcfg)
	return a, nil
}

func (a *app) close() {
	if err := a.repos.Close(); err != nil {
		a.logger.Warn("close_failed", "error", err)
	}
}

// ingestService builds the admission pipeline for decoder
func (a *app) ingestService(decoder service.EventDecoder) *service.IngestService {
	normalizer := usecase.NewEventNormalizer(usecase.NormalizerConfig{
		BotUserID: a.cfg.Bot.UserID,
		BotAppID:  a.cfg.Bot.AppID,
	})
	acfg := usecase.DefaultAdmissionConfig()
	acfg.EngagementWindow = a.cfg.EngagementWindow
	acfg.ConditionalWrites = a.cfg.Store.ConditionalWrites
	admission := usecase.NewAdmissionUsecase(a.repos.Session, a.dispatch, acfg)
	return service.NewIngestService(decoder, normalizer, admission, a.logger)
}
