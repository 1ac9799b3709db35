package data

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
	"github.com/tessbot/slack-chat-bridge/internal/infra/feishu"
	"github.com/tessbot/slack-chat-bridge/internal/infra/slack"
)

// Platform posting limits: Slack allows about one message per second per
// channel, Feishu five per second per bot.
const (
	slackPostInterval  = time.Second
	feishuPostInterval = 200 * time.Millisecond
)

// slackPoster posts replies through the Slack Web API
type slackPoster struct {
	client *slack.Client
}

// NewSlackPoster creates a MessagePoster backed by chat.postMessage
func NewSlackPoster(client *slack.Client) repo.MessagePoster {
	return withRateLimit(&slackPoster{client: client}, slackPostInterval, 3)
}

func (p *slackPoster) PostMessage(ctx context.Context, channelID, text string) error {
	return p.client.PostMessage(ctx, channelID, text)
}

// feishuPoster posts replies through the Feishu IM API
type feishuPoster struct {
	client *feishu.Client
}

// NewFeishuPoster creates a MessagePoster backed by im/v1/messages
func NewFeishuPoster(client *feishu.Client) repo.MessagePoster {
	return withRateLimit(&feishuPoster{client: client}, feishuPostInterval, 5)
}

func (p *feishuPoster) PostMessage(ctx context.Context, chatID, text string) error {
	return p.client.SendText(ctx, chatID, text)
}

// NewPoster builds the poster for the configured platform
func NewPoster(cfg *conf.Config) (repo.MessagePoster, error) {
	switch cfg.Platform {
	case "slack":
		return NewSlackPoster(slack.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.Slack.BaseURL, cfg.Slack.BotToken, cfg.Slack.AppToken)), nil
	case "feishu":
		return NewFeishuPoster(feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// rateLimitedPoster spaces out posts to stay under platform limits
type rateLimitedPoster struct {
	next    repo.MessagePoster
	limiter *rate.Limiter
}

func withRateLimit(next repo.MessagePoster, every time.Duration, burst int) repo.MessagePoster {
	return &rateLimitedPoster{next: next, limiter: rate.NewLimiter(rate.Every(every), burst)}
}

func (p *rateLimitedPoster) PostMessage(ctx context.Context, channelID, text string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for post slot: %w", err)
	}
	return p.next.PostMessage(ctx, channelID, text)
}
