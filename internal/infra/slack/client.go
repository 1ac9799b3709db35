package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Slack Web API root
const DefaultBaseURL = "https://slack.com/api"

const postAttempts = 3

// Client is a minimal Slack Web API client
type Client struct {
	http     *http.Client
	baseURL  string
	botToken string
	appToken string
}

// Identity is the bot identity returned by auth.test
type Identity struct {
	TeamID string
	UserID string // used in <@...> mentions
	BotID  string // set on messages the bot posts
}

// NewClient creates a Slack client. An empty baseURL uses DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL, botToken, appToken string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		botToken: strings.TrimSpace(botToken),
		appToken: strings.TrimSpace(appToken),
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r apiResponse) err(method string) error {
	if r.OK {
		return nil
	}
	code := strings.TrimSpace(r.Error)
	if code == "" {
		code = "unknown_error"
	}
	return fmt.Errorf("slack %s failed: %s", method, code)
}

// PostMessage posts text to a channel, retrying rate limits and server errors
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	channelID = strings.TrimSpace(channelID)
	text = strings.TrimSpace(text)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if text == "" {
		return fmt.Errorf("text is required")
	}
	payload := map[string]string{"channel": channelID, "text": text}

	var lastErr error
	for attempt := 1; attempt <= postAttempts; attempt++ {
		body, status, header, err := c.call(ctx, c.botToken, "/chat.postMessage", payload)
		switch {
		case err != nil:
			lastErr = err
		case status < 200 || status >= 300:
			lastErr = fmt.Errorf("slack chat.postMessage http %d", status)
		default:
			var out apiResponse
			if err := json.Unmarshal(body, &out); err != nil {
				lastErr = fmt.Errorf("decode chat.postMessage response: %w", err)
			} else {
				return out.err("chat.postMessage")
			}
		}

		if attempt == postAttempts {
			break
		}
		if status == 0 {
			status = http.StatusBadGateway
		}
		wait, ok := retryDelay(status, header, attempt)
		if !ok {
			break
		}
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// AuthTest resolves the identity behind the bot token
func (c *Client) AuthTest(ctx context.Context) (*Identity, error) {
	body, status, _, err := c.call(ctx, c.botToken, "/auth.test", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("slack auth.test http %d", status)
	}
	var out struct {
		apiResponse
		TeamID string `json:"team_id,omitempty"`
		UserID string `json:"user_id,omitempty"`
		BotID  string `json:"bot_id,omitempty"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode auth.test response: %w", err)
	}
	if err := out.err("auth.test"); err != nil {
		return nil, err
	}
	return &Identity{TeamID: out.TeamID, UserID: out.UserID, BotID: out.BotID}, nil
}

// OpenSocketURL requests a Socket Mode websocket URL using the app-level token
func (c *Client) OpenSocketURL(ctx context.Context) (string, error) {
	body, status, _, err := c.call(ctx, c.appToken, "/apps.connections.open", nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("slack apps.connections.open http %d", status)
	}
	var out struct {
		apiResponse
		URL string `json:"url,omitempty"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode apps.connections.open response: %w", err)
	}
	if err := out.err("apps.connections.open"); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("slack apps.connections.open returned empty url")
	}
	return strings.TrimSpace(out.URL), nil
}

func (c *Client) call(ctx context.Context, token, path string, payload any) ([]byte, int, http.Header, error) {
	if token == "" {
		return nil, 0, nil, fmt.Errorf("slack token is required for %s", path)
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("marshal %s payload: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("read %s response: %w", path, err)
	}
	return raw, resp.StatusCode, resp.Header, nil
}

// retryDelay honors Retry-After on 429 and backs off on 5xx
func retryDelay(status int, header http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After"))); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
		return time.Second, true
	case status >= 500 && status <= 599:
		if attempt == 1 {
			return 300 * time.Millisecond, true
		}
		return time.Second, true
	default:
		return 0, false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
