package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

var mentionToken = regexp.MustCompile(`<@([A-Za-z0-9_]+)>`)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, opts ...lark.ClientOptionFunc) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret, opts...),
	}
}

// SendText sends a text message to a chat. <@open_id> tokens become Feishu at tags.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": formatMentions(text)}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: code=%d msg=%s", resp.Code, resp.Msg)
	}
	return nil
}

// BotOpenID fetches the bot's own open_id, used in mentions of the bot
func (c *Client) BotOpenID(ctx context.Context) (string, error) {
	resp, err := c.larkCli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return "", fmt.Errorf("get bot info: %w", err)
	}

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &botResult); err != nil {
		return "", fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return "", fmt.Errorf("API error: %s", botResult.Msg)
	}
	return botResult.Bot.OpenID, nil
}

// formatMentions converts <@open_id> tokens to Feishu text at tags
func formatMentions(text string) string {
	return mentionToken.ReplaceAllString(text, `<at user_id="$1"></at>`)
}
