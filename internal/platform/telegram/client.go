package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.telegram.org"

type Client struct {
	token      string
	httpClient *resty.Client
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

type sendMessageReq struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts plain text; Markdown is left off so clinical notes with
// special characters are never rejected.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	var result apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendMessageReq{ChatID: chatID, Text: text}).
		SetResult(&result).
		SetError(&result).
		Post(c.method("sendMessage"))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return checkResponse(resp, result)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	var result apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": strconv.FormatInt(chatID, 10),
			"caption": caption,
		}).
		SetFileReader("document", filename, bytes.NewReader(data)).
		SetResult(&result).
		SetError(&result).
		Post(c.method("sendDocument"))
	if err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return checkResponse(resp, result)
}

func (c *Client) method(name string) string {
	return fmt.Sprintf("/bot%s/%s", c.token, name)
}

func checkResponse(resp *resty.Response, result apiResponse) error {
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram api returned status: %s, body: %s", resp.Status(), resp.String())
	}
	return nil
}
