// Package telegram implements the bot transport: webhook update parsing,
// single-user authorization, replies, and receipt photo downloads.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Update is the webhook payload Telegram delivers.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is one incoming chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []PhotoSize `json:"photo"`
}

// Chat identifies the conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// PhotoSize is one resolution of an attached photo; Telegram sends several,
// smallest first.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BestPhoto returns the file ID of the largest attached photo, or "".
func (m *Message) BestPhoto() string {
	if len(m.Photo) == 0 {
		return ""
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best.FileID
}

// Body returns the message text, falling back to the photo caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Client talks to the Telegram Bot API for a single bot.
type Client struct {
	http             *resty.Client
	fileHTTP         *resty.Client
	token            string
	authorizedChatID int64
	log              zerolog.Logger
}

const defaultAPIBase = "https://api.telegram.org"

// NewClient creates a Client for the given bot token. authorizedChatID is
// the only chat the bot will serve; everything else is dropped.
func NewClient(token string, authorizedChatID int64, log zerolog.Logger) *Client {
	return &Client{
		http:             resty.New().SetBaseURL(fmt.Sprintf("%s/bot%s", defaultAPIBase, token)),
		fileHTTP:         resty.New().SetBaseURL(fmt.Sprintf("%s/file/bot%s", defaultAPIBase, token)),
		token:            token,
		authorizedChatID: authorizedChatID,
		log:              log,
	}
}

// SetBaseURL points the client at a different API host, for tests.
func (c *Client) SetBaseURL(apiBase string) {
	c.http.SetBaseURL(fmt.Sprintf("%s/bot%s", apiBase, c.token))
	c.fileHTTP.SetBaseURL(fmt.Sprintf("%s/file/bot%s", apiBase, c.token))
}

// ParseUpdate decodes one webhook body.
func ParseUpdate(r io.Reader) (*Update, error) {
	var u Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &u, nil
}

// IsAuthorized reports whether the chat may use the bot.
func (c *Client) IsAuthorized(chatID int64) bool {
	return chatID == c.authorizedChatID
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage posts a plain-text reply into the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id": chatID,
			"text":    text,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("send message: telegram returned %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

// DownloadFile fetches the raw bytes of an uploaded file by its file ID.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("file_id", fileID).
		SetResult(&out).
		Get("/getFile")
	if err != nil {
		return nil, fmt.Errorf("resolve file path: %w", err)
	}
	if resp.IsError() || !out.OK || out.Result.FilePath == "" {
		return nil, fmt.Errorf("resolve file path: telegram returned %d", resp.StatusCode())
	}

	fileResp, err := c.fileHTTP.R().
		SetContext(ctx).
		Get("/" + out.Result.FilePath)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if fileResp.IsError() {
		return nil, fmt.Errorf("download file: telegram returned %d", fileResp.StatusCode())
	}
	return fileResp.Body(), nil
}
