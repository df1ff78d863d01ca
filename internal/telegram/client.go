// Package telegram is a minimal Bot API client: long-polled updates
// in, plain-text messages out.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendir/internal/log"
)

const (
	DefaultAPIBase = "https://api.telegram.org"

	longPollTimeout = 50 * time.Second
)

// Entity is a typed region of a message, measured in UTF-16 code
// units as the Bot API reports them.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// Message carries the fields the bot cares about; Edited marks
// messages delivered through edited_message updates.
type Message struct {
	MessageID int64    `json:"message_id"`
	From      *User    `json:"from"`
	Chat      Chat     `json:"chat"`
	Text      string   `json:"text"`
	Entities  []Entity `json:"entities"`
	Edited    bool     `json:"-"`
}

type update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message"`
	EditedMessage *Message `json:"edited_message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Handler processes one incoming message.
type Handler func(ctx context.Context, msg Message)

// Client talks to the Bot API over HTTP.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(token, apiBase string, logger *log.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		token:   token,
		apiBase: strings.TrimSuffix(apiBase, "/"),
		// Timeout must outlast the long poll.
		httpClient: &http.Client{Timeout: longPollTimeout + 10*time.Second},
		logger:     logger,
	}
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s failed: %s", method, api.Description)
	}

	return api.Result, nil
}

// BotInfo identifies the bot's own account.
type BotInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Me returns the bot's own account, used to learn the bot username.
func (c *Client) Me(ctx context.Context) (BotInfo, error) {
	raw, err := c.call(ctx, "getMe", url.Values{})
	if err != nil {
		return BotInfo{}, err
	}

	var me BotInfo
	if err := json.Unmarshal(raw, &me); err != nil {
		return BotInfo{}, fmt.Errorf("decode getMe result: %w", err)
	}
	if me.Username == "" {
		return me, errors.New("getMe returned no username")
	}
	return me, nil
}

// SendText delivers a plain-text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)

	_, err := c.call(ctx, "sendMessage", params)
	return err
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(int(longPollTimeout/time.Second)))
	params.Set("allowed_updates", `["message","edited_message"]`)
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}

	raw, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// Listen long-polls for updates and hands each message to the handler
// until the context is canceled. Poll errors are logged and retried.
func (c *Client) Listen(ctx context.Context, handler Handler) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("getUpdates failed", log.FieldError, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1

			msg := u.Message
			if u.EditedMessage != nil {
				msg = u.EditedMessage
				msg.Edited = true
			}
			if msg == nil || msg.Text == "" {
				continue
			}
			handler(ctx, *msg)
		}
	}
}
