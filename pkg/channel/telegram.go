package channel

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

	"github.com/sirupsen/logrus"
)

const (
	DefaultTelegramBaseURL = "https://api.telegram.org"
	defaultMaxRetries      = 3
	defaultRetryDelay      = time.Second
	defaultUpdateLimit     = 100
)

// TelegramConfig contains configuration for Telegram channels.
type TelegramConfig struct {
	BaseURL    string
	Token      string
	Username   string
	ChatID     string
	MaxRetries int
	RetryDelay time.Duration
}

// TelegramAPI drives the bot over the Telegram Bot HTTP API.
type TelegramAPI struct {
	cfg        *TelegramConfig
	chatID     int64
	httpClient *http.Client
	log        *logrus.Logger
}

// NewTelegramAPI creates a new Bot API channel.
// For metrics tracking, pass an HTTP client whose transport is wrapped by
// http.NewMetricsRoundTripper.
func NewTelegramAPI(cfg *TelegramConfig, httpClient *http.Client, log *logrus.Logger) (*TelegramAPI, error) {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramBaseURL
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q: %w", cfg.ChatID, err)
	}

	return &TelegramAPI{
		cfg:        cfg,
		chatID:     chatID,
		httpClient: httpClient,
		log:        log,
	}, nil
}

// Kind returns the kind of the channel.
func (t *TelegramAPI) Kind() Kind {
	return KindTelegramAPI
}

// Verify confirms the token is valid and belongs to the configured bot.
func (t *TelegramAPI) Verify(ctx context.Context) error {
	result, err := t.call(ctx, http.MethodGet, "getMe", nil)
	if err != nil {
		return err
	}

	var info tgUser
	if err := json.Unmarshal(result, &info); err != nil {
		return fmt.Errorf("failed to decode bot info: %w", err)
	}

	if !info.IsBot {
		return fmt.Errorf("token does not belong to a bot account")
	}

	if t.cfg.Username != "" && !strings.EqualFold(info.Username, t.cfg.Username) {
		return fmt.Errorf("token belongs to @%s, expected @%s", info.Username, t.cfg.Username)
	}

	t.log.WithField("bot", info.Username).Info("Bot API connection verified")

	return nil
}

// Send delivers a message to the bot via sendMessage.
func (t *TelegramAPI) Send(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"text":    text,
	}

	if _, err := t.call(ctx, http.MethodPost, "sendMessage", payload); err != nil {
		return err
	}

	return nil
}

// LatestReply returns the newest bot message in the configured chat that
// arrived after the given instant.
func (t *TelegramAPI) LatestReply(ctx context.Context, after time.Time) (string, error) {
	endpoint := fmt.Sprintf("getUpdates?limit=%d&timeout=0", defaultUpdateLimit)

	result, err := t.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var updates []tgUpdate
	if err := json.Unmarshal(result, &updates); err != nil {
		return "", fmt.Errorf("failed to decode updates: %w", err)
	}

	// Walk newest-first so the first match is the latest reply.
	for i := len(updates) - 1; i >= 0; i-- {
		msg := updates[i].Message
		if msg == nil {
			continue
		}

		if msg.Chat.ID != t.chatID || msg.Date <= after.Unix() {
			continue
		}

		if t.cfg.Username != "" {
			if msg.From == nil || !strings.EqualFold(msg.From.Username, t.cfg.Username) {
				continue
			}
		}

		return msg.Text, nil
	}

	return "", nil
}

// Screenshot is unsupported on the API channel.
func (t *TelegramAPI) Screenshot(_ context.Context, _ string) error {
	return ErrNoScreenshot
}

// Close releases the channel's resources.
func (t *TelegramAPI) Close(_ context.Context) error {
	t.httpClient.CloseIdleConnections()

	return nil
}

// call executes a Bot API method with retries. Transient failures back off
// linearly, matching the flood-control guidance for bot traffic.
func (t *TelegramAPI) call(ctx context.Context, method, endpoint string, payload interface{}) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= t.cfg.MaxRetries; attempt++ {
		result, err := t.callOnce(ctx, method, endpoint, payload)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == t.cfg.MaxRetries {
			break
		}

		t.log.WithFields(logrus.Fields{
			"endpoint": operationName(endpoint),
			"attempt":  attempt,
			"error":    err,
		}).Warn("Bot API call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.cfg.RetryDelay * time.Duration(attempt)):
		}
	}

	return nil, fmt.Errorf("bot API %s failed after %d attempts: %w", operationName(endpoint), t.cfg.MaxRetries, lastErr)
}

func (t *TelegramAPI) callOnce(ctx context.Context, method, endpoint string, payload interface{}) (json.RawMessage, error) {
	req, err := t.createRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	body, err := t.doRequest(req)
	if err != nil {
		return nil, err
	}

	var envelope tgResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.OK {
		return nil, fmt.Errorf("bot API error: %s", envelope.Description)
	}

	return envelope.Result, nil
}

func (t *TelegramAPI) createRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Request, error) {
	var body io.Reader

	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		body = bytes.NewBuffer(jsonPayload)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.cfg.BaseURL, t.cfg.Token, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (t *TelegramAPI) doRequest(req *http.Request) ([]byte, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// operationName strips any query string off an endpoint.
func operationName(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}

	return endpoint
}

// Bot API wire types, trimmed to the fields the harness reads.
type tgResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	From      *tgUser `json:"from"`
	Chat      tgChat  `json:"chat"`
	Date      int64   `json:"date"`
	Text      string  `json:"text"`
}

type tgUser struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type tgChat struct {
	ID int64 `json:"id"`
}
