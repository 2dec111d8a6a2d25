// Package telegram implements the Telegram Bot API transport: the outbound
// message sender and the inbound command poller.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIURL    = "https://api.telegram.org/bot%s/sendMessage"
	defaultRateLimit = 25.0 // Bot API allows ~30 msg/s, stay under
	defaultTimeout   = 30 * time.Second
)

// Config contains Telegram sender configuration.
type Config struct {
	BotToken  string
	RateLimit float64 // messages per second
}

// Sender sends messages via the Telegram Bot API.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewSender creates a new Telegram sender.
func NewSender(config Config) (*Sender, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}

	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send delivers one message to one chat. Satisfies notify.Sink.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := sendMessageRequest{
		ChatID:    strconv.FormatInt(chatID, 10),
		Text:      text,
		ParseMode: "HTML",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(s.apiURL, s.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Code: 0, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if tgResp.OK {
		return nil
	}

	return s.classifyError(resp.StatusCode, tgResp)
}

func (s *Sender) classifyError(statusCode int, resp telegramResponse) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		retryAfter := 1 * time.Second
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    resp.Description,
		}

	case statusCode == http.StatusUnauthorized:
		return &PermanentError{
			Code:    resp.ErrorCode,
			Message: "invalid bot token: " + resp.Description,
		}

	case statusCode == http.StatusForbidden,
		statusCode == http.StatusNotFound,
		statusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.ErrorCode,
			Message: resp.Description,
		}

	case statusCode >= 500:
		return &RetryableError{
			Code:    resp.ErrorCode,
			Message: resp.Description,
		}

	default:
		// Unknown Bot API failure; chat-specific descriptions are permanent.
		if strings.Contains(resp.Description, "chat not found") {
			return &PermanentError{Code: resp.ErrorCode, Message: resp.Description}
		}
		return &RetryableError{Code: resp.ErrorCode, Message: resp.Description}
	}
}
