package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
)

const defaultUpdatesURL = "https://api.telegram.org/bot%s/getUpdates"

// Update is one inbound Bot API update. Only message updates matter here;
// everything else is skipped but still advances the offset.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User is the message author.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Chat identifies the conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// UpdateHandler processes one inbound update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update Update)
}

// PollerConfig contains update poller configuration.
type PollerConfig struct {
	BotToken    string
	PollTimeout time.Duration
}

// Poller long-polls getUpdates and hands each update to the handler. It is
// the only consumer of the bot's update stream, so the confirmed offset
// lives here and nowhere else.
type Poller struct {
	config     PollerConfig
	handler    UpdateHandler
	httpClient *http.Client
	apiURL     string
	offset     int64
}

// NewPoller creates a new update poller.
func NewPoller(config PollerConfig, handler UpdateHandler) (*Poller, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 30 * time.Second
	}

	return &Poller{
		config:  config,
		handler: handler,
		httpClient: &http.Client{
			// Long poll plus headroom for the response itself.
			Timeout: config.PollTimeout + 10*time.Second,
		},
		apiURL: defaultUpdatesURL,
	}, nil
}

// Run polls until the context is cancelled. Transient API failures back off
// briefly instead of hammering the endpoint.
func (p *Poller) Run(ctx context.Context) {
	log := ctxlog.FromContext(ctx)
	log.Info("telegram poller started", "poll_timeout", p.config.PollTimeout)

	for {
		if ctx.Err() != nil {
			log.Info("telegram poller stopped")
			return
		}

		updates, err := p.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("telegram poller stopped")
				return
			}
			log.Error("failed to fetch updates", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}
			p.handler.HandleUpdate(ctx, update)
		}
	}
}

func (p *Poller) getUpdates(ctx context.Context) ([]Update, error) {
	endpoint := fmt.Sprintf(p.apiURL, p.config.BotToken)

	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(p.config.PollTimeout.Seconds())))
	if p.offset > 0 {
		q.Set("offset", strconv.FormatInt(p.offset, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded struct {
		OK          bool     `json:"ok"`
		Description string   `json:"description"`
		Result      []Update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("getUpdates failed: %s", decoded.Description)
	}

	return decoded.Result, nil
}
