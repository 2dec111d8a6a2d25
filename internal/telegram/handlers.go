package telegram

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	"github.com/baraks/slotwatch/internal/catalog"
	"github.com/baraks/slotwatch/internal/command"
	"github.com/baraks/slotwatch/internal/notify"
	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
	"github.com/baraks/slotwatch/internal/subscription"
)

const (
	repositoryFailureText = "😵 Something went wrong on our side. Please try again in a minute."
	rawResponseLimit      = 3500 // Telegram message cap is 4096, leave room for markup
)

// RawFetcher fetches one raw provider response for diagnostics.
type RawFetcher interface {
	FetchRaw(ctx context.Context, serviceID int64) (string, error)
}

// Handler routes inbound bot commands: register, unregister, help and the
// raw-response diagnostic. Anything that is not a known command gets the
// help text.
type Handler struct {
	catalog     *catalog.Catalog
	repo        subscription.Repository
	renderer    *notify.Renderer
	sink        notify.Sink
	fetcher     RawFetcher
	adminChatID int64
}

// NewHandler creates a command handler.
func NewHandler(
	cat *catalog.Catalog,
	repo subscription.Repository,
	renderer *notify.Renderer,
	sink notify.Sink,
	fetcher RawFetcher,
	adminChatID int64,
) *Handler {
	return &Handler{
		catalog:     cat,
		repo:        repo,
		renderer:    renderer,
		sink:        sink,
		fetcher:     fetcher,
		adminChatID: adminChatID,
	}
}

// HandleUpdate dispatches one inbound update to the matching command.
func (h *Handler) HandleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	cmd, args := splitCommand(msg.Text)
	if cmd == "" {
		return
	}

	log := ctxlog.FromContext(ctx)
	log.Debug("handling command", "command", cmd, "chat_id", msg.Chat.ID)
	recordCommand(cmd)

	switch cmd {
	case "register":
		h.handleRegister(ctx, msg, args)
	case "unregister":
		h.handleUnregister(ctx, msg, args)
	case "get_raw_response":
		h.handleRawResponse(ctx, msg, args)
	case "help", "start":
		h.handleHelp(ctx, msg)
	default:
		h.handleHelp(ctx, msg)
	}
}

// splitCommand extracts the command name and argument string from a message.
// Non-command text returns an empty name. The @botname suffix Telegram adds
// in group chats is stripped.
func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	cmd, args, _ = strings.Cut(text[1:], " ")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func (h *Handler) handleRegister(ctx context.Context, msg *Message, args string) {
	serviceIDs := command.ParseServiceIDs(h.catalog, args)
	if len(serviceIDs) == 0 {
		text, err := h.renderer.RenderRegisterConfirmation(nil)
		if err != nil {
			ctxlog.FromContext(ctx).Error("failed to render confirmation", "error", err)
			return
		}
		h.reply(ctx, msg.Chat.ID, text)
		return
	}

	var firstName, lastName string
	if msg.From != nil {
		firstName, lastName = msg.From.FirstName, msg.From.LastName
	}

	sub, err := h.repo.Upsert(ctx, msg.Chat.ID, firstName, lastName, serviceIDs)
	if err != nil {
		h.handleRepositoryError(ctx, msg.Chat.ID, "register failed", err)
		return
	}

	text, err := h.renderer.RenderRegisterConfirmation(h.displayNames(sub.ServiceIDs))
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to render confirmation", "error", err)
		return
	}
	h.reply(ctx, msg.Chat.ID, text)
}

func (h *Handler) handleUnregister(ctx context.Context, msg *Message, args string) {
	// No arguments means drop every subscription.
	serviceIDs := command.ParseServiceIDs(h.catalog, args)

	sub, err := h.repo.RemoveServices(ctx, msg.Chat.ID, serviceIDs)
	if err != nil {
		h.handleRepositoryError(ctx, msg.Chat.ID, "unregister failed", err)
		return
	}

	text, err := h.renderer.RenderUnregisterConfirmation(h.displayNames(sub.ServiceIDs))
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to render confirmation", "error", err)
		return
	}
	h.reply(ctx, msg.Chat.ID, text)
}

func (h *Handler) handleHelp(ctx context.Context, msg *Message) {
	text, err := h.renderer.RenderHelp(h.catalog.Entries())
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to render help", "error", err)
		return
	}
	h.reply(ctx, msg.Chat.ID, text)
}

func (h *Handler) handleRawResponse(ctx context.Context, msg *Message, args string) {
	serviceID := h.catalog.OrderedIDs()[0]
	if args != "" {
		id, err := strconv.ParseInt(args, 10, 64)
		if err != nil || !h.catalog.Contains(id) {
			h.reply(ctx, msg.Chat.ID, "Unknown service id. Send /help for the list.")
			return
		}
		serviceID = id
	}

	raw, err := h.fetcher.FetchRaw(ctx, serviceID)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "Fetch failed: <code>"+html.EscapeString(err.Error())+"</code>")
		return
	}

	if len(raw) > rawResponseLimit {
		raw = raw[:rawResponseLimit] + "…"
	}
	h.reply(ctx, msg.Chat.ID, "<pre>"+html.EscapeString(raw)+"</pre>")
}

// handleRepositoryError tells the subscriber their command failed and alerts
// the admin chat with the cause. The error never propagates further.
func (h *Handler) handleRepositoryError(ctx context.Context, chatID int64, reason string, err error) {
	log := ctxlog.FromContext(ctx)
	log.Error("subscription repository error",
		"chat_id", chatID,
		"reason", reason,
		"error", err,
	)

	h.reply(ctx, chatID, repositoryFailureText)

	if h.adminChatID == 0 || !errors.Is(err, subscription.ErrRepository) {
		return
	}

	alert, renderErr := h.renderer.RenderAdminAlert(reason, chatID, err)
	if renderErr != nil {
		log.Error("failed to render admin alert", "error", renderErr)
		return
	}
	if sendErr := h.sink.Send(ctx, h.adminChatID, alert); sendErr != nil {
		log.Error("failed to send admin alert", "error", sendErr)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.sink.Send(ctx, chatID, text); err != nil {
		ctxlog.FromContext(ctx).Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) displayNames(serviceIDs []int64) []string {
	names := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if name, ok := h.catalog.DisplayName(id); ok {
			names = append(names, name)
		}
	}
	return names
}
