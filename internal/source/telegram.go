package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgscan/internal/model"
)

// ChatSource delivers messages observed in one Telegram chat. The bot's
// update loop feeds it via Offer; the scan drains it via Next. Closing
// the source ends the stream for the consumer.
type ChatSource struct {
	ch chan model.Message
}

// NewChatSource creates a ChatSource with the given buffer size.
func NewChatSource(buffer int) *ChatSource {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChatSource{ch: make(chan model.Message, buffer)}
}

// Offer hands a message to the source without blocking. It reports
// false when the buffer is full and the message was dropped; the
// consumer is too far behind to keep every record, and a partial
// stream is still a valid scan.
func (s *ChatSource) Offer(msg model.Message) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Close ends the stream. Offer must not be called after Close.
func (s *ChatSource) Close() {
	close(s.ch)
}

// Next returns the next observed message, ErrEndOfStream once the
// source is closed and drained, or the context error.
func (s *ChatSource) Next(ctx context.Context) (model.Message, error) {
	select {
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return model.Message{}, ErrEndOfStream
		}
		return msg, nil
	}
}

// MessageFromUpdate converts a Telegram update message to a domain
// message. Messages without a sender keep a zero author id.
func MessageFromUpdate(m *tgbotapi.Message) model.Message {
	msg := model.Message{
		ID:      int64(m.MessageID),
		GroupID: m.Chat.ID,
		Text:    m.Text,
		SentAt:  m.Time(),
	}
	if m.Text == "" {
		msg.Text = m.Caption
	}
	if m.From != nil {
		msg.AuthorID = m.From.ID
		msg.AuthorUsername = m.From.UserName
	}
	return msg
}

// ChatGetter is the part of the Telegram API needed to resolve a group.
type ChatGetter interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// ResolveGroup resolves a target group once, before iteration starts.
// Accepted forms: https://t.me/<name>, t.me/<name>, @<name>, or a
// numeric chat id. Private invite links cannot be resolved through the
// Bot API and are rejected.
func ResolveGroup(api ChatGetter, target string) (model.Group, error) {
	username, chatID, err := parseTarget(target)
	if err != nil {
		return model.Group{}, err
	}

	cfg := tgbotapi.ChatInfoConfig{}
	if chatID != 0 {
		cfg.ChatConfig = tgbotapi.ChatConfig{ChatID: chatID}
	} else {
		cfg.ChatConfig = tgbotapi.ChatConfig{SuperGroupUsername: "@" + username}
	}

	chat, err := api.GetChat(cfg)
	if err != nil {
		return model.Group{}, fmt.Errorf("resolve group %q: %w", target, err)
	}

	group := model.Group{ID: chat.ID, Title: chat.Title}
	if group.Title == "" {
		group.Title = chat.UserName
	}
	switch {
	case strings.Contains(target, "t.me/"):
		group.Link = target
	case chat.UserName != "":
		group.Link = "https://t.me/" + chat.UserName
	default:
		group.Link = target
	}
	return group, nil
}

func parseTarget(target string) (username string, chatID int64, err error) {
	t := strings.TrimSpace(target)
	if t == "" {
		return "", 0, fmt.Errorf("empty group target")
	}

	if id, perr := strconv.ParseInt(t, 10, 64); perr == nil {
		return "", id, nil
	}

	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "http://")
	t = strings.TrimPrefix(t, "t.me/")
	t = strings.TrimPrefix(t, "@")
	t = strings.TrimSuffix(t, "/")

	if t == "" || strings.HasPrefix(t, "+") || strings.HasPrefix(t, "joinchat/") {
		return "", 0, fmt.Errorf("cannot resolve invite link %q: use the public @name or chat id", target)
	}
	if strings.ContainsAny(t, "/?") {
		return "", 0, fmt.Errorf("invalid group target %q", target)
	}
	return t, 0, nil
}
