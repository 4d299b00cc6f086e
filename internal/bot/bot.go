package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgscan/internal/config"
	"tgscan/internal/source"
	"tgscan/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that manages scans and delivers their results.
// Besides commands it watches group messages: while a live scan is
// running, messages from the scanned group are routed into its source.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	cfg     *config.Config
	fetcher *source.FeedFetcher
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[int64][]*liveSession
}

// liveSession is one in-flight live scan attached to a group chat.
type liveSession struct {
	scanID int64
	src    *source.ChatSource
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		fetcher:  source.NewFeedFetcher(http.DefaultClient),
		log:      log,
		sessions: make(map[int64][]*liveSession),
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil {
				continue
			}
			if !update.Message.IsCommand() {
				b.routeMessage(update.Message)
				continue
			}
			if update.Message.From != nil && !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// routeMessage feeds a non-command group message into every live scan
// currently attached to that group. A full session buffer drops the
// message rather than stalling the update loop.
func (b *Bot) routeMessage(m *tgbotapi.Message) {
	b.mu.Lock()
	sessions := append([]*liveSession(nil), b.sessions[m.Chat.ID]...)
	b.mu.Unlock()

	if len(sessions) == 0 {
		return
	}

	msg := source.MessageFromUpdate(m)
	for _, s := range sessions {
		if !s.src.Offer(msg) {
			b.log.Warn("scan buffer full, message dropped",
				"scan_id", s.scanID, "group_id", m.Chat.ID, "message_id", m.MessageID)
		}
	}
}

func (b *Bot) addSession(groupID int64, s *liveSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[groupID] = append(b.sessions[groupID], s)
}

func (b *Bot) removeSession(groupID int64, s *liveSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.sessions[groupID]
	for i, cur := range list {
		if cur == s {
			b.sessions[groupID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.sessions[groupID]) == 0 {
		delete(b.sessions, groupID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "add":
		b.handleAdd(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID)
	case "info":
		b.handleInfo(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "include":
		b.handleAddKeyword(ctx, chatID, args, "include")
	case "exclude":
		b.handleAddKeyword(ctx, chatID, args, "exclude")
	case "keywords":
		b.handleKeywords(ctx, chatID, args)
	case "rmkeyword":
		b.handleRmKeyword(ctx, chatID, args)
	case "case":
		b.handleCase(ctx, chatID, args)
	case "dups":
		b.handleDups(ctx, chatID, args)
	case "limit":
		b.handleLimit(ctx, chatID, args)
	case "pause":
		b.handlePause(ctx, chatID, args)
	case "resume":
		b.handleResume(ctx, chatID, args)
	case cmdRun:
		b.handleRun(ctx, chatID, args)
	case cmdResults:
		b.handleResults(ctx, chatID, args)
	case cmdExport:
		b.handleExport(ctx, chatID, args)
	case "clear":
		b.handleClear(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
