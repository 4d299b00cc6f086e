package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdRun     = "run"
	cmdResults = "results"
	cmdExport  = "export"
)

// replyWithScanActions sends a message with an inline keyboard of the
// common per-scan actions attached.
func (b *Bot) replyWithScanActions(chatID int64, text string, scanID int64) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Run", fmt.Sprintf("run:%d", scanID)),
			tgbotapi.NewInlineKeyboardButtonData("Results", fmt.Sprintf("results:%d", scanID)),
			tgbotapi.NewInlineKeyboardButtonData("Export", fmt.Sprintf("export:%d", scanID)),
			tgbotapi.NewInlineKeyboardButtonData("Delete", fmt.Sprintf("delete_confirm:%d", scanID)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send scan actions", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	idStr := parts[1]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdRun:
		b.handleRun(ctx, chatID, idStr)
	case cmdResults:
		b.handleResults(ctx, chatID, idStr)
	case cmdExport:
		b.handleExport(ctx, chatID, idStr)
	case "keywords":
		b.handleKeywords(ctx, chatID, idStr)
	case "delete_confirm":
		scan, err := b.store.GetScan(ctx, id)
		if err != nil || scan.ChatID != chatID {
			b.reply(chatID, fmt.Sprintf("Scan #%d not found.", id))
			return
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete #%d \"%s\"? This cannot be undone.", id, scan.Title))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, delete", fmt.Sprintf("delete:%d", id)),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
			),
		)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send delete confirmation", "error", err)
		}
	case "delete":
		b.handleRemove(ctx, chatID, idStr)
	}
}
