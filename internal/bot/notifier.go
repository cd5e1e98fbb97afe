package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/silviaroy/upscalerd/internal/apperror"
	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/pipeline"
	"github.com/silviaroy/upscalerd/internal/policy"
)

// Notify implements pipeline.Notifier. Each job gets one status message
// that is edited in place as the job advances; progress ticks that exceed
// the edit budget are dropped.
func (b *Bot) Notify(ctx context.Context, ev pipeline.StatusEvent) error {
	chatID, err := strconv.ParseInt(ev.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing chat id %q: %w", ev.UserID, err)
	}

	switch ev.Type {
	case pipeline.EventAdmitted:
		return b.openStatus(ctx, chatID, ev)
	case pipeline.EventDenied:
		b.notifyDenied(ctx, chatID, ev)
		return nil
	case pipeline.EventProgress:
		return b.editStatus(ctx, ev.JobID, progressMessage(ev.Fraction), false)
	case pipeline.EventDelivering:
		return b.editStatus(ctx, ev.JobID, uploadingMessage, true)
	case pipeline.EventCompleted:
		return b.closeStatus(ctx, ev.JobID, completeMessage)
	case pipeline.EventFailed:
		return b.closeStatus(ctx, ev.JobID, errorMessage)
	}
	return nil
}

func (b *Bot) openStatus(ctx context.Context, chatID int64, ev pipeline.StatusEvent) error {
	text := processingImageMessage
	if ev.Kind == policy.KindVideo {
		text = processingVideoMessage
	}

	if err := b.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return fmt.Errorf("opening status message: %w", err)
	}

	b.mu.Lock()
	b.status[ev.JobID] = statusMessage{chatID: chatID, messageID: sent.MessageID, lastText: text}
	b.mu.Unlock()
	return nil
}

// editStatus rewrites a job's status message. Progress edits are rate
// limited and skipped when over budget; forced edits always go through.
func (b *Bot) editStatus(ctx context.Context, jobID, text string, force bool) error {
	b.mu.Lock()
	st, ok := b.status[jobID]
	if !ok || st.lastText == text {
		b.mu.Unlock()
		return nil
	}
	st.lastText = text
	b.status[jobID] = st
	b.mu.Unlock()

	if !force && !b.editLimiter.Allow() {
		return nil
	}

	_, err := b.api.Send(tgbotapi.NewEditMessageText(st.chatID, st.messageID, text))
	if err != nil {
		return fmt.Errorf("editing status message: %w", err)
	}
	return nil
}

func (b *Bot) closeStatus(ctx context.Context, jobID, text string) error {
	err := b.editStatus(ctx, jobID, text, true)

	b.mu.Lock()
	delete(b.status, jobID)
	b.mu.Unlock()
	return err
}

func (b *Bot) notifyDenied(ctx context.Context, chatID int64, ev pipeline.StatusEvent) {
	if ev.Reason != apperror.ErrQuotaExhausted.Code {
		b.reply(ctx, chatID, errorMessage)
		return
	}

	msg := tgbotapi.NewMessage(chatID, usageLimitMessage(b.cfg.MaxFreeUses))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = vipKeyboard("", ev.UserID)
	b.send(ctx, msg)
}

// Deliver implements pipeline.Deliverer by sending the output back as a
// photo or video with a quality caption.
func (b *Bot) Deliver(ctx context.Context, userID string, kind policy.MediaKind, outputPath, tierLabel string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing chat id %q: %w", userID, err)
	}

	if err := b.sendLimiter.Wait(ctx); err != nil {
		return err
	}

	caption := resultCaption(string(kind), tierLabel)

	var c tgbotapi.Chattable
	if kind == policy.KindVideo {
		v := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(outputPath))
		v.Caption = caption
		c = v
	} else {
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(outputPath))
		p.Caption = caption
		c = p
	}

	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("sending result: %w", err)
	}

	logger.FromContext(ctx).Info("result delivered", "kind", kind, "tier", tierLabel)
	return nil
}
