package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/silviaroy/upscalerd/internal/config"
	"github.com/silviaroy/upscalerd/internal/ledger"
	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/pipeline"
)

// statusMessage tracks the in-flight status message for a job so that
// progress events edit it in place instead of flooding the chat.
type statusMessage struct {
	chatID    int64
	messageID int
	lastText  string
}

// Bot wires Telegram updates to the ledger and the job pipeline. It also
// implements pipeline.Notifier and pipeline.Deliverer so job status flows
// back to the originating chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	ledger *ledger.Ledger
	pipe   *pipeline.Pipeline

	// editLimiter paces message edits; progress ticks over the budget are
	// dropped rather than queued.
	editLimiter *rate.Limiter
	sendLimiter *rate.Limiter

	mu     sync.Mutex
	status map[string]statusMessage
}

func New(cfg *config.Config, lg *ledger.Ledger, pipe *pipeline.Pipeline) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		ledger:      lg,
		pipe:        pipe,
		editLimiter: rate.NewLimiter(rate.Limit(1), 3),
		sendLimiter: rate.NewLimiter(rate.Limit(25), 5),
		status:      make(map[string]statusMessage),
	}, nil
}

// Username returns the bot's Telegram username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	logger.Default().Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	ctx = logger.WithUserID(ctx, userID)
	log := logger.FromContext(ctx)

	if _, err := b.ledger.EnsureUser(ctx, userID, displayName(msg.From)); err != nil {
		log.Error("registering user", "error", err)
		b.reply(ctx, msg.Chat.ID, errorMessage)
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg, userID)
	case msg.Photo != nil || msg.Video != nil || msg.Document != nil:
		b.handleMedia(ctx, msg, userID)
	case strings.HasPrefix(msg.Text, "/"):
		b.reply(ctx, msg.Chat.ID, unknownCommandMessage)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID string) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(ctx, chatID, welcomeMessage(displayName(msg.From), b.cfg.MaxFreeUses))
	case "help":
		b.reply(ctx, chatID, helpMessage(b.cfg.MaxFreeUses, b.cfg.MaxImageSize/(1<<20), b.cfg.MaxVideoSize/(1<<20)))
	case "vip":
		b.sendVIPInfo(ctx, chatID, msg.From)
	case "usage":
		b.sendUsage(ctx, chatID, userID)
	case "admin":
		if !b.isAdmin(userID) {
			b.reply(ctx, chatID, notAdminMessage)
			return
		}
		b.reply(ctx, chatID, adminHelpMessage)
	case "stats":
		if !b.isAdmin(userID) {
			b.reply(ctx, chatID, notAdminMessage)
			return
		}
		b.sendStats(ctx, chatID)
	case "addvip":
		if !b.isAdmin(userID) {
			b.reply(ctx, chatID, notAdminMessage)
			return
		}
		b.grantVIP(ctx, chatID, msg.CommandArguments())
	case "resetusage":
		if !b.isAdmin(userID) {
			b.reply(ctx, chatID, notAdminMessage)
			return
		}
		b.resetUsage(ctx, chatID, msg.CommandArguments())
	default:
		b.reply(ctx, chatID, unknownCommandMessage)
	}
}

func (b *Bot) sendVIPInfo(ctx context.Context, chatID int64, from *tgbotapi.User) {
	userID := strconv.FormatInt(from.ID, 10)

	rec, err := b.ledger.Get(ctx, userID)
	if err == nil && rec.IsVIP {
		b.reply(ctx, chatID, vipStatusMessage)
		return
	}
	if b.isAdmin(userID) {
		b.reply(ctx, chatID, adminStatusMessage)
		return
	}

	msg := tgbotapi.NewMessage(chatID, vipInfoMessage)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = vipKeyboard(displayName(from), userID)
	b.send(ctx, msg)
}

func (b *Bot) sendUsage(ctx context.Context, chatID int64, userID string) {
	if b.isAdmin(userID) {
		b.reply(ctx, chatID, adminStatusMessage)
		return
	}

	rec, err := b.ledger.Get(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("reading usage", "error", err)
		b.reply(ctx, chatID, errorMessage)
		return
	}
	if rec.IsVIP {
		b.reply(ctx, chatID, vipStatusMessage)
		return
	}

	b.reply(ctx, chatID, usageInfoMessage(b.ledger.Remaining(rec), b.cfg.MaxFreeUses))
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	stats, err := b.ledger.Stats(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("collecting stats", "error", err)
		b.reply(ctx, chatID, errorMessage)
		return
	}
	b.reply(ctx, chatID, statsMessage(stats.TotalUsers, stats.VIPUsers, stats.TotalUsage, stats.ActiveUsers))
}

func (b *Bot) grantVIP(ctx context.Context, chatID int64, arg string) {
	target := strings.TrimSpace(arg)
	if target == "" {
		b.reply(ctx, chatID, addVipUsageMessage)
		return
	}

	found, err := b.ledger.SetVIP(ctx, target, true)
	if err != nil {
		logger.FromContext(ctx).Error("granting vip", "target", target, "error", err)
		b.reply(ctx, chatID, errorMessage)
		return
	}
	if !found {
		b.reply(ctx, chatID, userNotFoundMessage)
		return
	}

	b.reply(ctx, chatID, vipAddedMessage(target))

	if targetChat, err := strconv.ParseInt(target, 10, 64); err == nil {
		b.reply(ctx, targetChat, "🎉 Congratulations! You are now a VIP member with unlimited access.")
	}
}

func (b *Bot) resetUsage(ctx context.Context, chatID int64, arg string) {
	target := strings.TrimSpace(arg)
	if target == "" {
		b.reply(ctx, chatID, resetUsageHelpMessage)
		return
	}

	found, err := b.ledger.ResetUsage(ctx, target)
	if err != nil {
		logger.FromContext(ctx).Error("resetting usage", "target", target, "error", err)
		b.reply(ctx, chatID, errorMessage)
		return
	}
	if !found {
		b.reply(ctx, chatID, userNotFoundMessage)
		return
	}

	b.reply(ctx, chatID, usageResetMessage(target))
}

func (b *Bot) isAdmin(userID string) bool {
	return b.cfg.AdminID != "" && userID == b.cfg.AdminID
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(ctx, msg)
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.sendLimiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(c); err != nil {
		logger.FromContext(ctx).Warn("sending telegram message", "error", err)
	}
}

func vipKeyboard(name, userID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("✨ Join VIP", vipJoinURL(name, userID)),
		),
	)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
