package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/silviaroy/upscalerd/internal/apperror"
	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/pipeline"
	"github.com/silviaroy/upscalerd/internal/policy"
)

// incomingMedia is the normalized shape of a photo, video, or media
// document before admission.
type incomingMedia struct {
	kind      policy.MediaKind
	fileID    string
	width     int
	height    int
	sizeBytes int64
}

func (b *Bot) handleMedia(ctx context.Context, msg *tgbotapi.Message, userID string) {
	chatID := msg.Chat.ID
	log := logger.FromContext(ctx)

	media, ok := b.extractMedia(msg)
	if !ok {
		b.reply(ctx, chatID, unsupportedMessage)
		return
	}

	// Size limits are enforced before touching the quota so an oversized
	// upload never burns a conversion.
	switch media.kind {
	case policy.KindImage:
		if media.sizeBytes > b.cfg.MaxImageSize {
			b.reply(ctx, chatID, tooLargeMessage("image", b.cfg.MaxImageSize/(1<<20)))
			return
		}
	case policy.KindVideo:
		if media.sizeBytes > b.cfg.MaxVideoSize {
			b.reply(ctx, chatID, tooLargeMessage("video", b.cfg.MaxVideoSize/(1<<20)))
			return
		}
	}

	if media.width <= 0 || media.height <= 0 {
		b.reply(ctx, chatID, noGeometryMessage)
		return
	}

	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: media.fileID})
	if err != nil {
		log.Error("resolving telegram file", "file_id", media.fileID, "error", err)
		b.reply(ctx, chatID, errorMessage)
		return
	}

	err = b.pipe.Submit(ctx, pipeline.Request{
		UserID:        userID,
		Kind:          media.kind,
		SourceRef:     file.Link(b.api.Token),
		SourceWidth:   media.width,
		SourceHeight:  media.height,
		FileSizeBytes: media.sizeBytes,
	})
	if err != nil && !errors.Is(err, apperror.ErrQuotaExhausted) {
		// Quota denials are already surfaced through Notify.
		log.Error("submitting job", "error", err)
	}
}

// extractMedia picks the best representation out of the message. Photos come
// as size variants; the last entry is the largest.
func (b *Bot) extractMedia(msg *tgbotapi.Message) (incomingMedia, bool) {
	if len(msg.Photo) > 0 {
		p := msg.Photo[len(msg.Photo)-1]
		return incomingMedia{
			kind:      policy.KindImage,
			fileID:    p.FileID,
			width:     p.Width,
			height:    p.Height,
			sizeBytes: int64(p.FileSize),
		}, true
	}

	if msg.Video != nil {
		v := msg.Video
		return incomingMedia{
			kind:      policy.KindVideo,
			fileID:    v.FileID,
			width:     v.Width,
			height:    v.Height,
			sizeBytes: int64(v.FileSize),
		}, true
	}

	if msg.Document != nil {
		return b.extractDocument(msg.Document)
	}

	return incomingMedia{}, false
}

// extractDocument accepts image/* and video/* documents. Telegram does not
// report dimensions for documents, so the thumbnail's aspect holds the only
// geometry hint; uploads without one are bounced back with noGeometryMessage.
func (b *Bot) extractDocument(doc *tgbotapi.Document) (incomingMedia, bool) {
	var kind policy.MediaKind
	switch {
	case strings.HasPrefix(doc.MimeType, "image/"):
		kind = policy.KindImage
	case strings.HasPrefix(doc.MimeType, "video/"):
		kind = policy.KindVideo
	default:
		return incomingMedia{}, false
	}

	media := incomingMedia{
		kind:      kind,
		fileID:    doc.FileID,
		sizeBytes: int64(doc.FileSize),
	}
	if doc.Thumbnail != nil {
		media.width = doc.Thumbnail.Width
		media.height = doc.Thumbnail.Height
	}
	return media, true
}
