package main

import (
	"context"
	"errors"
	"sync"

	"github.com/silviaroy/upscalerd/internal/bot"
	"github.com/silviaroy/upscalerd/internal/pipeline"
	"github.com/silviaroy/upscalerd/internal/policy"
)

var errTransportNotReady = errors.New("transport not ready")

// deferredTransport breaks the construction cycle between the pipeline
// and the bot: the pipeline needs a Deliverer and Notifier before the
// bot exists, and the bot needs the pipeline to submit jobs. No job can
// reach the pipeline before set is called, so the nil checks only guard
// against programming errors.
type deferredTransport struct {
	mu sync.RWMutex
	b  *bot.Bot
}

func (d *deferredTransport) set(b *bot.Bot) {
	d.mu.Lock()
	d.b = b
	d.mu.Unlock()
}

func (d *deferredTransport) get() *bot.Bot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.b
}

func (d *deferredTransport) Deliver(ctx context.Context, userID string, kind policy.MediaKind, outputPath, tierLabel string) error {
	b := d.get()
	if b == nil {
		return errTransportNotReady
	}
	return b.Deliver(ctx, userID, kind, outputPath, tierLabel)
}

func (d *deferredTransport) Notify(ctx context.Context, ev pipeline.StatusEvent) error {
	b := d.get()
	if b == nil {
		return errTransportNotReady
	}
	return b.Notify(ctx, ev)
}
