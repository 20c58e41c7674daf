package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
)

// Uploader receives a copy of the pool after each successful save.
type Uploader interface {
	Upload(ctx context.Context, entries []*gift.Entry) error
}

// WithBackup decorates a backend with best-effort snapshot uploads. The
// upload runs in the background so a slow bucket never blocks a redemption;
// failures are logged and otherwise ignored.
type WithBackup struct {
	gift.Backend
	uploader Uploader
}

func NewWithBackup(backend gift.Backend, uploader Uploader) *WithBackup {
	return &WithBackup{Backend: backend, uploader: uploader}
}

func (b *WithBackup) Save(ctx context.Context, entries []*gift.Entry) error {
	err := b.Backend.Save(ctx, entries)
	if err != nil {
		return err
	}

	go func() {
		uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := b.uploader.Upload(uploadCtx, entries); err != nil {
			slog.Warn("Gift pool backup upload failed",
				slog.String("type", "gift"),
				slog.Any("error", err))
		}
	}()
	return nil
}
