package handlers

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/giftkeeper/giftkeeper/giftkeeper"
)

// MessageHandler feeds guild messages to the number-guess game.
func MessageHandler(b *giftkeeper.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		if e.Message.Author.Bot || b.NumberGame == nil {
			return
		}
		b.NumberGame.HandleMessage(context.Background(), e.ChannelID, e.Message.Author.ID, e.Message.Content)
	})
}
