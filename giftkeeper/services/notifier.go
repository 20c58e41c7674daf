package services

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
)

// DMNotifier delivers gift keys, approval asks, and notices over Discord
// DMs, and channel announcements for the minigame. It is the bot's
// implementation of both gift.Notifier and games.Announcer.
type DMNotifier struct {
	client bot.Client
}

func NewDMNotifier(client bot.Client) *DMNotifier {
	return &DMNotifier{client: client}
}

func (n *DMNotifier) dm(ctx context.Context, userID snowflake.ID, message discord.MessageCreate) error {
	channel, err := n.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	if _, err = n.client.Rest().CreateMessage(channel.ID(), message, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to DM %s: %w", userID, err)
	}
	return nil
}

func (n *DMNotifier) DeliverKey(ctx context.Context, recipientID snowflake.ID, entry *gift.Entry) error {
	content := fmt.Sprintf("Key for %s, gifted by <@%d> (%s): `%s`\nDon't forget to thank them for the free game!",
		entry.GameName, entry.OwnerID, entry.OwnerName, entry.Key)
	return n.dm(ctx, recipientID, discord.NewMessageCreateBuilder().
		SetContent(content).
		Build())
}

func (n *DMNotifier) NotifyUser(ctx context.Context, userID snowflake.ID, message string) error {
	return n.dm(ctx, userID, discord.NewMessageCreateBuilder().
		SetContent(message).
		Build())
}

func (n *DMNotifier) RequestApproval(ctx context.Context, ownerID snowflake.ID, requesterID snowflake.ID, entry *gift.Entry) error {
	content := fmt.Sprintf("<@%d> wants your key for %s. Do you want to gift it?", requesterID, entry.GameName)
	return n.dm(ctx, ownerID, discord.NewMessageCreateBuilder().
		SetContent(content).
		AddActionRow(
			discord.NewSuccessButton("Yes", fmt.Sprintf("/giftaccept/%d/%d", entry.ID, requesterID)),
			discord.NewDangerButton("No", fmt.Sprintf("/giftdeny/%d/%d", entry.ID, requesterID)),
		).
		Build())
}

func (n *DMNotifier) Announce(ctx context.Context, channelID snowflake.ID, message string) error {
	_, err := n.client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(message).
		Build(), rest.WithCtx(ctx))
	return err
}

func (n *DMNotifier) Reward(ctx context.Context, userID snowflake.ID, message string) error {
	return n.NotifyUser(ctx, userID, message)
}
