package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"github.com/giftkeeper/giftkeeper/giftkeeper"
	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
	"github.com/giftkeeper/giftkeeper/giftkeeper/utils"
)

// GiftMenuHandler answers the game select menu from /gift list with one
// button per contributing owner.
func GiftMenuHandler(b *giftkeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		data, ok := e.Data.(discord.StringSelectMenuInteractionData)
		if !ok || len(data.Values) == 0 {
			return nil
		}
		gameID, err := strconv.ParseInt(data.Values[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad game id %q: %w", data.Values[0], err)
		}
		if e.GuildID() == nil {
			return nil
		}

		carrier := findCarrier(b.Gifts.Carriers(*e.GuildID()), gameID)
		if carrier == nil {
			return utils.EH.ComponentError(e, "That gift is no longer available.")
		}

		var buttons []discord.InteractiveComponent
		for _, owner := range carrier.Owners() {
			label := fmt.Sprintf("Get from %s", owner.OwnerName)
			if owner.Entries[0].NeedApproval {
				label = fmt.Sprintf("Ask %s", owner.OwnerName)
			}
			buttons = append(buttons, discord.NewPrimaryButton(label,
				fmt.Sprintf("/giftget/%d/%d", gameID, owner.OwnerID)))
		}

		copies := "is 1 copy"
		if len(carrier.Entries) > 1 {
			copies = fmt.Sprintf("are %d copies", len(carrier.Entries))
		}
		content := fmt.Sprintf("There %s of %s available.", copies, carrier.GameName)
		if carrier.Kind == gift.KindSteam {
			content += "\nSteam link: " + carrier.GameText
		}

		return e.CreateMessage(discord.MessageCreate{
			Content:    content,
			Components: []discord.ContainerComponent{discord.NewActionRow(buttons...)},
			Flags:      discord.MessageFlagEphemeral,
		})
	}
}

// GiftGetHandler runs when a recipient picks an owner to redeem from. For
// approval-free gifts it redeems on the spot; otherwise it forwards the ask
// to the owner.
func GiftGetHandler(b *giftkeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		gameID, err := strconv.ParseInt(e.Vars["game"], 10, 64)
		if err != nil {
			return fmt.Errorf("bad game id: %w", err)
		}
		ownerID, err := snowflake.Parse(e.Vars["owner"])
		if err != nil {
			return fmt.Errorf("bad owner id: %w", err)
		}
		if e.GuildID() == nil {
			return nil
		}

		carrier := findCarrier(b.Gifts.Carriers(*e.GuildID()), gameID)
		if carrier == nil {
			return utils.EH.ComponentError(e, "That gift is no longer available.")
		}

		var entry *gift.Entry
		for _, owner := range carrier.Owners() {
			if owner.OwnerID == ownerID {
				entry = owner.Entries[0]
				break
			}
		}
		if entry == nil {
			return utils.EH.ComponentError(e, "That owner has no keys left for this game.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if entry.NeedApproval {
			if err := b.Gifts.RequestApproval(ctx, entry.ID, ownerID, e.User().ID); err != nil {
				return utils.EH.ComponentError(e, "Could not reach the gift's owner. Please try again later.")
			}
			return utils.EH.ComponentSuccess(e, fmt.Sprintf(
				"Asked %s for %s. Keep your DMs open to receive the key if they accept.",
				entry.OwnerName, entry.GameName))
		}

		err = b.Gifts.RedeemDirect(ctx, entry.ID, ownerID, e.User().ID)
		switch {
		case errors.Is(err, gift.ErrConflict):
			return utils.EH.ComponentError(e, "Someone else is claiming this gift right now. Please try again.")
		case errors.Is(err, gift.ErrDeliveryFailed):
			return utils.EH.ComponentError(e, "Failed to DM you the key. Are your DMs open with the bot?")
		case errors.Is(err, gift.ErrNotFound):
			return utils.EH.ComponentError(e, "That gift is no longer available.")
		case err != nil:
			return err
		}
		return utils.EH.ComponentSuccess(e, "Claimed! Check your DMs for the key. Don't forget to thank the gifter!")
	}
}

// GiftAcceptHandler runs when an owner accepts an approval request from
// their DMs. Several accepts can race for the same entry; the reservation
// decides the winner.
func GiftAcceptHandler(b *giftkeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		entryID, err := strconv.ParseInt(e.Vars["entry"], 10, 64)
		if err != nil {
			return fmt.Errorf("bad entry id: %w", err)
		}
		requesterID, err := snowflake.Parse(e.Vars["requester"])
		if err != nil {
			return fmt.Errorf("bad requester id: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err = b.Gifts.RespondApproval(ctx, entryID, true, e.User().ID, requesterID)
		switch {
		case errors.Is(err, gift.ErrNotFound):
			return utils.EH.ComponentError(e, "This gift no longer exists.")
		case errors.Is(err, gift.ErrUnauthorized):
			return utils.EH.ComponentError(e, "This gift isn't yours to give.")
		case errors.Is(err, gift.ErrConflict):
			return utils.EH.ComponentError(e, "This gift was already claimed by an earlier accept.")
		case errors.Is(err, gift.ErrDeliveryFailed):
			return utils.EH.ComponentError(e, "Could not DM the key to the requester. The gift stays in the pool.")
		case err != nil:
			return err
		}
		return utils.EH.ComponentSuccess(e, fmt.Sprintf("Accepted! The key was sent to <@%d>.", requesterID))
	}
}

// GiftDenyHandler runs when an owner denies an approval request.
func GiftDenyHandler(b *giftkeeper.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		entryID, err := strconv.ParseInt(e.Vars["entry"], 10, 64)
		if err != nil {
			return fmt.Errorf("bad entry id: %w", err)
		}
		requesterID, err := snowflake.Parse(e.Vars["requester"])
		if err != nil {
			return fmt.Errorf("bad requester id: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err = b.Gifts.RespondApproval(ctx, entryID, false, e.User().ID, requesterID)
		switch {
		case errors.Is(err, gift.ErrNotFound):
			return utils.EH.ComponentError(e, "This gift no longer exists.")
		case errors.Is(err, gift.ErrUnauthorized):
			return utils.EH.ComponentError(e, "This gift isn't yours to deny.")
		case err != nil:
			return err
		}
		return utils.EH.ComponentSuccess(e, "Denied the gift request.")
	}
}

func findCarrier(carriers []*gift.Carrier, gameID int64) *gift.Carrier {
	for _, c := range carriers {
		if c.GameID == gameID {
			return c
		}
	}
	return nil
}
