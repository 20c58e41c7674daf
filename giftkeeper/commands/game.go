package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/giftkeeper/giftkeeper/giftkeeper"
	"github.com/giftkeeper/giftkeeper/giftkeeper/games"
	"github.com/giftkeeper/giftkeeper/giftkeeper/utils"
)

var Game = discord.SlashCommandCreate{
	Name:        "game",
	Description: "Interact with the key game system",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "number",
			Description: "Start a number guessing game in this channel",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "reward",
					Description: "Message DMed to the winner (put the key here)",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "minutes",
					Description: "Game length in minutes (default: 10, max: 60)",
					MinValue:    utils.Ptr(1),
					MaxValue:    utils.Ptr(60),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "min",
					Description: "Lowest possible number (default: 0)",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "max",
					Description: "Highest possible number (default: 500)",
				},
			},
		},
	},
}

func GameHandler(b *giftkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		if *data.SubCommandName != "number" {
			return fmt.Errorf("unknown game subcommand %q", *data.SubCommandName)
		}

		reward := data.String("reward")
		minutes := 10
		if v, ok := data.OptInt("minutes"); ok {
			minutes = v
		}
		minNumber := int64(0)
		if v, ok := data.OptInt("min"); ok {
			minNumber = int64(v)
		}
		maxNumber := int64(500)
		if v, ok := data.OptInt("max"); ok {
			maxNumber = int64(v)
		}

		err := b.NumberGame.Start(reward, time.Duration(minutes)*time.Minute, e.ChannelID(), minNumber, maxNumber)
		switch {
		case errors.Is(err, games.ErrGameActive):
			return utils.EH.CreateError(e, "A number game is already running.")
		case errors.Is(err, games.ErrBadRange):
			return utils.EH.CreateError(e, "The number range is invalid.")
		case errors.Is(err, games.ErrBadTimeout):
			return utils.EH.CreateError(e, "The game can last at most one hour.")
		case err != nil:
			return err
		}

		if _, err := e.Client().Rest().CreateMessage(e.ChannelID(), discord.NewMessageCreateBuilder().
			SetContentf("Started a number guessing game! It lasts %d minutes; the number is between %d and %d.",
				minutes, minNumber, maxNumber).
			Build()); err != nil {
			b.NumberGame.Stop()
			return err
		}
		return utils.EH.CreateSuccess(e, "Game created.")
	}
}
