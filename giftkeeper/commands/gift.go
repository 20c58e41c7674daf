package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	"github.com/giftkeeper/giftkeeper/giftkeeper"
	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
	"github.com/giftkeeper/giftkeeper/giftkeeper/utils"
)

const carriersPerMenu = 25

var Gift = discord.SlashCommandCreate{
	Name:        "gift",
	Description: "Interact with the gift key pool",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Add a key to the gift pool",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "type",
					Description: "Where the key redeems",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Steam", Value: "steam"},
						{Name: "Custom", Value: "custom"},
					},
				},
				discord.ApplicationCommandOptionString{
					Name:         "game",
					Description:  "Game name (or Steam app ID)",
					Required:     true,
					Autocomplete: true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "key",
					Description: "The key itself",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "keep_to_this_server",
					Description: "Only show the gift in this server (default: true)",
				},
				discord.ApplicationCommandOptionBool{
					Name:        "need_approval",
					Description: "Require your approval before the key is handed out (default: true)",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "mine",
			Description: "Show keys owned by you",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List all available gifts",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "Withdraw one of your keys from the pool",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "id",
					Description: "The key's ID, as shown by /gift mine",
					Required:    true,
				},
			},
		},
	},
}

func GiftHandler(b *giftkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "add":
			return handleGiftAdd(b, e, data)
		case "mine":
			return handleGiftMine(b, e)
		case "list":
			return handleGiftList(b, e)
		case "remove":
			return handleGiftRemove(b, e, data)
		}
		return fmt.Errorf("unknown gift subcommand %q", *data.SubCommandName)
	}
}

func handleGiftAdd(b *giftkeeper.Bot, e *handler.CommandEvent, data discord.SlashCommandInteractionData) error {
	if e.GuildID() == nil {
		return utils.EH.CreateError(e, "Gifts can only be added from a server.")
	}

	kind := data.String("type")
	game := data.String("game")
	key := data.String("key")
	keepToServer := true
	if v, ok := data.OptBool("keep_to_this_server"); ok {
		keepToServer = v
	}
	needApproval := true
	if v, ok := data.OptBool("need_approval"); ok {
		needApproval = v
	}

	var spaceID snowflake.ID
	if keepToServer {
		spaceID = *e.GuildID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if kind == "steam" {
		if appID, parseErr := strconv.ParseInt(game, 10, 64); parseErr == nil {
			_, err = b.Gifts.AddSteamKey(ctx, spaceID, e.User().ID, e.User().Username, appID, key, needApproval)
		} else {
			_, err = b.Gifts.AddSteamKeyByName(ctx, spaceID, e.User().ID, e.User().Username, game, key, needApproval)
		}
	} else {
		_, err = b.Gifts.AddCustomKey(ctx, spaceID, e.User().ID, e.User().Username, game, key, needApproval)
	}

	if errors.Is(err, gift.ErrNotFound) {
		return utils.EH.CreateError(e, fmt.Sprintf("Steam game %q not found.", game))
	}
	if err != nil {
		return err
	}
	return utils.EH.CreateSuccess(e, "Added key.")
}

const keysPerPage = 10

func handleGiftMine(b *giftkeeper.Bot, e *handler.CommandEvent) error {
	entries := b.Gifts.EntriesOf(e.User().ID)
	if len(entries) == 0 {
		return utils.EH.CreateError(e, "You have no gifts.")
	}

	totalPages := (len(entries) + keysPerPage - 1) / keysPerPage

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * keysPerPage
			end := min(start+keysPerPage, len(entries))

			var description strings.Builder
			for _, entry := range entries[start:end] {
				fmt.Fprintf(&description, "`#%d` %s (%s): `%s`\n",
					entry.ID, entry.GameName, entry.Kind, entry.Key)
			}

			embed.
				SetTitle("Your gift keys").
				SetDescription(description.String()).
				SetColor(utils.SuccessColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d keys", page+1, totalPages, len(entries)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, true)
}

func handleGiftList(b *giftkeeper.Bot, e *handler.CommandEvent) error {
	if e.GuildID() == nil {
		return utils.EH.CreateError(e, "Gifts can only be listed from a server.")
	}

	carriers := b.Gifts.Carriers(*e.GuildID())
	if len(carriers) == 0 {
		return utils.EH.CreateError(e, "No gifts are available.")
	}

	var rows []discord.ContainerComponent
	for start := 0; start < len(carriers); start += carriersPerMenu {
		end := min(start+carriersPerMenu, len(carriers))

		options := make([]discord.StringSelectMenuOption, 0, end-start)
		for _, carrier := range carriers[start:end] {
			options = append(options, discord.NewStringSelectMenuOption(carrier.GameName, strconv.FormatInt(carrier.GameID, 10)).
				WithDescription(fmt.Sprintf("%d gift(s) available (Platform: %s)", len(carrier.Entries), carrier.Kind)))
		}

		rows = append(rows, discord.NewActionRow(
			discord.NewStringSelectMenu(fmt.Sprintf("/giftmenu/%d", start/carriersPerMenu), "Pick a game", options...).
				WithMaxValues(1),
		))
	}

	return e.CreateMessage(discord.MessageCreate{
		Content:    "Available gifts:",
		Components: rows,
		Flags:      discord.MessageFlagEphemeral,
	})
}

func handleGiftRemove(b *giftkeeper.Bot, e *handler.CommandEvent, data discord.SlashCommandInteractionData) error {
	entryID := int64(data.Int("id"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := b.Gifts.RemoveKey(ctx, entryID, e.User().ID)
	switch {
	case errors.Is(err, gift.ErrNotFound):
		return utils.EH.CreateError(e, "No such key.")
	case errors.Is(err, gift.ErrUnauthorized):
		return utils.EH.CreateError(e, "That key belongs to someone else.")
	case err != nil:
		return err
	}
	return utils.EH.CreateSuccess(e, "Removed key.")
}

// GiftAutocompleteHandler suggests steam games for /gift add.
func GiftAutocompleteHandler(b *giftkeeper.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		if e.Data.String("type") != "steam" {
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		query := e.Data.String(e.Data.Focused().Name)
		if strings.TrimSpace(query) == "" {
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		if appID, err := strconv.ParseInt(query, 10, 64); err == nil {
			if app, ok := b.Catalog.AppByID(appID); ok {
				return e.AutocompleteResult([]discord.AutocompleteChoice{
					discord.AutocompleteChoiceString{Name: truncate(app.Name, 100), Value: strconv.FormatInt(app.ID, 10)},
				})
			}
		}

		apps := b.Catalog.Search(query, 25)
		choices := make([]discord.AutocompleteChoice, 0, len(apps))
		for _, app := range apps {
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  truncate(app.Name, 100),
				Value: strconv.FormatInt(app.ID, 10),
			})
		}
		return e.AutocompleteResult(choices)
	}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
