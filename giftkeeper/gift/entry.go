package gift

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// Kind tells whether an entry resolves against the Steam catalog or is a
// free-form key entered by its owner.
type Kind int

const (
	KindCustom Kind = iota
	KindSteam
)

func (k Kind) String() string {
	if k == KindSteam {
		return "Steam"
	}
	return "Custom"
}

// Entry is one redeemable key in the pool. Entries are immutable once added
// to the store; the only mutation is their removal at delivery.
type Entry struct {
	ID           int64        `json:"id"`
	GameID       int64        `json:"game_id"`
	Kind         Kind         `json:"kind"`
	GameName     string       `json:"game_name"`
	Key          string       `json:"key"`
	OwnerID      snowflake.ID `json:"owner_id"`
	OwnerName    string       `json:"owner_name"`
	SpaceID      snowflake.ID `json:"space_id"`
	NeedApproval bool         `json:"need_approval"`
}

// VisibleIn reports whether the entry may be listed in the given guild.
// A zero SpaceID means the entry is visible everywhere.
func (e *Entry) VisibleIn(spaceID snowflake.ID) bool {
	return e.SpaceID == 0 || e.SpaceID == spaceID
}

// DisplayText is the text shown for the entry's game: the store page for
// Steam games, the plain name for custom ones.
func (e *Entry) DisplayText() string {
	if e.Kind == KindSteam {
		return fmt.Sprintf("https://store.steampowered.com/app/%d", e.GameID)
	}
	return e.GameName
}
