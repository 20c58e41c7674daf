package gift

import (
	"github.com/disgoorg/snowflake/v2"
)

// Carrier is the read-only grouping of all live entries that share a GameID,
// plus the display metadata of the first entry seen for that game. Carriers
// are rebuilt from the store after every mutation and handed out as fresh
// filtered copies per guild; they are never mutated in place.
type Carrier struct {
	GameID   int64
	GameName string
	GameText string
	Kind     Kind
	Entries  []*Entry
}

// OwnerGroup is a carrier's entries contributed by a single owner.
type OwnerGroup struct {
	OwnerID   snowflake.ID
	OwnerName string
	Entries   []*Entry
}

// Owners groups the carrier's entries by contributing owner, preserving
// first-seen order.
func (c *Carrier) Owners() []OwnerGroup {
	var groups []OwnerGroup
	index := make(map[snowflake.ID]int)

	for _, entry := range c.Entries {
		i, ok := index[entry.OwnerID]
		if !ok {
			i = len(groups)
			index[entry.OwnerID] = i
			groups = append(groups, OwnerGroup{OwnerID: entry.OwnerID, OwnerName: entry.OwnerName})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}

	return groups
}

// buildCarriers folds the live entries into carriers, one per GameID, in
// first-seen order.
func buildCarriers(entries []*Entry) []*Carrier {
	var carriers []*Carrier
	index := make(map[int64]int)

	for _, entry := range entries {
		i, ok := index[entry.GameID]
		if !ok {
			i = len(carriers)
			index[entry.GameID] = i
			carriers = append(carriers, &Carrier{
				GameID:   entry.GameID,
				GameName: entry.GameName,
				GameText: entry.DisplayText(),
				Kind:     entry.Kind,
			})
		}
		carriers[i].Entries = append(carriers[i].Entries, entry)
	}

	return carriers
}

// filterForSpace projects the cached carriers for one guild: each carrier is
// copied with only the entries visible there, and carriers left empty are
// dropped. Applied on every read; per-guild results are deliberately not
// cached since the guild count is unbounded.
func filterForSpace(carriers []*Carrier, spaceID snowflake.ID) []*Carrier {
	filtered := make([]*Carrier, 0, len(carriers))

	for _, c := range carriers {
		var visible []*Entry
		for _, entry := range c.Entries {
			if entry.VisibleIn(spaceID) {
				visible = append(visible, entry)
			}
		}
		if len(visible) == 0 {
			continue
		}
		filtered = append(filtered, &Carrier{
			GameID:   c.GameID,
			GameName: c.GameName,
			GameText: c.GameText,
			Kind:     c.Kind,
			Entries:  visible,
		})
	}

	return filtered
}
