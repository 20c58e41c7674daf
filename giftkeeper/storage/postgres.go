package storage

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/giftkeeper/giftkeeper/giftkeeper/gift"
	"github.com/uptrace/bun"
)

type entryRow struct {
	bun.BaseModel `bun:"table:gift_entries,alias:ge"`

	ID           int64  `bun:"id,pk"`
	GameID       int64  `bun:"game_id,notnull"`
	Kind         int    `bun:"kind,notnull"`
	GameName     string `bun:"game_name,notnull"`
	Key          string `bun:"key,notnull"`
	OwnerID      int64  `bun:"owner_id,notnull"`
	OwnerName    string `bun:"owner_name,notnull"`
	SpaceID      int64  `bun:"space_id,notnull,default:0"`
	NeedApproval bool   `bun:"need_approval,notnull,default:true"`
}

// Postgres persists the gift pool in a single table. Save replaces the
// table's contents inside one transaction; the store is the authority, the
// table is only its durable copy.
type Postgres struct {
	db *bun.DB
}

func NewPostgres(ctx context.Context, db *DB) (*Postgres, error) {
	p := &Postgres{db: db.BunDB()}
	if _, err := p.db.NewCreateTable().
		Model((*entryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create gift_entries table: %w", err)
	}
	return p, nil
}

func (p *Postgres) Load(ctx context.Context) ([]*gift.Entry, error) {
	var rows []entryRow
	if err := p.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load gift pool: %w", err)
	}

	entries := make([]*gift.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, &gift.Entry{
			ID:           r.ID,
			GameID:       r.GameID,
			Kind:         gift.Kind(r.Kind),
			GameName:     r.GameName,
			Key:          r.Key,
			OwnerID:      snowflake.ID(r.OwnerID),
			OwnerName:    r.OwnerName,
			SpaceID:      snowflake.ID(r.SpaceID),
			NeedApproval: r.NeedApproval,
		})
	}
	return entries, nil
}

func (p *Postgres) Save(ctx context.Context, entries []*gift.Entry) error {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			ID:           e.ID,
			GameID:       e.GameID,
			Kind:         int(e.Kind),
			GameName:     e.GameName,
			Key:          e.Key,
			OwnerID:      int64(e.OwnerID),
			OwnerName:    e.OwnerName,
			SpaceID:      int64(e.SpaceID),
			NeedApproval: e.NeedApproval,
		})
	}

	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*entryRow)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear gift pool: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to write gift pool: %w", err)
		}
		return nil
	})
}
