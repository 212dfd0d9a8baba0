package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gridmerge/internal/cellstate"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

// ModificationRow is one row of cell_modifications.
type ModificationRow struct {
	LatIndex int32
	LngIndex int32
	Kind     int16
	Value    int64
}

func rowFromEntry(e cellstate.Entry) ModificationRow {
	return ModificationRow{
		LatIndex: e.Cell.Lat,
		LngIndex: e.Cell.Lng,
		Kind:     int16(e.Mod.Kind),
		Value:    int64(e.Mod.Value),
	}
}

func (r ModificationRow) entry() cellstate.Entry {
	return cellstate.Entry{
		Cell: world.CellID{Lat: r.LatIndex, Lng: r.LngIndex},
		Mod: cellstate.Modification{
			Kind:  cellstate.Kind(r.Kind),
			Value: token.Value(r.Value),
		},
	}
}

// SnapshotRepository stores the whole game snapshot: one game_state row plus
// the full set of cell modifications.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save replaces the stored snapshot in a single transaction.
// Either all data is saved or none.
func (r *SnapshotRepository) Save(ctx context.Context, snap game.Snapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "error", err)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO game_state (id, lat, lng, inventory, updated_at)
		 VALUES (1, $1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE
		 SET lat = EXCLUDED.lat, lng = EXCLUDED.lng,
		     inventory = EXCLUDED.inventory, updated_at = EXCLUDED.updated_at`,
		snap.Position.Lat, snap.Position.Lng, int64(snap.Inventory),
	)
	if err != nil {
		return fmt.Errorf("saving game state: %w", err)
	}

	if err := r.saveModificationsTx(ctx, tx, snap.Modifications); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Debug("snapshot saved",
		"inventory", snap.Inventory,
		"modifications", len(snap.Modifications))

	return nil
}

// saveModificationsTx performs a full replace: deletes all existing rows, then inserts.
func (r *SnapshotRepository) saveModificationsTx(ctx context.Context, tx pgx.Tx, entries []cellstate.Entry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cell_modifications`); err != nil {
		return fmt.Errorf("deleting old modifications: %w", err)
	}

	if len(entries) == 0 {
		return nil
	}

	// Bulk insert using COPY
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		row := rowFromEntry(e)
		rows = append(rows, []any{row.LatIndex, row.LngIndex, row.Kind, row.Value})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cell_modifications"},
		[]string{"lat_index", "lng_index", "kind", "value"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting %d modifications: %w", len(entries), err)
	}
	return nil
}

// Load returns the stored snapshot. ok is false if nothing was saved yet.
// The result is not validated; game.Engine.ImportSnapshot does that.
func (r *SnapshotRepository) Load(ctx context.Context) (snap game.Snapshot, ok bool, err error) {
	var inventory int64
	err = r.db.QueryRow(ctx,
		`SELECT lat, lng, inventory FROM game_state WHERE id = 1`,
	).Scan(&snap.Position.Lat, &snap.Position.Lng, &inventory)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, false, nil // NOT ERROR, just not saved yet
	}
	if err != nil {
		return game.Snapshot{}, false, fmt.Errorf("querying game state: %w", err)
	}
	if inventory < 0 || inventory > int64(^uint32(0)) {
		return game.Snapshot{}, false, fmt.Errorf("%w: inventory %d out of range", game.ErrCorruptSnapshot, inventory)
	}
	snap.Inventory = token.Value(inventory)

	rows, err := r.db.Query(ctx,
		`SELECT lat_index, lng_index, kind, value
		 FROM cell_modifications
		 ORDER BY lat_index, lng_index`)
	if err != nil {
		return game.Snapshot{}, false, fmt.Errorf("querying modifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row ModificationRow
		if err := rows.Scan(&row.LatIndex, &row.LngIndex, &row.Kind, &row.Value); err != nil {
			return game.Snapshot{}, false, fmt.Errorf("scanning modification row: %w", err)
		}
		if row.Value < 0 || row.Value > int64(^uint32(0)) || row.Kind < 0 || row.Kind > 255 {
			return game.Snapshot{}, false, fmt.Errorf("%w: modification row %+v out of range", game.ErrCorruptSnapshot, row)
		}
		snap.Modifications = append(snap.Modifications, row.entry())
	}

	if err := rows.Err(); err != nil {
		return game.Snapshot{}, false, fmt.Errorf("iterating modification rows: %w", err)
	}

	return snap, true, nil
}

// Clear deletes the stored snapshot.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE cell_modifications, game_state`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// Channel adapts the repository to the game's synchronous persistence
// channel, bounding every call with timeout.
type Channel struct {
	repo    *SnapshotRepository
	timeout time.Duration
}

// NewChannel creates a persistence channel over repo.
func NewChannel(repo *SnapshotRepository, timeout time.Duration) *Channel {
	return &Channel{repo: repo, timeout: timeout}
}

// SaveSnapshot implements game.SnapshotSink.
func (c *Channel) SaveSnapshot(snap game.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.repo.Save(ctx, snap)
}

// LoadSnapshot implements game.SnapshotSource.
func (c *Channel) LoadSnapshot() (game.Snapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.repo.Load(ctx)
}
