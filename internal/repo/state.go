package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/crucial707/hci-undo/internal/docstore"
	"github.com/lib/pq"
)

// ==========================
// StateRepo
// ==========================

// StateRepo persists the document store in Postgres, one row per collection
// holding the items as JSONB.
type StateRepo struct {
	db *sql.DB
}

// NewStateRepo returns a new StateRepo.
func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

// ==========================
// Load
// ==========================

// Load reads every collection.
func (r *StateRepo) Load(ctx context.Context) (docstore.State, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, items FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := docstore.State{}
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		items := []docstore.Item{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("decode collection %q: %w", name, err)
			}
		}
		state[name] = items
	}
	return state, rows.Err()
}

// ==========================
// Save
// ==========================

// Save writes every collection of state in one transaction and drops the
// collections state no longer has.
func (r *StateRepo) Save(ctx context.Context, state docstore.State) error {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range names {
		items := state[name]
		if items == nil {
			items = []docstore.Item{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode collection %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections (name, items, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (name) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`,
			name, raw,
		); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collections WHERE NOT (name = ANY($1))`,
		pq.Array(names),
	); err != nil {
		return err
	}

	return tx.Commit()
}
