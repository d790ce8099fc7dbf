package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Quantities and money are stored as
// decimal TEXT, calendar dates as YYYY-MM-DD TEXT.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    farm_id    INTEGER NOT NULL,
    username   TEXT NOT NULL DEFAULT '',
    expires_at INTEGER NOT NULL,
    revoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expiry ON revoked_tokens(expires_at);

CREATE TABLE IF NOT EXISTS farms (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    species    TEXT NOT NULL DEFAULT 'goat' CHECK (species IN ('goat', 'sheep', 'camel')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pens (
    id          INTEGER PRIMARY KEY,
    farm_id     INTEGER NOT NULL REFERENCES farms(id),
    name        TEXT NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived_at DATETIME
);

CREATE TABLE IF NOT EXISTS animals (
    id          INTEGER PRIMARY KEY,
    farm_id     INTEGER NOT NULL REFERENCES farms(id),
    pen_id      INTEGER REFERENCES pens(id),
    tag         TEXT NOT NULL,
    gender      TEXT NOT NULL CHECK (gender IN ('female', 'male')),
    birth_date  TEXT,
    weight      TEXT,
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'sold', 'dead')),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_animals_pen ON animals(pen_id) WHERE archived_at IS NULL;

CREATE TABLE IF NOT EXISTS feed_types (
    id                INTEGER PRIMARY KEY,
    farm_id           INTEGER NOT NULL REFERENCES farms(id),
    name              TEXT NOT NULL,
    local_name        TEXT,
    category          TEXT NOT NULL CHECK (category IN ('roughage', 'grain', 'concentrate', 'supplement', 'mineral', 'other')),
    unit              TEXT NOT NULL DEFAULT 'kg',
    protein_pct       TEXT NOT NULL DEFAULT '0',
    energy_mj         TEXT NOT NULL DEFAULT '0',
    reorder_threshold TEXT NOT NULL DEFAULT '0',
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at        DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_feed_types_name_active
    ON feed_types(farm_id, name) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS stock_lots (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    farm_id          INTEGER NOT NULL REFERENCES farms(id),
    feed_type_id     INTEGER NOT NULL REFERENCES feed_types(id),
    initial_quantity TEXT NOT NULL,
    quantity         TEXT NOT NULL,
    unit_cost        TEXT NOT NULL,
    purchased_on     TEXT NOT NULL,
    expires_on       TEXT,
    supplier         TEXT,
    notes            TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stock_lots_type ON stock_lots(farm_id, feed_type_id);

CREATE TABLE IF NOT EXISTS feed_stock (
    farm_id      INTEGER NOT NULL REFERENCES farms(id),
    feed_type_id INTEGER NOT NULL REFERENCES feed_types(id),
    on_hand      TEXT NOT NULL,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (farm_id, feed_type_id)
);

CREATE TABLE IF NOT EXISTS recipes (
    id         INTEGER PRIMARY KEY,
    farm_id    INTEGER NOT NULL REFERENCES farms(id),
    name       TEXT NOT NULL,
    notes      TEXT,
    usable     INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recipe_items (
    recipe_id    INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
    feed_type_id INTEGER NOT NULL REFERENCES feed_types(id),
    percentage   TEXT NOT NULL,
    position     INTEGER NOT NULL,
    PRIMARY KEY (recipe_id, feed_type_id)
);

CREATE TABLE IF NOT EXISTS schedules (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    farm_id           INTEGER NOT NULL REFERENCES farms(id),
    target_kind       TEXT NOT NULL CHECK (target_kind IN ('pen', 'animal')),
    target_id         INTEGER NOT NULL,
    feed_type_id      INTEGER NOT NULL REFERENCES feed_types(id),
    quantity_per_head TEXT NOT NULL,
    meals_per_day     INTEGER NOT NULL CHECK (meals_per_day >= 1),
    start_on          TEXT NOT NULL,
    end_on            TEXT,
    active            INTEGER NOT NULL DEFAULT 1,
    source            TEXT NOT NULL DEFAULT 'manual' CHECK (source IN ('manual', 'generated')),
    notes             TEXT,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_schedules_farm_active ON schedules(farm_id, active);

CREATE TABLE IF NOT EXISTS consumption_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    farm_id     INTEGER NOT NULL REFERENCES farms(id),
    consumed_on TEXT NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (farm_id, consumed_on)
);

CREATE TABLE IF NOT EXISTS consumption_skips (
    farm_id    INTEGER NOT NULL REFERENCES farms(id),
    skipped_on TEXT NOT NULL,
    shortages  INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (farm_id, skipped_on)
);

CREATE TABLE IF NOT EXISTS consumption_lines (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id     INTEGER NOT NULL REFERENCES consumption_entries(id) ON DELETE CASCADE,
    schedule_id  INTEGER NOT NULL,
    feed_type_id INTEGER NOT NULL REFERENCES feed_types(id),
    pen_id       INTEGER REFERENCES pens(id),
    animal_id    INTEGER REFERENCES animals(id),
    head_count   INTEGER NOT NULL,
    quantity     TEXT NOT NULL,
    unit_cost    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS consumption_allocations (
    entry_id     INTEGER NOT NULL REFERENCES consumption_entries(id) ON DELETE CASCADE,
    lot_id       INTEGER NOT NULL REFERENCES stock_lots(id),
    feed_type_id INTEGER NOT NULL REFERENCES feed_types(id),
    quantity     TEXT NOT NULL,
    PRIMARY KEY (entry_id, lot_id)
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
