package store

// Schema contains the SQL definitions for all layer tables. The analytical
// store is a single SQLite database holding the staging, structured, and
// modeled layers; the raw layer lives on disk as JSON files.

// CreateRawEventsTableSQL creates the staging table the raw store writes each
// batch into. The structuring scripts consume rows by batch_id, so a retried
// batch (new batch_id, new capture_ids) never collides with a previous run.
const CreateRawEventsTableSQL = `
CREATE TABLE IF NOT EXISTS raw_events (
    capture_id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    source_message_id TEXT NOT NULL,
    received_at TEXT NOT NULL,
    body_hash TEXT NOT NULL,
    raw_path TEXT NOT NULL,
    payload TEXT NOT NULL
)`

// CreateStructuredEventsTableSQL creates the structured event table:
// one row per raw record.
const CreateStructuredEventsTableSQL = `
CREATE TABLE IF NOT EXISTS structured_events (
    event_id TEXT PRIMARY KEY,
    message_id TEXT NOT NULL,
    event_timestamp TEXT NOT NULL,
    event_timestamp_micros INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    event_name TEXT NOT NULL,
    platform TEXT NOT NULL,
    parse_failed INTEGER NOT NULL DEFAULT 0,
    raw_path TEXT,
    received_at TEXT DEFAULT CURRENT_TIMESTAMP
)`

// CreateStructuredItemsTableSQL creates the structured item table:
// one row per item per event, foreign-keyed to the event.
const CreateStructuredItemsTableSQL = `
CREATE TABLE IF NOT EXISTS structured_items (
    item_record_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    item_id TEXT,
    item_name TEXT,
    item_brand TEXT,
    item_variant TEXT,
    item_category TEXT,
    item_category2 TEXT,
    item_category3 TEXT,
    item_category4 TEXT,
    item_category5 TEXT,
    price_in_usd REAL,
    price REAL,
    quantity INTEGER DEFAULT 1,
    item_revenue_in_usd REAL,
    item_revenue REAL,
    item_refund_in_usd REAL,
    item_refund REAL,
    coupon TEXT,
    affiliation TEXT,
    location_id TEXT,
    item_list_id TEXT,
    item_list_name TEXT,
    item_list_index INTEGER,
    promotion_id TEXT,
    promotion_name TEXT,
    creative_name TEXT,
    creative_slot TEXT
)`

// CreateFactEventsTableSQL creates the event fact table.
const CreateFactEventsTableSQL = `
CREATE TABLE IF NOT EXISTS fact_events (
    event_id TEXT PRIMARY KEY,
    event_timestamp TEXT NOT NULL,
    user_id TEXT NOT NULL,
    event_name TEXT NOT NULL,
    platform TEXT NOT NULL,
    event_date TEXT NOT NULL,
    event_hour INTEGER NOT NULL,
    raw_message_id TEXT,
    processed_at TEXT DEFAULT CURRENT_TIMESTAMP
)`

// CreateFactEventItemsTableSQL creates the item fact table, foreign-keyed to
// the event fact.
const CreateFactEventItemsTableSQL = `
CREATE TABLE IF NOT EXISTS fact_event_items (
    event_item_id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    item_id TEXT,
    item_name TEXT,
    item_list_name TEXT,
    item_list_id TEXT,
    item_category TEXT,
    item_brand TEXT,
    price REAL,
    total_price REAL,
    quantity INTEGER DEFAULT 1,
    position_in_list INTEGER,
    has_discount INTEGER DEFAULT 0,
    in_stock INTEGER,
    FOREIGN KEY (event_id) REFERENCES fact_events(event_id)
)`

// CreateDimItemsTableSQL creates the item dimension. first/last_seen_at and
// is_current imply slowly-changing-dimension semantics; the pipeline only
// ever inserts and never updates rows in place.
const CreateDimItemsTableSQL = `
CREATE TABLE IF NOT EXISTS dim_items (
    item_sk TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    item_name TEXT,
    item_brand TEXT,
    item_category TEXT,
    item_category2 TEXT,
    item_category3 TEXT,
    item_category4 TEXT,
    item_category5 TEXT,
    first_seen_at TEXT DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TEXT DEFAULT CURRENT_TIMESTAMP,
    is_current INTEGER DEFAULT 1
)`

// CreateDimUsersTableSQL creates the user dimension.
const CreateDimUsersTableSQL = `
CREATE TABLE IF NOT EXISTS dim_users (
    user_sk TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    first_platform TEXT,
    last_platform TEXT,
    first_seen_at TEXT DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TEXT DEFAULT CURRENT_TIMESTAMP,
    total_sessions INTEGER DEFAULT 0,
    is_current INTEGER DEFAULT 1
)`

// CreateIndexesSQL creates the indexes for all layer tables.
var CreateIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_raw_events_batch ON raw_events(batch_id)`,

	`CREATE INDEX IF NOT EXISTS idx_structured_events_timestamp ON structured_events(event_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_events_user ON structured_events(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_events_name ON structured_events(event_name)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_events_message ON structured_events(message_id)`,

	`CREATE INDEX IF NOT EXISTS idx_structured_items_event ON structured_items(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_items_item ON structured_items(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_structured_items_list ON structured_items(item_list_name)`,

	`CREATE INDEX IF NOT EXISTS idx_fact_events_timestamp ON fact_events(event_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_events_user ON fact_events(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_events_name ON fact_events(event_name)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_events_date ON fact_events(event_date)`,

	`CREATE INDEX IF NOT EXISTS idx_fact_items_event ON fact_event_items(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_items_item ON fact_event_items(item_id)`,

	`CREATE INDEX IF NOT EXISTS idx_dim_items_id ON dim_items(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dim_items_current ON dim_items(is_current)`,

	`CREATE INDEX IF NOT EXISTS idx_dim_users_id ON dim_users(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dim_users_current ON dim_users(is_current)`,
}

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateRawEventsTableSQL,
		CreateStructuredEventsTableSQL,
		CreateStructuredItemsTableSQL,
		CreateFactEventsTableSQL,
		CreateFactEventItemsTableSQL,
		CreateDimItemsTableSQL,
		CreateDimUsersTableSQL,
	}
	return append(stmts, CreateIndexesSQL...)
}

// LayerTables maps each transform layer to the tables it writes, in the
// order deltas are reported.
var LayerTables = map[string][]string{
	"structured": {"structured_events", "structured_items"},
	"modeled":    {"fact_events", "fact_event_items", "dim_items", "dim_users"},
}
