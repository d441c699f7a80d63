package ledger

// migration holds a single schema migration with its target version. Each
// statement is executed separately since the MySQL driver rejects multi
// statement strings unless explicitly enabled.
type migration struct {
	version int
	stmts   []string
}

var sqliteMigrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS processed_messages (
				provider     TEXT NOT NULL,
				message_id   TEXT NOT NULL,
				subject      TEXT NOT NULL DEFAULT '',
				sender       TEXT NOT NULL DEFAULT '',
				processed_at TEXT NOT NULL,
				PRIMARY KEY (provider, message_id)
			)`,
			`CREATE TABLE IF NOT EXISTS monitoring_state (
				state_key   TEXT PRIMARY KEY,
				state_value TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_processed_messages_processed_at
				ON processed_messages(processed_at)`,
			`INSERT INTO schema_version (version) VALUES (1)`,
		},
	},
}

var mysqlMigrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_version (
				version INT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS processed_messages (
				provider     VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
				message_id   VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
				subject      TEXT NOT NULL,
				sender       VARCHAR(512) NOT NULL DEFAULT '',
				processed_at VARCHAR(40) NOT NULL,
				PRIMARY KEY (provider, message_id),
				INDEX idx_processed_messages_processed_at (processed_at)
			) CHARACTER SET utf8mb4`,
			`CREATE TABLE IF NOT EXISTS monitoring_state (
				state_key   VARCHAR(64) COLLATE utf8mb4_bin PRIMARY KEY,
				state_value VARCHAR(64) NOT NULL,
				updated_at  VARCHAR(40) NOT NULL
			) CHARACTER SET utf8mb4`,
			`INSERT INTO schema_version (version) VALUES (1)`,
		},
	},
}
