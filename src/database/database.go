package database

import (
	"database/sql"
	"fmt"

	"github.com/username/finboard/backend/src/logger"
	_ "modernc.org/sqlite"
)

// Init opens the warehouse database and ensures tables and views exist.
// The returned handle is owned by the caller: open once at startup, pass
// it to whatever needs it, close it on shutdown.
func Init(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	logger.L.Info("Checking database schema", "databasePath", databasePath)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	migrateWarehouse(db)
	if err := createViews(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.L.Info("Database tables and views ensured/created.")
	return db, nil
}

func createTables(db *sql.DB) error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS scoped_blobs (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cashflow_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		inflow REAL NOT NULL DEFAULT 0,
		outflow REAL NOT NULL DEFAULT 0,
		category TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cashflow_house_date ON cashflow_entries(house_id, entry_date);

	CREATE TABLE IF NOT EXISTS budget_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id TEXT NOT NULL,
		period TEXT NOT NULL,
		category TEXT NOT NULL,
		budgeted REAL NOT NULL DEFAULT 0,
		actual REAL NOT NULL DEFAULT 0,
		UNIQUE(house_id, period, category)
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id TEXT NOT NULL,
		name TEXT NOT NULL,
		balance REAL NOT NULL DEFAULT 0,
		available REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS exposures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		category TEXT,
		amount REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS revenue_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		house_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0
	);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		logger.L.Error("failed to create tables", "error", err)
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// createViews installs the precomputed KPI views. Views are dropped and
// recreated so definition changes take effect on restart; all the
// statistics (rolling means, z-scores, variance %, runway) live here,
// application code only reads them.
func createViews(db *sql.DB) error {
	createViewStatement := `
	DROP VIEW IF EXISTS v_daily_cashflow;
	CREATE VIEW v_daily_cashflow AS
	SELECT house_id,
	       entry_date,
	       SUM(inflow) AS inflow,
	       SUM(outflow) AS outflow,
	       SUM(inflow) - SUM(outflow) AS net
	FROM cashflow_entries
	GROUP BY house_id, entry_date;

	DROP VIEW IF EXISTS v_cashflow_30d_totals;
	CREATE VIEW v_cashflow_30d_totals AS
	SELECT house_id,
	       SUM(inflow) AS inflow_30d,
	       SUM(outflow) AS outflow_30d
	FROM cashflow_entries
	WHERE entry_date >= date('now', '-30 days')
	GROUP BY house_id;

	DROP VIEW IF EXISTS v_cashflow_rolling;
	CREATE VIEW v_cashflow_rolling AS
	SELECT house_id,
	       entry_date,
	       AVG(inflow)  OVER w AS avg_inflow_14d,
	       AVG(outflow) OVER w AS avg_outflow_14d,
	       AVG(net)     OVER w AS avg_net_14d
	FROM v_daily_cashflow
	WINDOW w AS (PARTITION BY house_id ORDER BY entry_date
	             ROWS BETWEEN 13 PRECEDING AND CURRENT ROW);

	DROP VIEW IF EXISTS v_cashflow_anomalies;
	CREATE VIEW v_cashflow_anomalies AS
	SELECT house_id, entry_date, net,
	       (net - avg_net) / std_net AS z_score
	FROM (
		SELECT house_id, entry_date, net,
		       AVG(net) OVER w AS avg_net,
		       sqrt(max(AVG(net * net) OVER w - (AVG(net) OVER w) * (AVG(net) OVER w), 0)) AS std_net
		FROM v_daily_cashflow
		WINDOW w AS (PARTITION BY house_id)
	)
	WHERE std_net > 0 AND abs((net - avg_net) / std_net) >= 2.0;

	DROP VIEW IF EXISTS v_budget_variance;
	CREATE VIEW v_budget_variance AS
	SELECT house_id, period, category, budgeted, actual,
	       CASE WHEN budgeted != 0
	            THEN (actual - budgeted) * 100.0 / budgeted
	            ELSE NULL END AS variance_pct
	FROM budget_lines;

	DROP VIEW IF EXISTS v_liquidity_runway;
	CREATE VIEW v_liquidity_runway AS
	SELECT a.house_id,
	       SUM(a.balance) AS cash_balance,
	       SUM(a.available) AS available_liquidity,
	       COALESCE(b.monthly_burn, 0) AS monthly_burn,
	       CASE WHEN COALESCE(b.monthly_burn, 0) > 0
	            THEN CAST(SUM(a.balance) / (b.monthly_burn / 30.0) AS INTEGER)
	            ELSE NULL END AS runway_days
	FROM accounts a
	LEFT JOIN (
		SELECT house_id, SUM(outflow) - SUM(inflow) AS monthly_burn
		FROM cashflow_entries
		WHERE entry_date >= date('now', '-30 days')
		GROUP BY house_id
	) b ON b.house_id = a.house_id
	GROUP BY a.house_id;

	DROP VIEW IF EXISTS v_exposure_summary;
	CREATE VIEW v_exposure_summary AS
	SELECT house_id, counterparty, category, SUM(amount) AS amount
	FROM exposures
	GROUP BY house_id, counterparty, category;

	DROP VIEW IF EXISTS v_revenue_monthly;
	CREATE VIEW v_revenue_monthly AS
	SELECT house_id,
	       strftime('%Y-%m', entry_date) AS month,
	       SUM(amount) AS revenue
	FROM revenue_entries
	GROUP BY house_id, month;

	DROP VIEW IF EXISTS v_cashflow_forecast;
	CREATE VIEW v_cashflow_forecast AS
	SELECT house_id,
	       MAX(entry_date) AS last_date,
	       AVG(net) AS daily_net
	FROM (
		SELECT house_id, entry_date, net,
		       ROW_NUMBER() OVER (PARTITION BY house_id ORDER BY entry_date DESC) AS rn
		FROM v_daily_cashflow
	)
	WHERE rn <= 14
	GROUP BY house_id;
	`

	if _, err := db.Exec(createViewStatement); err != nil {
		logger.L.Error("failed to create views", "error", err)
		return fmt.Errorf("failed to create views: %w", err)
	}
	return nil
}

// migrateWarehouse adds columns introduced after the first release to
// databases created before them.
func migrateWarehouse(db *sql.DB) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='cashflow_entries'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.L.Info("'cashflow_entries' table does not exist, no migration needed as table will be created.")
			return
		}
		logger.L.Error("Error checking for 'cashflow_entries' table", "error", err)
		return
	}

	columnExists := tableColumns(db, "cashflow_entries")
	if columnExists == nil {
		return
	}

	if _, ok := columnExists["category"]; !ok {
		if _, err := db.Exec("ALTER TABLE cashflow_entries ADD COLUMN category TEXT"); err != nil {
			logger.L.Error("Error adding 'category' column to 'cashflow_entries' table", "error", err)
		} else {
			logger.L.Info("Added 'category' column to 'cashflow_entries' table")
		}
	}

	accountCols := tableColumns(db, "accounts")
	if accountCols == nil {
		return
	}
	if _, ok := accountCols["available"]; !ok {
		if _, err := db.Exec("ALTER TABLE accounts ADD COLUMN available REAL NOT NULL DEFAULT 0"); err != nil {
			logger.L.Error("Error adding 'available' column to 'accounts' table", "error", err)
		} else {
			logger.L.Info("Added 'available' column to 'accounts' table")
			if _, err := db.Exec("UPDATE accounts SET available = balance WHERE available = 0"); err != nil {
				logger.L.Error("Error backfilling 'available' values for existing accounts", "error", err)
			}
		}
	}
}

func tableColumns(db *sql.DB, table string) map[string]bool {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		logger.L.Error("Error querying table schema", "table", table, "error", err)
		return nil
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			logger.L.Error("Error scanning column info", "table", table, "error", err)
			return nil
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		logger.L.Error("Error iterating over column info", "table", table, "error", err)
		return nil
	}
	return columnExists
}
