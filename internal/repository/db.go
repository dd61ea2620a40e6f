package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "modernc.org/sqlite"             // pure-Go sqlite driver

	"github.com/kyntus/facturation/internal/common"
)

// DB wraps the sql pool with the driver name, needed to rebind placeholders
// for postgres.
type DB struct {
	*sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the store named by the DSN: postgres:// DSNs go through
// pgx, everything else is treated as a sqlite path (":memory:" included).
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
	}

	logger.Info("connecting to database", "driver", driver)
	pool, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, common.NewAppError("DB_OPEN", "open database", err)
	}
	pool.SetMaxOpenConns(int(cfg.MaxConns))
	pool.SetConnMaxLifetime(cfg.MaxConnLifetime)
	pool.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("DB_PING", "ping database", err)
	}

	db := &DB{DB: pool, driver: driver, logger: logger}
	if err := db.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

// Close closes the database connections gracefully
func (db *DB) Close() {
	db.logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		db.logger.Error("failed to close database", "error", err)
	}
}

// HealthCheck pings the store to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context) error {
	db.logger.Debug("pinging database")
	return db.PingContext(ctx)
}

// rebind rewrites ?-placeholders to $N for postgres. Queries in this package
// are written with ?.
func (db *DB) rebind(query string) string {
	if db.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS import_batches (
		id TEXT PRIMARY KEY,
		feed TEXT NOT NULL,
		filename TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		imported_by TEXT,
		imported_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raw_rows (
		feed TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		line INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (feed, batch_id, line)
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		feed TEXT NOT NULL,
		key TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		ot_key TEXT,
		nd TEXT,
		activite_code TEXT,
		produit_code TEXT,
		code_cloture TEXT,
		statut TEXT,
		date_planifiee TIMESTAMP,
		date_cloture TIMESTAMP,
		technicien TEXT,
		numero_flux TEXT,
		code_cible TEXT,
		numero_att TEXT,
		agence TEXT,
		date_creation TIMESTAMP,
		ht TEXT,
		liste_articles TEXT,
		commentaire TEXT,
		imported_at TIMESTAMP NOT NULL,
		PRIMARY KEY (feed, key)
	)`,
	`CREATE TABLE IF NOT EXISTS dossiers (
		key_match TEXT PRIMARY KEY,
		ot_key TEXT,
		nd_global TEXT,
		statut TEXT NOT NULL,
		candidates INTEGER NOT NULL,
		plp INTEGER NOT NULL,
		praxedo_key TEXT,
		pidi_key TEXT,
		generated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS verdicts (
		key_match TEXT PRIMARY KEY,
		statut TEXT NOT NULL,
		reason TEXT,
		articles TEXT,
		commentaire TEXT,
		generated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS billing_rules (
		id INTEGER PRIMARY KEY,
		categorie TEXT,
		plp TEXT,
		code_activite TEXT NOT NULL,
		code_produit TEXT NOT NULL,
		libelle_activite TEXT,
		libelle_produit TEXT,
		codes_cloture_facturable TEXT,
		branchement_immeuble TEXT,
		branchement_souterrain TEXT,
		branchement_facade_aerien TEXT,
		plp_articles TEXT,
		services TEXT,
		code_ve TEXT,
		article_etude_optionnel TEXT,
		article_autre_optionnel TEXT,
		commentaires TEXT,
		imported_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS closure_remunerations (
		id INTEGER PRIMARY KEY,
		activite TEXT NOT NULL,
		type_cloture TEXT,
		code_cloture TEXT NOT NULL,
		libelle_code_cloture TEXT,
		code_situation TEXT,
		remu_fournisseur TEXT,
		commentaire TEXT,
		imported_at TIMESTAMP NOT NULL
	)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.logger.Error("migration failed", "error", err)
			return common.NewAppError("DB_MIGRATE", "apply schema", err)
		}
	}
	return nil
}
