package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
)

// ImportRepository persists the per-feed raw rows and the normalized ledger.
// Raw replacement and ledger rebuild are each one transaction: a feed is
// either fully replaced or untouched.
type ImportRepository interface {
	ReplaceRaw(ctx context.Context, batch entity.ImportBatch, rows []entity.RawRow) error
	ReplaceLedger(ctx context.Context, feed constants.Feed, records []entity.NormalizedRecord) error
	ListLedger(ctx context.Context, feed constants.Feed) ([]entity.NormalizedRecord, error)
	ListBatches(ctx context.Context, feed constants.Feed, limit int) ([]entity.ImportBatch, error)
}

type importRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewImportRepository(db *DB, logger *slog.Logger) ImportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &importRepository{db: db, logger: logger}
}

func (r *importRepository) ReplaceRaw(ctx context.Context, batch entity.ImportBatch, rows []entity.RawRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("IMPORT_RAW", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM raw_rows WHERE feed = ?`), string(batch.Feed)); err != nil {
		return common.NewAppError("IMPORT_RAW", "truncate raw rows", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO raw_rows (feed, batch_id, line, payload) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("IMPORT_RAW", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return common.NewAppError("IMPORT_RAW", "encode row", err)
		}
		if _, err := ins.ExecContext(ctx, string(row.Feed), row.BatchID.String(), row.Line, string(payload)); err != nil {
			return common.NewAppError("IMPORT_RAW", "insert row", err)
		}
	}

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO import_batches (id, feed, filename, row_count, imported_by, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		batch.ID.String(), string(batch.Feed), batch.Filename, batch.RowCount, batch.ImportedBy, batch.ImportedAt,
	); err != nil {
		return common.NewAppError("IMPORT_RAW", "insert batch", err)
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("IMPORT_RAW", "commit", err)
	}
	r.logger.Info("import.raw.ok", "feed", batch.Feed, "batch_id", batch.ID, "rows", len(rows))
	return nil
}

func (r *importRepository) ReplaceLedger(ctx context.Context, feed constants.Feed, records []entity.NormalizedRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("IMPORT_NORM", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM records WHERE feed = ?`), string(feed)); err != nil {
		return common.NewAppError("IMPORT_NORM", "truncate ledger", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO records (
			feed, key, batch_id, position, ot_key, nd,
			activite_code, produit_code, code_cloture, statut,
			date_planifiee, date_cloture, technicien,
			numero_flux, code_cible, numero_att, agence, date_creation,
			ht, liste_articles, commentaire, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("IMPORT_NORM", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, rec := range records {
		articles, err := json.Marshal(rec.ListeArticles)
		if err != nil {
			return common.NewAppError("IMPORT_NORM", "encode articles", err)
		}
		var ht *string
		if rec.HT != nil {
			s := rec.HT.String()
			ht = &s
		}
		if _, err := ins.ExecContext(ctx,
			string(rec.Feed), rec.Key, rec.BatchID.String(), rec.Position, rec.OTKey, rec.ND,
			rec.ActiviteCode, rec.ProduitCode, rec.CodeCloture, rec.Statut,
			rec.DatePlanifiee, rec.DateCloture, rec.Technicien,
			rec.NumeroFlux, rec.CodeCible, rec.NumeroATT, rec.Agence, rec.DateCreation,
			ht, string(articles), rec.Commentaire, rec.ImportedAt,
		); err != nil {
			return common.NewAppError("IMPORT_NORM", "insert record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("IMPORT_NORM", "commit", err)
	}
	r.logger.Info("import.norm.ok", "feed", feed, "records", len(records))
	return nil
}

func (r *importRepository) ListLedger(ctx context.Context, feed constants.Feed) ([]entity.NormalizedRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT feed, key, batch_id, position, ot_key, nd,
			activite_code, produit_code, code_cloture, statut,
			date_planifiee, date_cloture, technicien,
			numero_flux, code_cible, numero_att, agence, date_creation,
			ht, liste_articles, commentaire, imported_at
		 FROM records WHERE feed = ? ORDER BY position`), string(feed))
	if err != nil {
		return nil, common.NewAppError("LEDGER_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.NormalizedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *importRepository) ListBatches(ctx context.Context, feed constants.Feed, limit int) ([]entity.ImportBatch, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT id, feed, filename, row_count, imported_by, imported_at
		 FROM import_batches WHERE feed = ? ORDER BY imported_at DESC LIMIT ?`), string(feed), limit)
	if err != nil {
		return nil, common.NewAppError("BATCH_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ImportBatch
	for rows.Next() {
		var (
			b          entity.ImportBatch
			id, feedS  string
			importedBy sql.NullString
		)
		if err := rows.Scan(&id, &feedS, &b.Filename, &b.RowCount, &importedBy, &b.ImportedAt); err != nil {
			return nil, common.NewAppError("BATCH_LIST", "scan", err)
		}
		b.ID, _ = uuid.Parse(id)
		b.Feed = constants.Feed(feedS)
		b.ImportedBy = importedBy.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// scanRecord rebuilds a NormalizedRecord from a records row.
func scanRecord(rows *sql.Rows) (entity.NormalizedRecord, error) {
	var (
		rec           entity.NormalizedRecord
		feedS, batch  string
		planif, clot  sql.NullTime
		creation      sql.NullTime
		ht            sql.NullString
		articlesJSON  sql.NullString
		otKey, nd     sql.NullString
		act, prod     sql.NullString
		cloture, stat sql.NullString
		tech, flux    sql.NullString
		cible, att    sql.NullString
		agence, comm  sql.NullString
	)
	if err := rows.Scan(
		&feedS, &rec.Key, &batch, &rec.Position, &otKey, &nd,
		&act, &prod, &cloture, &stat,
		&planif, &clot, &tech,
		&flux, &cible, &att, &agence, &creation,
		&ht, &articlesJSON, &comm, &rec.ImportedAt,
	); err != nil {
		return rec, common.NewAppError("LEDGER_LIST", "scan", err)
	}

	rec.Feed = constants.Feed(feedS)
	rec.BatchID, _ = uuid.Parse(batch)
	rec.OTKey, rec.ND = otKey.String, nd.String
	rec.ActiviteCode, rec.ProduitCode = act.String, prod.String
	rec.CodeCloture, rec.Statut = cloture.String, stat.String
	rec.Technicien, rec.NumeroFlux = tech.String, flux.String
	rec.CodeCible, rec.NumeroATT = cible.String, att.String
	rec.Agence, rec.Commentaire = agence.String, comm.String
	if planif.Valid {
		t := planif.Time
		rec.DatePlanifiee = &t
	}
	if clot.Valid {
		t := clot.Time
		rec.DateCloture = &t
	}
	if creation.Valid {
		t := creation.Time
		rec.DateCreation = &t
	}
	if ht.Valid && ht.String != "" {
		if d, err := decimal.NewFromString(ht.String); err == nil {
			rec.HT = &d
		}
	}
	if articlesJSON.Valid && articlesJSON.String != "" {
		_ = json.Unmarshal([]byte(articlesJSON.String), &rec.ListeArticles)
	}
	return rec, nil
}
