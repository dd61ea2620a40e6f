package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
)

// DossierRepository persists the reconciliation output: the dossier set and
// the verdicts derived from it. Both are derived data and always replaced
// wholesale.
type DossierRepository interface {
	ReplaceDossiers(ctx context.Context, dossiers []entity.Dossier) error
	ListDossiers(ctx context.Context) ([]entity.Dossier, error)
	ReplaceVerdicts(ctx context.Context, verdicts []entity.BillingVerdict) error
	ListVerdicts(ctx context.Context) (map[string]entity.BillingVerdict, error)
}

type dossierRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewDossierRepository(db *DB, logger *slog.Logger) DossierRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &dossierRepository{db: db, logger: logger}
}

func (r *dossierRepository) ReplaceDossiers(ctx context.Context, dossiers []entity.Dossier) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("DOSSIER_SAVE", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dossiers`); err != nil {
		return common.NewAppError("DOSSIER_SAVE", "truncate", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO dossiers (key_match, ot_key, nd_global, statut, candidates, plp, praxedo_key, pidi_key, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("DOSSIER_SAVE", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, d := range dossiers {
		var praxedoKey, pidiKey *string
		if d.Praxedo != nil {
			praxedoKey = &d.Praxedo.Key
		}
		if d.PIDI != nil {
			pidiKey = &d.PIDI.Key
		}
		if _, err := ins.ExecContext(ctx,
			d.KeyMatch, d.OTKey, d.NDGlobal, string(d.Statut), d.Candidates, boolToInt(d.PLP),
			praxedoKey, pidiKey, d.GeneratedAt,
		); err != nil {
			return common.NewAppError("DOSSIER_SAVE", "insert dossier", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("DOSSIER_SAVE", "commit", err)
	}
	r.logger.Info("dossier.save.ok", "count", len(dossiers))
	return nil
}

// ListDossiers reloads the dossier set, rejoining each side's full record
// from the ledger tables.
func (r *dossierRepository) ListDossiers(ctx context.Context) ([]entity.Dossier, error) {
	praxedo, err := r.recordsByKey(ctx, constants.FeedPraxedo)
	if err != nil {
		return nil, err
	}
	pidi, err := r.recordsByKey(ctx, constants.FeedPIDI)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT key_match, ot_key, nd_global, statut, candidates, plp, praxedo_key, pidi_key, generated_at
		 FROM dossiers ORDER BY key_match`)
	if err != nil {
		return nil, common.NewAppError("DOSSIER_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.Dossier
	for rows.Next() {
		var (
			d                   entity.Dossier
			statut              string
			plp                 int
			praxedoKey, pidiKey sql.NullString
		)
		if err := rows.Scan(&d.KeyMatch, &d.OTKey, &d.NDGlobal, &statut, &d.Candidates, &plp,
			&praxedoKey, &pidiKey, &d.GeneratedAt); err != nil {
			return nil, common.NewAppError("DOSSIER_LIST", "scan", err)
		}
		d.Statut = constants.MatchStatus(statut)
		d.PLP = plp != 0
		if praxedoKey.Valid {
			if rec, ok := praxedo[praxedoKey.String]; ok {
				d.Praxedo = rec
			}
		}
		if pidiKey.Valid {
			if rec, ok := pidi[pidiKey.String]; ok {
				d.PIDI = rec
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *dossierRepository) ReplaceVerdicts(ctx context.Context, verdicts []entity.BillingVerdict) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("VERDICT_SAVE", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM verdicts`); err != nil {
		return common.NewAppError("VERDICT_SAVE", "truncate", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO verdicts (key_match, statut, reason, articles, commentaire, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("VERDICT_SAVE", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, v := range verdicts {
		articles, err := json.Marshal(v.Articles)
		if err != nil {
			return common.NewAppError("VERDICT_SAVE", "encode articles", err)
		}
		if _, err := ins.ExecContext(ctx,
			v.KeyMatch, string(v.Statut), v.Reason, string(articles), v.Commentaire, v.GeneratedAt,
		); err != nil {
			return common.NewAppError("VERDICT_SAVE", "insert verdict", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("VERDICT_SAVE", "commit", err)
	}
	r.logger.Info("verdict.save.ok", "count", len(verdicts))
	return nil
}

func (r *dossierRepository) ListVerdicts(ctx context.Context) (map[string]entity.BillingVerdict, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key_match, statut, reason, articles, commentaire, generated_at FROM verdicts`)
	if err != nil {
		return nil, common.NewAppError("VERDICT_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]entity.BillingVerdict)
	for rows.Next() {
		var (
			v                 entity.BillingVerdict
			statut            string
			reason, comm, art sql.NullString
		)
		if err := rows.Scan(&v.KeyMatch, &statut, &reason, &art, &comm, &v.GeneratedAt); err != nil {
			return nil, common.NewAppError("VERDICT_LIST", "scan", err)
		}
		v.Statut = constants.VerdictStatus(statut)
		v.Reason = reason.String
		v.Commentaire = comm.String
		if art.Valid && art.String != "" {
			_ = json.Unmarshal([]byte(art.String), &v.Articles)
		}
		out[v.KeyMatch] = v
	}
	return out, rows.Err()
}

func (r *dossierRepository) recordsByKey(ctx context.Context, feed constants.Feed) (map[string]*entity.NormalizedRecord, error) {
	imp := &importRepository{db: r.db, logger: r.logger}
	records, err := imp.ListLedger(ctx, feed)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*entity.NormalizedRecord, len(records))
	for i := range records {
		out[records[i].Key] = &records[i]
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
