package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
)

// ReferenceRepository persists the billing reference snapshots: the factregle
// rules and the closure-remuneration table. Each import replaces the whole
// snapshot.
type ReferenceRepository interface {
	ReplaceRules(ctx context.Context, rules []entity.BillingRule) error
	ListRules(ctx context.Context) ([]entity.BillingRule, error)
	ReplaceRemunerations(ctx context.Context, remu []entity.ClosureRemuneration) error
	ListRemunerations(ctx context.Context) ([]entity.ClosureRemuneration, error)
}

type referenceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReferenceRepository(db *DB, logger *slog.Logger) ReferenceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &referenceRepository{db: db, logger: logger}
}

func (r *referenceRepository) ReplaceRules(ctx context.Context, rules []entity.BillingRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("RULE_SAVE", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM billing_rules`); err != nil {
		return common.NewAppError("RULE_SAVE", "truncate", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO billing_rules (
			id, categorie, plp, code_activite, code_produit,
			libelle_activite, libelle_produit, codes_cloture_facturable,
			branchement_immeuble, branchement_souterrain, branchement_facade_aerien,
			plp_articles, services, code_ve,
			article_etude_optionnel, article_autre_optionnel, commentaires, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("RULE_SAVE", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, rule := range rules {
		if _, err := ins.ExecContext(ctx,
			rule.ID, rule.Categorie, rule.PLP, rule.CodeActivite, rule.CodeProduit,
			rule.LibelleActivite, rule.LibelleProduit, rule.CodesClotureFacturable,
			rule.BranchementImmeuble, rule.BranchementSouterrain, rule.BranchementFacadeAerien,
			rule.PLPArticles, rule.Services, rule.CodeVE,
			rule.ArticleEtudeOptionnel, rule.ArticleAutreOptionnel, rule.Commentaires, rule.ImportedAt,
		); err != nil {
			return common.NewAppError("RULE_SAVE", "insert rule", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("RULE_SAVE", "commit", err)
	}
	r.logger.Info("reference.rules.ok", "count", len(rules))
	return nil
}

func (r *referenceRepository) ListRules(ctx context.Context) ([]entity.BillingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, categorie, plp, code_activite, code_produit,
			libelle_activite, libelle_produit, codes_cloture_facturable,
			branchement_immeuble, branchement_souterrain, branchement_facade_aerien,
			plp_articles, services, code_ve,
			article_etude_optionnel, article_autre_optionnel, commentaires, imported_at
		 FROM billing_rules ORDER BY id`)
	if err != nil {
		return nil, common.NewAppError("RULE_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.BillingRule
	for rows.Next() {
		var (
			rule entity.BillingRule
			s    [15]sql.NullString
		)
		if err := rows.Scan(&rule.ID, &s[0], &s[1], &rule.CodeActivite, &rule.CodeProduit,
			&s[2], &s[3], &s[4], &s[5], &s[6], &s[7], &s[8], &s[9], &s[10], &s[11], &s[12], &s[13],
			&rule.ImportedAt); err != nil {
			return nil, common.NewAppError("RULE_LIST", "scan", err)
		}
		rule.Categorie, rule.PLP = s[0].String, s[1].String
		rule.LibelleActivite, rule.LibelleProduit = s[2].String, s[3].String
		rule.CodesClotureFacturable = s[4].String
		rule.BranchementImmeuble, rule.BranchementSouterrain, rule.BranchementFacadeAerien = s[5].String, s[6].String, s[7].String
		rule.PLPArticles, rule.Services, rule.CodeVE = s[8].String, s[9].String, s[10].String
		rule.ArticleEtudeOptionnel, rule.ArticleAutreOptionnel = s[11].String, s[12].String
		rule.Commentaires = s[13].String
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *referenceRepository) ReplaceRemunerations(ctx context.Context, remu []entity.ClosureRemuneration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("REMU_SAVE", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM closure_remunerations`); err != nil {
		return common.NewAppError("REMU_SAVE", "truncate", err)
	}

	ins, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO closure_remunerations (
			id, activite, type_cloture, code_cloture,
			libelle_code_cloture, code_situation, remu_fournisseur, commentaire, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return common.NewAppError("REMU_SAVE", "prepare insert", err)
	}
	defer func() { _ = ins.Close() }()

	for _, row := range remu {
		if _, err := ins.ExecContext(ctx,
			row.ID, row.Activite, row.TypeCloture, row.CodeCloture,
			row.LibelleCodeCloture, row.CodeSituation, row.RemuFournisseur, row.Commentaire, row.ImportedAt,
		); err != nil {
			return common.NewAppError("REMU_SAVE", "insert remuneration", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("REMU_SAVE", "commit", err)
	}
	r.logger.Info("reference.remu.ok", "count", len(remu))
	return nil
}

func (r *referenceRepository) ListRemunerations(ctx context.Context) ([]entity.ClosureRemuneration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, activite, type_cloture, code_cloture,
			libelle_code_cloture, code_situation, remu_fournisseur, commentaire, imported_at
		 FROM closure_remunerations ORDER BY id`)
	if err != nil {
		return nil, common.NewAppError("REMU_LIST", "query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ClosureRemuneration
	for rows.Next() {
		var (
			row                        entity.ClosureRemuneration
			typ, lib, sit, remuV, comm sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.Activite, &typ, &row.CodeCloture,
			&lib, &sit, &remuV, &comm, &row.ImportedAt); err != nil {
			return nil, common.NewAppError("REMU_LIST", "scan", err)
		}
		row.TypeCloture, row.LibelleCodeCloture = typ.String, lib.String
		row.CodeSituation, row.RemuFournisseur, row.Commentaire = sit.String, remuV.String, comm.String
		out = append(out, row)
	}
	return out, rows.Err()
}
