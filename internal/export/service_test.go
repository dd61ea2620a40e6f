package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/repository"
)

func TestExportReportXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: ":memory:", MaxConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	now := time.Now().UTC()
	ht := decimal.RequireFromString("1234.5")
	imports := repository.NewImportRepository(db, nil)
	require.NoError(t, imports.ReplaceLedger(ctx, constants.FeedPraxedo, []entity.NormalizedRecord{
		{Key: "OT100", Feed: constants.FeedPraxedo, OTKey: "OT100", ActiviteCode: "X1", ProduitCode: "P1",
			CodeCloture: "DMS", Technicien: "Dupont", ImportedAt: now},
	}))
	require.NoError(t, imports.ReplaceLedger(ctx, constants.FeedPIDI, []entity.NormalizedRecord{
		{Key: "OT100", Feed: constants.FeedPIDI, OTKey: "OT100", Agence: "IDF",
			ListeArticles: []string{"LSIM1", "SRV2"}, HT: &ht, ImportedAt: now},
	}))

	dossiers := repository.NewDossierRepository(db, nil)
	require.NoError(t, dossiers.ReplaceDossiers(ctx, []entity.Dossier{
		{
			KeyMatch: "OT100", OTKey: "OT100", Statut: constants.MatchOK,
			Praxedo:     &entity.NormalizedRecord{Key: "OT100", Feed: constants.FeedPraxedo},
			PIDI:        &entity.NormalizedRecord{Key: "OT100", Feed: constants.FeedPIDI},
			GeneratedAt: now,
		},
		{KeyMatch: "OT200", OTKey: "OT200", Statut: constants.MatchAbsentPIDI, GeneratedAt: now},
	}))
	require.NoError(t, dossiers.ReplaceVerdicts(ctx, []entity.BillingVerdict{
		{KeyMatch: "OT100", Statut: constants.VerdictFacturable, Articles: []string{"LSIM1", "SRV2"}, GeneratedAt: now},
		{KeyMatch: "OT200", Statut: constants.VerdictAVerifier, Reason: constants.ReasonNoRule, GeneratedAt: now},
	}))

	svc := NewService(dossiers, common.ExportConfig{MaxRows: 100}, nil)
	raw, err := svc.ExportReportXLSX(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows("Facturation")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header + two dossiers")

	assert.Equal(t, "Key match", rows[0][0])
	assert.Equal(t, "OT100", rows[1][0])
	assert.Equal(t, "OK", rows[1][3])
	assert.Equal(t, "FACTURABLE", rows[1][4])
	assert.Equal(t, "LSIM1 | SRV2", rows[1][6], "expected articles display")
	assert.Equal(t, "LSIM1 | SRV2", rows[1][7], "posed articles rejoined from the PIDI ledger")

	assert.Equal(t, "OT200", rows[2][0])
	assert.Equal(t, "A_VERIFIER", rows[2][4])
	assert.Equal(t, "NO_MATCHING_RULE", rows[2][5])
}

func TestExportCapsRows(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: ":memory:", MaxConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	now := time.Now().UTC()
	dossiers := repository.NewDossierRepository(db, nil)
	require.NoError(t, dossiers.ReplaceDossiers(ctx, []entity.Dossier{
		{KeyMatch: "OT1", Statut: constants.MatchAbsentPIDI, GeneratedAt: now},
		{KeyMatch: "OT2", Statut: constants.MatchAbsentPIDI, GeneratedAt: now},
		{KeyMatch: "OT3", Statut: constants.MatchAbsentPIDI, GeneratedAt: now},
	}))

	svc := NewService(dossiers, common.ExportConfig{MaxRows: 2}, nil)
	raw, err := svc.ExportReportXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows("Facturation")
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header + capped rows")
}
