package normalize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/fields"
)

func praxedoResolution() fields.Resolution {
	return fields.Resolve(
		[]string{"N° OT", "ND", "Code activité", "Code produit", "Code clôture", "Statut", "Planifiée", "Technicien", "Commentaire"},
		fields.ByFeed[constants.FeedPraxedo],
		fields.DefaultAliases[constants.FeedPraxedo],
	)
}

func pidiResolution() fields.Resolution {
	return fields.Resolve(
		[]string{"N° de flux PIDI", "N° OT", "Statut", "Liste des articles", "HT"},
		fields.ByFeed[constants.FeedPIDI],
		fields.DefaultAliases[constants.FeedPIDI],
	)
}

func rawRow(feed constants.Feed, batch uuid.UUID, line int, values map[string]string) entity.RawRow {
	return entity.RawRow{Feed: feed, BatchID: batch, Line: line, Values: values}
}

func TestBuildLedgerMergePickFirstNonEmpty(t *testing.T) {
	batch := uuid.New()
	now := time.Now()
	res := praxedoResolution()

	a := rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"N° OT": "OT100", "Statut": "", "Technicien": "Durand"})
	b := rawRow(constants.FeedPraxedo, batch, 2, map[string]string{"N° OT": "OT100", "Statut": "CLOTURE", "Technicien": ""})

	forward := BuildLedger([]entity.RawRow{a, b}, constants.FeedPraxedo, res, now)
	backward := BuildLedger([]entity.RawRow{b, a}, constants.FeedPraxedo, res, now)

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, "CLOTURE", forward[0].Statut)
	assert.Equal(t, "Durand", forward[0].Technicien)
	assert.Equal(t, forward[0].Statut, backward[0].Statut)
	assert.Equal(t, forward[0].Technicien, backward[0].Technicien)
}

func TestBuildLedgerFirstNonEmptyNeverOverwritten(t *testing.T) {
	batch := uuid.New()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"N° OT": "OT1", "Technicien": "Martin"}),
		rawRow(constants.FeedPraxedo, batch, 2, map[string]string{"N° OT": "OT1", "Technicien": "Autre"}),
	}
	recs := BuildLedger(rows, constants.FeedPraxedo, res, time.Now())
	require.Len(t, recs, 1)
	assert.Equal(t, "Martin", recs[0].Technicien)
	assert.Equal(t, 1, recs[0].Position)
}

func TestBuildLedgerIdempotent(t *testing.T) {
	batch := uuid.New()
	now := time.Now()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"N° OT": "OT1", "Statut": "OK"}),
		rawRow(constants.FeedPraxedo, batch, 2, map[string]string{"N° OT": "OT2"}),
	}
	first := BuildLedger(rows, constants.FeedPraxedo, res, now)
	second := BuildLedger(rows, constants.FeedPraxedo, res, now)
	assert.Equal(t, first, second)
}

func TestBuildLedgerSyntheticKeys(t *testing.T) {
	batch := uuid.New()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"Statut": "X"}),
		rawRow(constants.FeedPraxedo, batch, 2, map[string]string{"Statut": "Y"}),
	}
	recs := BuildLedger(rows, constants.FeedPraxedo, res, time.Now())
	// keyless rows must never merge into each other
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].Key, recs[1].Key)
}

func TestBuildLedgerSecondaryKeyFallback(t *testing.T) {
	batch := uuid.New()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"ND": "0123456789"}),
	}
	recs := BuildLedger(rows, constants.FeedPraxedo, res, time.Now())
	require.Len(t, recs, 1)
	assert.Equal(t, "0123456789", recs[0].Key)
}

func TestBuildLedgerArticleUnion(t *testing.T) {
	batch := uuid.New()
	res := pidiResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPIDI, batch, 1, map[string]string{"N° OT": "OT1", "Liste des articles": "LSIM1, PBO23"}),
		rawRow(constants.FeedPIDI, batch, 2, map[string]string{"N° OT": "OT1", "Liste des articles": "pbo23; CABLE12 | LSIM1"}),
	}
	recs := BuildLedger(rows, constants.FeedPIDI, res, time.Now())
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"LSIM1", "PBO23", "CABLE12"}, recs[0].ListeArticles)
}

func TestBuildLedgerDegradedValues(t *testing.T) {
	batch := uuid.New()
	res := pidiResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPIDI, batch, 1, map[string]string{
			"N° OT": "OT1",
			"HT":    "not-a-number",
		}),
		rawRow(constants.FeedPIDI, batch, 2, map[string]string{
			"N° OT": "OT2",
			"HT":    "1 234,50 €",
		}),
	}
	recs := BuildLedger(rows, constants.FeedPIDI, res, time.Now())
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].HT, "malformed amount degrades to unset")
	require.NotNil(t, recs[1].HT)
	assert.Equal(t, "1234.5", recs[1].HT.String())
}

func TestBuildLedgerDates(t *testing.T) {
	batch := uuid.New()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"N° OT": "OT1", "Planifiée": "15/03/2025 09:30"}),
		rawRow(constants.FeedPraxedo, batch, 2, map[string]string{"N° OT": "OT2", "Planifiée": "pas une date"}),
	}
	recs := BuildLedger(rows, constants.FeedPraxedo, res, time.Now())
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].DatePlanifiee)
	assert.Equal(t, 2025, recs[0].DatePlanifiee.Year())
	assert.Nil(t, recs[1].DatePlanifiee, "malformed date degrades to unset")
}

func TestBuildLedgerRepairsDoubleEncoding(t *testing.T) {
	batch := uuid.New()
	res := praxedoResolution()
	rows := []entity.RawRow{
		rawRow(constants.FeedPraxedo, batch, 1, map[string]string{"N° OT": "OT1", "Commentaire": "ClÃ´turÃ© ce jour"}),
	}
	recs := BuildLedger(rows, constants.FeedPraxedo, res, time.Now())
	require.Len(t, recs, 1)
	assert.Equal(t, "Clôturé ce jour", recs[0].Commentaire)
}
