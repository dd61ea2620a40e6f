package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/entity"
)

func prax(key, ot, nd string, pos int) entity.NormalizedRecord {
	return entity.NormalizedRecord{Key: key, Feed: constants.FeedPraxedo, OTKey: ot, ND: nd, Position: pos}
}

func pidi(key, ot, nd string, pos int) entity.NormalizedRecord {
	return entity.NormalizedRecord{Key: key, Feed: constants.FeedPIDI, OTKey: ot, ND: nd, Position: pos}
}

func statusCounts(dossiers []entity.Dossier) map[constants.MatchStatus]int {
	counts := make(map[constants.MatchStatus]int)
	for _, d := range dossiers {
		counts[d.Statut]++
	}
	return counts
}

func TestReconcileMatchOnOT(t *testing.T) {
	ds := Reconcile(
		[]entity.NormalizedRecord{prax("OT100", "OT100", "", 1)},
		[]entity.NormalizedRecord{pidi("FLUX1", "OT100", "", 1)},
		Options{},
	)
	require.Len(t, ds, 1)
	assert.Equal(t, constants.MatchOK, ds[0].Statut)
	assert.Equal(t, "OT100", ds[0].KeyMatch)
	require.NotNil(t, ds[0].PIDI)
	assert.Equal(t, "FLUX1", ds[0].PIDI.Key)
}

func TestReconcileMatchOnNDOnly(t *testing.T) {
	// work-order ids differ but the global identifier pairs them (OR-join)
	ds := Reconcile(
		[]entity.NormalizedRecord{prax("OT100", "OT100", "0612345678", 1)},
		[]entity.NormalizedRecord{pidi("FLUX1", "OT999", "0612345678", 1)},
		Options{},
	)
	require.Len(t, ds, 1)
	assert.Equal(t, constants.MatchOK, ds[0].Statut)
}

func TestReconcileAbsentSides(t *testing.T) {
	ds := Reconcile(
		[]entity.NormalizedRecord{prax("OT1", "OT1", "", 1)},
		[]entity.NormalizedRecord{pidi("FLUX9", "OT2", "", 1)},
		Options{},
	)
	require.Len(t, ds, 2)
	counts := statusCounts(ds)
	assert.Equal(t, 1, counts[constants.MatchAbsentPIDI])
	assert.Equal(t, 1, counts[constants.MatchAbsentPraxedo])
}

func TestReconcileUnknownWhenNoIdentifiers(t *testing.T) {
	ds := Reconcile(
		[]entity.NormalizedRecord{prax("row:batch:1", "", "", 1)},
		nil,
		Options{},
	)
	require.Len(t, ds, 1)
	assert.Equal(t, constants.MatchUnknown, ds[0].Statut)
	assert.Equal(t, "row:batch:1", ds[0].KeyMatch)
}

func TestReconcileStatusTotals(t *testing.T) {
	praxedo := []entity.NormalizedRecord{
		prax("OT1", "OT1", "", 1),
		prax("OT2", "OT2", "", 2),
		prax("row:b:3", "", "", 3),
	}
	pidiLedger := []entity.NormalizedRecord{
		pidi("FLUX1", "OT1", "", 1),
		pidi("FLUX2", "OT9", "", 2),
	}
	ds := Reconcile(praxedo, pidiLedger, Options{})

	counts := statusCounts(ds)
	total := counts[constants.MatchOK] + counts[constants.MatchAbsentPIDI] +
		counts[constants.MatchAbsentPraxedo] + counts[constants.MatchUnknown]
	// one dossier per distinct key; matched pairs unify into one
	assert.Equal(t, len(ds), total)
	assert.Equal(t, 4, len(ds))
	assert.Equal(t, 1, counts[constants.MatchOK])
	assert.Equal(t, 1, counts[constants.MatchAbsentPIDI])
	assert.Equal(t, 1, counts[constants.MatchAbsentPraxedo])
	assert.Equal(t, 1, counts[constants.MatchUnknown])
}

func TestReconcileTieBreak(t *testing.T) {
	praxedo := []entity.NormalizedRecord{prax("OT1", "OT1", "", 1)}
	candidates := []entity.NormalizedRecord{
		pidi("FLUX-A", "OT1", "", 5),
		pidi("FLUX-B", "OT1", "", 2),
	}

	first := Reconcile(praxedo, candidates, Options{TieBreak: TieBreakFirstImported})
	require.NotNil(t, first[0].PIDI)
	assert.Equal(t, "FLUX-B", first[0].PIDI.Key)
	assert.Equal(t, 2, first[0].Candidates)

	last := Reconcile(praxedo, candidates, Options{TieBreak: TieBreakLastImported})
	require.NotNil(t, last[0].PIDI)
	assert.Equal(t, "FLUX-A", last[0].PIDI.Key)
}

func TestReconcilePIDIConsumedOnce(t *testing.T) {
	praxedo := []entity.NormalizedRecord{
		prax("OT1", "OT1", "", 1),
		prax("OT1B", "OT1", "", 2), // same OT seen twice on the Praxedo side
	}
	candidates := []entity.NormalizedRecord{pidi("FLUX1", "OT1", "", 1)}

	ds := Reconcile(praxedo, candidates, Options{})
	require.Len(t, ds, 2)
	counts := statusCounts(ds)
	assert.Equal(t, 1, counts[constants.MatchOK])
	assert.Equal(t, 1, counts[constants.MatchAbsentPIDI])
}

func TestReconcilePLPFlag(t *testing.T) {
	p := pidi("FLUX1", "OT1", "", 1)
	p.CodeCible = "plp-souterrain"
	ds := Reconcile([]entity.NormalizedRecord{prax("OT1", "OT1", "", 1)}, []entity.NormalizedRecord{p}, Options{})
	require.Len(t, ds, 1)
	assert.True(t, ds[0].PLP)
}

func TestReconcileKeyMatchUniqueOnCollision(t *testing.T) {
	// The ND-only record consumes the PIDI record and inherits its work-order
	// id as key_match; that same id also keys the second Praxedo dossier.
	// Both dossiers must survive with distinct keys, never a failure.
	ds := Reconcile(
		[]entity.NormalizedRecord{
			prax("N1", "", "N1", 1),
			prax("OT5", "OT5", "", 2),
		},
		[]entity.NormalizedRecord{pidi("OT5", "OT5", "N1", 1)},
		Options{},
	)
	require.Len(t, ds, 2)
	assert.NotEqual(t, ds[0].KeyMatch, ds[1].KeyMatch)

	counts := statusCounts(ds)
	assert.Equal(t, 1, counts[constants.MatchOK])
	assert.Equal(t, 1, counts[constants.MatchAbsentPIDI])

	keys := map[string]struct{}{ds[0].KeyMatch: {}, ds[1].KeyMatch: {}}
	assert.Contains(t, keys, "OT5", "first occurrence keeps the shared identifier")
}

func TestReconcileIsPure(t *testing.T) {
	praxedo := []entity.NormalizedRecord{prax("OT1", "OT1", "ND1", 1)}
	pidiLedger := []entity.NormalizedRecord{pidi("FLUX1", "", "ND1", 1)}

	a := Reconcile(praxedo, pidiLedger, Options{})
	b := Reconcile(praxedo, pidiLedger, Options{})
	require.Len(t, a, 1)
	assert.Equal(t, a[0].Statut, b[0].Statut)
	assert.Equal(t, a[0].KeyMatch, b[0].KeyMatch)
}
