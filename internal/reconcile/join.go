package reconcile

import (
	"strings"

	"github.com/kyntus/facturation/internal/entity"
)

// TieBreak selects the winning candidate when the OR-join is ambiguous.
// Upstream never specified the intended semantics, so the choice is explicit
// configuration rather than incidental iteration order.
type TieBreak int

const (
	// TieBreakFirstImported keeps the candidate earliest in the ledger
	// (lowest contributing row position). Default.
	TieBreakFirstImported TieBreak = iota
	// TieBreakLastImported keeps the candidate latest in the ledger.
	TieBreakLastImported
)

// outcome tags one side's join result explicitly instead of letting map
// iteration pick a winner.
type outcome struct {
	chosen     int   // index into the opposite ledger, -1 when none
	candidates []int // every candidate considered, ledger order
}

// pidiIndex indexes the PIDI ledger by its two identifiers for the OR-join.
type pidiIndex struct {
	records []entity.NormalizedRecord
	byOT    map[string][]int
	byND    map[string][]int
}

func indexPIDI(records []entity.NormalizedRecord) *pidiIndex {
	idx := &pidiIndex{
		records: records,
		byOT:    make(map[string][]int),
		byND:    make(map[string][]int),
	}
	for i, r := range records {
		if ot := normKey(r.OTKey); ot != "" {
			idx.byOT[ot] = append(idx.byOT[ot], i)
		}
		if nd := normKey(r.ND); nd != "" {
			idx.byND[nd] = append(idx.byND[nd], i)
		}
	}
	return idx
}

// match runs the OR-join for one Praxedo record: any PIDI record sharing the
// global identifier OR the work-order identifier is a candidate. Already
// consumed candidates are skipped so a PIDI record pairs at most once.
func (idx *pidiIndex) match(rec entity.NormalizedRecord, consumed []bool, tb TieBreak) outcome {
	seen := make(map[int]struct{})
	var candidates []int
	add := func(indices []int) {
		for _, i := range indices {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			candidates = append(candidates, i)
		}
	}
	add(idx.byND[normKey(rec.ND)])
	add(idx.byOT[normKey(rec.OTKey)])

	chosen := -1
	for _, i := range candidates {
		if consumed[i] {
			continue
		}
		if chosen == -1 {
			chosen = i
			continue
		}
		a, b := idx.records[i], idx.records[chosen]
		switch tb {
		case TieBreakLastImported:
			if a.Position > b.Position {
				chosen = i
			}
		default:
			if a.Position < b.Position {
				chosen = i
			}
		}
	}
	return outcome{chosen: chosen, candidates: candidates}
}

// normKey folds an identifier for comparison; empty means "no identifier".
func normKey(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
