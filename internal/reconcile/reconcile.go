// Package reconcile joins the two source ledgers into canonical dossiers.
// A run is a pure function of the two ledgers' current contents: no history
// is consulted and the dossier set is rebuilt wholesale.
package reconcile

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/entity"
)

// Options tunes a reconciliation run.
type Options struct {
	TieBreak TieBreak
	Now      func() time.Time
	Logger   *slog.Logger
}

// Reconcile produces one dossier for every natural key present in either
// ledger. Matching is OR-based: equal global identifier (ND) or equal
// work-order identifier suffices. Permissive by design; ambiguous pairings
// are resolved by the configured tie-break and surfaced via Candidates.
func Reconcile(praxedo, pidi []entity.NormalizedRecord, opts Options) []entity.Dossier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now()

	idx := indexPIDI(pidi)
	consumed := make([]bool, len(pidi))
	dossiers := make([]entity.Dossier, 0, len(praxedo)+len(pidi))

	ambiguous := 0
	for i := range praxedo {
		p := &praxedo[i]
		out := idx.match(*p, consumed, opts.TieBreak)

		var matched *entity.NormalizedRecord
		if out.chosen >= 0 {
			consumed[out.chosen] = true
			matched = &idx.records[out.chosen]
		}
		if len(out.candidates) > 1 {
			ambiguous++
		}
		dossiers = append(dossiers, buildDossier(p, matched, len(out.candidates), now))
	}

	for i := range pidi {
		if consumed[i] {
			continue
		}
		dossiers = append(dossiers, buildDossier(nil, &pidi[i], 0, now))
	}

	uniquifyKeys(dossiers)

	logger.Info("reconcile.ok",
		"praxedo", len(praxedo),
		"pidi", len(pidi),
		"dossiers", len(dossiers),
		"ambiguous", ambiguous,
	)
	return dossiers
}

func buildDossier(prax, pidi *entity.NormalizedRecord, candidates int, now time.Time) entity.Dossier {
	d := entity.Dossier{
		Praxedo:     prax,
		PIDI:        pidi,
		Candidates:  candidates,
		GeneratedAt: now,
	}

	switch {
	case prax != nil && pidi != nil:
		d.Statut = constants.MatchOK
	case prax != nil:
		d.Statut = constants.MatchAbsentPIDI
	default:
		d.Statut = constants.MatchAbsentPraxedo
	}

	d.OTKey = firstNonEmpty(get(prax, otKey), get(pidi, otKey))
	d.NDGlobal = firstNonEmpty(get(prax, ndKey), get(pidi, ndKey))
	d.KeyMatch = firstNonEmpty(d.OTKey, d.NDGlobal, get(prax, recKey), get(pidi, recKey))

	// A side present without any resolvable identifier cannot be paired
	// cleanly: the dossier exists but its pairing is unknowable.
	if d.OTKey == "" && d.NDGlobal == "" {
		d.Statut = constants.MatchUnknown
	}

	if pidi != nil {
		d.PLP = strings.Contains(strings.ToUpper(pidi.CodeCible), "PLP")
	}
	return d
}

// uniquifyKeys makes KeyMatch unique across the dossier set. The permissive
// OR-join can surface the same identifier on two dossiers: a record with only
// a global identifier can consume a PIDI record whose work-order id also keys
// another dossier. The first occurrence keeps the shared identifier; later
// ones fall back to a contributing ledger key, then a numbered variant.
// A collision is expected input here, never a failure.
func uniquifyKeys(dossiers []entity.Dossier) {
	seen := make(map[string]struct{}, len(dossiers))
	for i := range dossiers {
		d := &dossiers[i]
		key := d.KeyMatch
		if _, dup := seen[key]; dup {
			for _, alt := range []string{get(d.Praxedo, recKey), get(d.PIDI, recKey)} {
				if alt == "" || alt == key {
					continue
				}
				if _, taken := seen[alt]; !taken {
					key = alt
					break
				}
			}
		}
		for n := 2; ; n++ {
			if _, dup := seen[key]; !dup {
				break
			}
			key = fmt.Sprintf("%s#%d", d.KeyMatch, n)
		}
		seen[key] = struct{}{}
		d.KeyMatch = key
	}
}

type recField int

const (
	otKey recField = iota
	ndKey
	recKey
)

func get(r *entity.NormalizedRecord, f recField) string {
	if r == nil {
		return ""
	}
	switch f {
	case otKey:
		return normKey(r.OTKey)
	case ndKey:
		return normKey(r.ND)
	default:
		return r.Key
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
