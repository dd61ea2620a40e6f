package entity

import (
	"time"

	"github.com/kyntus/facturation/constants"
)

// Dossier is the canonical cross-feed record for one work order. The dossier
// set is rebuilt wholesale on every reconciliation run; it is a pure image of
// the two current ledgers, never mutated incrementally.
type Dossier struct {
	KeyMatch string                `json:"key_match"`
	OTKey    string                `json:"ot_key,omitempty"`
	NDGlobal string                `json:"nd_global,omitempty"`
	Statut   constants.MatchStatus `json:"statut_croisement"`

	Praxedo *NormalizedRecord `json:"praxedo,omitempty"`
	PIDI    *NormalizedRecord `json:"pidi,omitempty"`

	// Candidates counts OR-join candidates on the opposite side; >1 means the
	// pairing was ambiguous and resolved by the configured tie-break.
	Candidates int `json:"candidates,omitempty"`

	PLP         bool      `json:"plp_applicable"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ActiviteRemu is the activity code used for the closure-remuneration lookup.
// The remuneration reference is keyed by the Praxedo activity code.
func (d *Dossier) ActiviteRemu() string {
	if d.Praxedo == nil {
		return ""
	}
	return d.Praxedo.ActiviteCode
}
