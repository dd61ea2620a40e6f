package entity

import (
	"time"

	"github.com/kyntus/facturation/constants"
)

// BillingVerdict is the billability outcome for one dossier. It is derived
// data: rebuilt from the dossier and the reference snapshots, never edited.
type BillingVerdict struct {
	KeyMatch string                  `json:"key_match"`
	Statut   constants.VerdictStatus `json:"statut_final"`
	Reason   string                  `json:"reason,omitempty"` // reason code when not cleanly FACTURABLE

	// Articles is the expected-article list assembled from the matched rule,
	// in declared field order, blanks skipped.
	Articles []string `json:"articles,omitempty"`

	Commentaire string    `json:"commentaire,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
