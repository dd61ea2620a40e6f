package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kyntus/facturation/constants"
)

// NormalizedRecord is the per-feed canonical shape of a work order, built by
// folding all raw rows sharing a natural key. Praxedo and PIDI populate
// different subsets of the fields; the zero value of a field means "unset".
type NormalizedRecord struct {
	Key      string         `json:"key"` // natural key: OT, else ND/flux, else synthetic
	Feed     constants.Feed `json:"feed"`
	BatchID  uuid.UUID      `json:"batch_id"`
	Position int            `json:"position"` // first contributing row line, used for deterministic ordering

	OTKey string `json:"ot_key,omitempty"`
	ND    string `json:"nd,omitempty"`

	// Praxedo (field-technician execution)
	ActiviteCode  string     `json:"activite_code,omitempty"`
	ProduitCode   string     `json:"produit_code,omitempty"`
	CodeCloture   string     `json:"code_cloture_code,omitempty"`
	DatePlanifiee *time.Time `json:"date_planifiee,omitempty"`
	DateCloture   *time.Time `json:"date_cloture,omitempty"`
	Technicien    string     `json:"technicien,omitempty"`

	// PIDI (logistics / attachment)
	NumeroFlux    string           `json:"numero_flux_pidi,omitempty"`
	CodeCible     string           `json:"code_cible,omitempty"`
	NumeroATT     string           `json:"numero_att,omitempty"`
	Agence        string           `json:"agence,omitempty"`
	DateCreation  *time.Time       `json:"date_creation,omitempty"`
	HT            *decimal.Decimal `json:"ht,omitempty"`
	ListeArticles []string         `json:"liste_articles,omitempty"` // order-preserving deduplicated token union

	Statut      string    `json:"statut,omitempty"` // feed-local status code
	Commentaire string    `json:"commentaire,omitempty"`
	ImportedAt  time.Time `json:"imported_at"`
}
