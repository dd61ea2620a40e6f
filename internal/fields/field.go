// Package fields maps locale-noisy CSV headers onto a closed vocabulary of
// internal fields, one vocabulary per feed.
package fields

import "github.com/kyntus/facturation/constants"

// Field is an internal field name, the canonical key the normalizer works
// with. Values double as an implicit header alias, tried before the
// configured aliases.
type Field string

// Shared fields.
const (
	NumeroOT    Field = "numero_ot"
	ND          Field = "nd"
	Statut      Field = "statut"
	Commentaire Field = "commentaire"
)

// Praxedo (field-technician) fields.
const (
	Activite      Field = "activite"
	Produit       Field = "produit"
	CodeCloture   Field = "code_cloture"
	DatePlanifiee Field = "date_planifiee"
	DateCloture   Field = "date_cloture"
	Technicien    Field = "technicien"
)

// PIDI (logistics) fields.
const (
	NumeroFlux    Field = "numero_flux_pidi"
	CodeCible     Field = "code_cible"
	DateCreation  Field = "date_creation"
	NumeroATT     Field = "numero_att"
	Agence        Field = "agence"
	ListeArticles Field = "liste_articles"
	HT            Field = "ht"
)

// ByFeed lists the full field vocabulary per feed, in ledger column order.
var ByFeed = map[constants.Feed][]Field{
	constants.FeedPraxedo: {
		NumeroOT, ND, Activite, Produit, CodeCloture, Statut,
		DatePlanifiee, DateCloture, Technicien, Commentaire,
	},
	constants.FeedPIDI: {
		NumeroFlux, NumeroOT, ND, Statut, CodeCible, DateCreation,
		NumeroATT, Agence, ListeArticles, HT, Commentaire,
	},
}

// KeyFields lists the identifying fields per feed, in fallback order: the
// work-order number first, then the secondary identifier. A row missing all
// of them gets a synthetic key so it is never merged into another record.
var KeyFields = map[constants.Feed][]Field{
	constants.FeedPraxedo: {NumeroOT, ND},
	constants.FeedPIDI:    {NumeroOT, NumeroFlux},
}
