package entity

import "time"

// BillingRule mirrors one row of the factregle reference table: which closure
// codes make an (activity, product, PLP) combination billable, and which
// article codes are expected on the invoice.
type BillingRule struct {
	ID        int64  `json:"id"`
	Categorie string `json:"categorie,omitempty"`
	PLP       string `json:"plp,omitempty"` // "PLP" or "-"/empty for the non-PLP variant

	CodeActivite string `json:"code_activite"`
	CodeProduit  string `json:"code_produit"`

	LibelleActivite string `json:"libelle_activite,omitempty"`
	LibelleProduit  string `json:"libelle_produit,omitempty"`

	// Free text, tokenized on whitespace/comma/semicolon, e.g. "DMS MAJ TKO REA".
	CodesClotureFacturable string `json:"codes_cloture_facturable,omitempty"`

	BranchementImmeuble     string `json:"branchement_immeuble,omitempty"`
	BranchementSouterrain   string `json:"branchement_souterrain,omitempty"`
	BranchementFacadeAerien string `json:"branchement_facade_aerien,omitempty"`

	PLPArticles string `json:"plp_articles,omitempty"`
	Services    string `json:"services,omitempty"`
	CodeVE      string `json:"code_ve,omitempty"`

	ArticleEtudeOptionnel string `json:"article_etude_optionnel,omitempty"`
	ArticleAutreOptionnel string `json:"article_autre_optionnel,omitempty"`

	Commentaires string    `json:"commentaires,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`
}

// ClosureRemuneration marks whether the supplier is paid for a closure code
// under a given remuneration activity.
type ClosureRemuneration struct {
	ID       int64  `json:"id"`
	Activite string `json:"activite"`

	TypeCloture string `json:"type_cloture,omitempty"`
	CodeCloture string `json:"code_cloture"`

	LibelleCodeCloture string `json:"libelle_code_cloture,omitempty"`
	CodeSituation      string `json:"code_situation,omitempty"`

	RemuFournisseur string    `json:"remu_fournisseur,omitempty"` // "OUI" / "NON"
	Commentaire     string    `json:"commentaire,omitempty"`
	ImportedAt      time.Time `json:"imported_at"`
}
