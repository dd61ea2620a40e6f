package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/entity"
)

// Input carries the dossier fields the decision table reads.
type Input struct {
	KeyMatch     string
	Activite     string
	Produit      string
	PLP          bool
	CodeCloture  string
	ActiviteRemu string // activity code for the remuneration lookup
}

// InputFromDossier projects a dossier onto the evaluator's input. Billing
// attributes live on the Praxedo side; the PLP flag on the dossier.
func InputFromDossier(d *entity.Dossier) Input {
	in := Input{KeyMatch: d.KeyMatch, PLP: d.PLP, ActiviteRemu: d.ActiviteRemu()}
	if d.Praxedo != nil {
		in.Activite = d.Praxedo.ActiviteCode
		in.Produit = d.Praxedo.ProduitCode
		in.CodeCloture = d.Praxedo.CodeCloture
	}
	return in
}

// check is one row of the decision table: evaluated top-down, the first
// non-nil verdict wins and later checks never run.
type check struct {
	name string
	eval func(in Input, rule *entity.BillingRule, c *Catalog) *entity.BillingVerdict
}

// The ordering is deliberate: a missing rule reads differently from a
// disallowed closure code, which reads differently again from a disallowed
// but unremunerated one. New checks get an explicit position here.
var checks = []check{
	{
		name: "rule-exists",
		eval: func(in Input, rule *entity.BillingRule, _ *Catalog) *entity.BillingVerdict {
			if rule != nil {
				return nil
			}
			return &entity.BillingVerdict{
				Statut:      constants.VerdictAVerifier,
				Reason:      constants.ReasonNoRule,
				Commentaire: "Aucune règle factregle trouvée",
			}
		},
	},
	{
		name: "cloture-allowed",
		eval: func(in Input, rule *entity.BillingRule, _ *Catalog) *entity.BillingVerdict {
			allowed := SplitClosureCodes(rule.CodesClotureFacturable)
			if _, ok := allowed[strings.ToUpper(in.CodeCloture)]; ok {
				return nil
			}
			return &entity.BillingVerdict{
				Statut:      constants.VerdictAVerifier,
				Reason:      constants.ReasonClotureOutside,
				Commentaire: fmt.Sprintf("Code clôture %s non présent dans codes_cloture_facturable", in.CodeCloture),
			}
		},
	},
	{
		name: "cloture-remunerated",
		eval: func(in Input, rule *entity.BillingRule, c *Catalog) *entity.BillingVerdict {
			if c.IsRemunerated(in.ActiviteRemu, in.CodeCloture) {
				return nil
			}
			return &entity.BillingVerdict{
				Statut:      constants.VerdictNonFacturable,
				Reason:      constants.ReasonClotureNonRemu,
				Commentaire: fmt.Sprintf("Code clôture %s remu_fournisseur != %s", in.CodeCloture, constants.RemuEligible),
			}
		},
	},
}

// Evaluate runs the decision table for one dossier and returns its verdict.
// CONDITIONNEL is never produced here; that status comes from the downstream
// article comparison over the reporting surface.
func Evaluate(c *Catalog, in Input, now time.Time) entity.BillingVerdict {
	rule, _ := c.FindRule(in.Activite, in.Produit, in.PLP)

	for _, step := range checks {
		if v := step.eval(in, rule, c); v != nil {
			v.KeyMatch = in.KeyMatch
			v.GeneratedAt = now
			return *v
		}
	}

	return entity.BillingVerdict{
		KeyMatch:    in.KeyMatch,
		Statut:      constants.VerdictFacturable,
		Articles:    expectedArticles(rule),
		Commentaire: rule.Commentaires,
		GeneratedAt: now,
	}
}

// expectedArticles concatenates the rule's candidate-article fields in their
// declared order, skipping blanks.
func expectedArticles(rule *entity.BillingRule) []string {
	var out []string
	for _, s := range []string{
		rule.BranchementImmeuble,
		rule.BranchementSouterrain,
		rule.BranchementFacadeAerien,
		rule.PLPArticles,
		rule.Services,
		rule.ArticleEtudeOptionnel,
		rule.ArticleAutreOptionnel,
	} {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
