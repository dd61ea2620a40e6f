// Package billing decides whether a reconciled dossier is billable, from the
// factregle and closure-remuneration reference snapshots.
package billing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
)

// Catalog is a read-only snapshot of the billing reference data.
type Catalog struct {
	rules []entity.BillingRule
	remu  map[remuKey]string
}

type remuKey struct {
	activite string
	cloture  string
}

// NewCatalog wraps reference snapshots for lookup. The data is reference
// material maintained elsewhere; the catalog never mutates it.
func NewCatalog(rules []entity.BillingRule, remu []entity.ClosureRemuneration) *Catalog {
	c := &Catalog{rules: rules, remu: make(map[remuKey]string, len(remu))}
	for _, r := range remu {
		k := remuKey{activite: fold(r.Activite), cloture: fold(r.CodeCloture)}
		if _, exists := c.remu[k]; !exists {
			c.remu[k] = r.RemuFournisseur
		}
	}
	return c
}

// FindRule returns the single rule for (activity, product, PLP flag).
// PLP is a three-way discriminator: PLP dossiers only match rules flagged
// "PLP", others only match the "-"/empty variant. Zero or several qualifying
// rules is a catalog-configuration error, never silently resolved.
func (c *Catalog) FindRule(activite, produit string, plp bool) (*entity.BillingRule, error) {
	var found *entity.BillingRule
	n := 0
	for i := range c.rules {
		r := &c.rules[i]
		if fold(r.CodeActivite) != fold(activite) || fold(r.CodeProduit) != fold(produit) {
			continue
		}
		rulePLP := fold(r.PLP)
		if plp {
			if rulePLP != "PLP" {
				continue
			}
		} else if rulePLP != "" && rulePLP != "-" {
			continue
		}
		found = r
		n++
	}
	if n != 1 {
		return nil, common.NewAppError("RULE_CATALOG",
			fmt.Sprintf("activite=%s produit=%s plp=%t matched %d rules", activite, produit, plp, n),
			common.ErrNoUniqueRule)
	}
	return found, nil
}

// IsRemunerated reports whether the remuneration reference marks the closure
// code as paid for the given remuneration activity. Comparison against the
// eligibility marker is case-insensitive.
func (c *Catalog) IsRemunerated(activiteRemu, codeCloture string) bool {
	v, ok := c.remu[remuKey{activite: fold(activiteRemu), cloture: fold(codeCloture)}]
	if !ok {
		return false
	}
	return strings.ToUpper(strings.TrimSpace(v)) == constants.RemuEligible
}

var codeSplitRe = regexp.MustCompile(`[\s,;]+`)

// SplitClosureCodes tokenizes a rule's free-text allow-list:
// "DMS MAJ TKO REA" -> {DMS, MAJ, TKO, REA}. Commas, semicolons and
// newlines are accepted as separators too.
func SplitClosureCodes(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range codeSplitRe.Split(strings.TrimSpace(text), -1) {
		if tok == "" {
			continue
		}
		out[strings.ToUpper(tok)] = struct{}{}
	}
	return out
}

// fold normalizes a reference key for comparison.
func fold(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
