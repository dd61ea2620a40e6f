package fields

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/common"
)

// AliasConfig holds, per feed, the ordered header aliases accepted for each
// internal field. Order encodes priority: more specific spellings must come
// before generic ones.
type AliasConfig map[constants.Feed]map[Field][]string

// DefaultAliases covers the header spellings seen in real Praxedo and PIDI
// exports, accents and numbering signs included.
var DefaultAliases = AliasConfig{
	constants.FeedPraxedo: {
		NumeroOT:      {"N° OT", "Numéro OT", "Numero OT", "Num OT", "N OT", "OT", "Numéro"},
		ND:            {"ND", "N° ND", "ND Global"},
		Activite:      {"Code activité", "Activité", "Code activite", "Act"},
		Produit:       {"Code produit", "Produit", "Prod"},
		CodeCloture:   {"Code clôture", "Code cloture", "Clôture", "Cloture", "Code de clôture"},
		Statut:        {"Statut", "Statut OT", "Etat"},
		DatePlanifiee: {"Planifiée", "Date planifiée", "Date planifiee", "Planifiee"},
		DateCloture:   {"Date clôture", "Date cloture", "Clôturée le"},
		Technicien:    {"Technicien", "Nom technicien", "Nom du technicien", "Intervenant"},
		Commentaire:   {"Commentaire", "Commentaires", "Commentaire technicien", "Description"},
	},
	constants.FeedPIDI: {
		NumeroFlux:    {"N° de flux PIDI", "Numéro flux PIDI", "Numero flux PIDI", "Flux PIDI", "Flux"},
		NumeroOT:      {"N° OT", "Numéro OT", "Numero OT", "Num OT", "N OT", "OT"},
		ND:            {"ND", "N° ND"},
		Statut:        {"Statut", "Statut PIDI", "Etat"},
		CodeCible:     {"Code cible", "Cible"},
		DateCreation:  {"Date création", "Date creation", "Créé le", "Date de création"},
		NumeroATT:     {"N° ATT", "Numéro ATT", "Numero ATT", "ATT"},
		Agence:        {"Agence", "Agence PIDI"},
		ListeArticles: {"Liste des articles", "Liste articles", "Articles"},
		HT:            {"HT", "Montant HT", "Total HT"},
		Commentaire:   {"Commentaire", "Commentaires", "Commentaire interne"},
	},
}

// aliasSchema builds the JSON-Schema (draft 2020-12 subset) constraining an
// alias configuration file: every known field of every feed, each with at
// least one alias, nothing else.
func aliasSchema() map[string]any {
	feeds := map[string]any{}
	for feed, vocabulary := range ByFeed {
		props := map[string]any{}
		required := make([]string, 0, len(vocabulary))
		for _, f := range vocabulary {
			props[string(f)] = map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "minLength": 1},
			}
			required = append(required, string(f))
		}
		feeds[string(feed)] = map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             required,
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           feeds,
		"required":             []string{string(constants.FeedPraxedo), string(constants.FeedPIDI)},
	}
}

// LoadAliasConfig reads and validates a JSON alias table. An empty path
// returns the embedded defaults. Validation is fail-fast: a bad table is a
// configuration error and nothing is ingested with it.
func LoadAliasConfig(path string) (AliasConfig, error) {
	if path == "" {
		return DefaultAliases, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError("ALIAS_CONFIG", fmt.Sprintf("read %s", path), err)
	}
	return ParseAliasConfig(data)
}

// ParseAliasConfig validates raw JSON against the alias schema and decodes it.
func ParseAliasConfig(data []byte) (AliasConfig, error) {
	if err := ValidateJSONAgainstSchema(aliasSchema(), data); err != nil {
		return nil, common.NewAppError("ALIAS_CONFIG", "alias table rejected", err)
	}
	var raw map[string]map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, common.NewAppError("ALIAS_CONFIG", "alias table malformed", err)
	}
	cfg := make(AliasConfig, len(raw))
	for feedName, byField := range raw {
		feed, ok := constants.ParseFeed(feedName)
		if !ok {
			return nil, common.NewAppError("ALIAS_CONFIG", fmt.Sprintf("unknown feed %q", feedName), common.ErrValidation)
		}
		m := make(map[Field][]string, len(byField))
		for name, list := range byField {
			m[Field(name)] = list
		}
		cfg[feed] = m
	}
	return cfg, nil
}
