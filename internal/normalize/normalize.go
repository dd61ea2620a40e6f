// Package normalize folds the raw rows of one feed import into the feed's
// source ledger: one canonical record per natural key.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/csvio"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/fields"
)

// dateLayouts are tried in order when parsing feed dates. A value matching
// none of them degrades to unset, never aborts the row.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// BuildLedger consumes the raw rows of one import batch and produces one
// NormalizedRecord per distinct natural key. Replaying identical rows yields
// identical records; no row is dropped, rows without any identifier get a
// synthetic per-row key.
func BuildLedger(rows []entity.RawRow, feed constants.Feed, res fields.Resolution, importedAt time.Time) []entity.NormalizedRecord {
	if len(rows) == 0 {
		return nil
	}
	groups := make(map[string]*mergedRow)
	var order []string

	for _, row := range rows {
		values := cleanRow(row, res)
		key := naturalKey(feed, values, row)
		g, ok := groups[key]
		if !ok {
			g = newMergedRow(key, row.Line)
			groups[key] = g
			order = append(order, key)
		}
		g.absorb(values, row.Line)
	}

	records := make([]entity.NormalizedRecord, 0, len(order))
	for _, key := range order {
		records = append(records, toRecord(groups[key], feed, rows[0].BatchID, importedAt))
	}
	return records
}

// cleanRow projects one raw row through the header resolution, trimming every
// value and repairing double-encoded text where the repair is a detectable
// improvement.
func cleanRow(row entity.RawRow, res fields.Resolution) map[fields.Field]string {
	values := make(map[fields.Field]string, len(res.Mapping))
	for f, header := range res.Mapping {
		v := strings.TrimSpace(row.Get(header))
		if v == "" {
			continue
		}
		values[f] = csvio.RepairMojibake(v)
	}
	return values
}

// naturalKey picks the work-order identifier, then the feed's secondary
// identifier, then a synthetic batch-scoped key so the row is never silently
// merged into an unrelated record.
func naturalKey(feed constants.Feed, values map[fields.Field]string, row entity.RawRow) string {
	for _, f := range fields.KeyFields[feed] {
		if v := values[f]; v != "" {
			return strings.ToUpper(v)
		}
	}
	return fmt.Sprintf("row:%s:%d", row.BatchID, row.Line)
}

func toRecord(m *mergedRow, feed constants.Feed, batchID uuid.UUID, importedAt time.Time) entity.NormalizedRecord {
	rec := entity.NormalizedRecord{
		Key:        m.key,
		Feed:       feed,
		BatchID:    batchID,
		Position:   m.position,
		ImportedAt: importedAt,

		OTKey:       m.scalars[fields.NumeroOT],
		ND:          m.scalars[fields.ND],
		Statut:      m.scalars[fields.Statut],
		Commentaire: m.scalars[fields.Commentaire],
	}

	switch feed {
	case constants.FeedPraxedo:
		rec.ActiviteCode = m.scalars[fields.Activite]
		rec.ProduitCode = m.scalars[fields.Produit]
		rec.CodeCloture = strings.ToUpper(m.scalars[fields.CodeCloture])
		rec.DatePlanifiee = parseDate(m.scalars[fields.DatePlanifiee])
		rec.DateCloture = parseDate(m.scalars[fields.DateCloture])
		rec.Technicien = m.scalars[fields.Technicien]
	case constants.FeedPIDI:
		rec.NumeroFlux = m.scalars[fields.NumeroFlux]
		rec.CodeCible = m.scalars[fields.CodeCible]
		rec.NumeroATT = m.scalars[fields.NumeroATT]
		rec.Agence = m.scalars[fields.Agence]
		rec.DateCreation = parseDate(m.scalars[fields.DateCreation])
		rec.HT = parseMoney(m.scalars[fields.HT])
		rec.ListeArticles = m.articles
	}
	return rec
}

// parseDate tries the known feed layouts; malformed values degrade to unset.
func parseDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

// parseMoney parses an HT amount: euro sign, plain and non-breaking spaces
// stripped, comma decimal separator accepted. Malformed values degrade to
// unset rather than aborting the row.
func parseMoney(v string) *decimal.Decimal {
	if v == "" {
		return nil
	}
	v = strings.NewReplacer("€", "", "\u00a0", "", " ", "", ",", ".").Replace(v)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}
