package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kyntus/facturation/internal/articles"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/repository"
)

// Service is a tiny façade over repositories that produces the XLSX billing
// report: one row per dossier, with its verdict alongside.
type Service struct {
	dossiers repository.DossierRepository
	maxRows  int
	logger   *slog.Logger
}

func NewService(dossiers repository.DossierRepository, cfg common.ExportConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dossiers: dossiers, maxRows: cfg.MaxRows, logger: logger}
}

var reportHeaders = []string{
	"Key match",
	"N° OT",
	"ND",
	"Statut croisement",
	"Statut facturation",
	"Motif",
	"Articles attendus",
	"Articles posés",
	"Code activité",
	"Code produit",
	"PLP",
	"Code clôture",
	"Technicien",
	"Agence",
	"Montant HT",
	"Commentaire",
}

// ExportReportXLSX returns the billing report workbook as bytes. Rows follow
// the stored dossier order; output is capped at the configured row limit.
func (s *Service) ExportReportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	dossiers, err := s.dossiers.ListDossiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("query dossiers: %w", err)
	}
	verdicts, err := s.dossiers.ListVerdicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}

	truncated := false
	if s.maxRows > 0 && len(dossiers) > s.maxRows {
		dossiers = dossiers[:s.maxRows]
		truncated = true
	}

	f := excelize.NewFile()
	const sheet = "Facturation"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if def, _ := f.GetSheetIndex("Sheet1"); def != -1 && def != activeIndex {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	// keep the header visible while scrolling
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	for i := range dossiers {
		d := &dossiers[i]
		v := verdicts[d.KeyMatch]

		write := func(col int, val any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, val)
		}

		write(1, d.KeyMatch)
		write(2, d.OTKey)
		write(3, d.NDGlobal)
		write(4, string(d.Statut))
		write(5, string(v.Statut))
		write(6, v.Reason)
		write(7, articles.Display(v.Articles))
		if d.PIDI != nil {
			// re-tokenized so noise and casing artifacts never reach the report
			posed := articles.Tokenize(strings.Join(d.PIDI.ListeArticles, " "))
			write(8, articles.Display(posed))
		}
		if d.Praxedo != nil {
			write(9, d.Praxedo.ActiviteCode)
			write(10, d.Praxedo.ProduitCode)
		}
		if d.PLP {
			write(11, "PLP")
		}
		if d.Praxedo != nil {
			write(12, d.Praxedo.CodeCloture)
			write(13, d.Praxedo.Technicien)
		}
		if d.PIDI != nil {
			write(14, d.PIDI.Agence)
			if d.PIDI.HT != nil {
				write(15, d.PIDI.HT.String())
			}
		}
		write(16, commentFor(d, v))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "C", 16)
	_ = f.SetColWidth(sheet, "D", "F", 20)
	_ = f.SetColWidth(sheet, "G", "H", 36)
	_ = f.SetColWidth(sheet, "I", "O", 14)
	_ = f.SetColWidth(sheet, "P", "P", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(dossiers),
		"truncated", truncated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// commentFor prefers the verdict's explanation, falling back to the raw
// Praxedo comment so reviewers see something for unmatched dossiers.
func commentFor(d *entity.Dossier, v entity.BillingVerdict) string {
	if v.Commentaire != "" {
		return truncate(v.Commentaire, 140)
	}
	if d.Praxedo != nil {
		return truncate(d.Praxedo.Commentaire, 140)
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
