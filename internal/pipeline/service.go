// Package pipeline coordinates the staged runs: import a feed (replace raw,
// rebuild ledger), reconcile the two ledgers into dossiers, evaluate the
// verdicts. Stages commit independently; a failure leaves the prior committed
// stages valid.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/billing"
	"github.com/kyntus/facturation/internal/common"
	"github.com/kyntus/facturation/internal/csvio"
	"github.com/kyntus/facturation/internal/entity"
	"github.com/kyntus/facturation/internal/fields"
	"github.com/kyntus/facturation/internal/normalize"
	"github.com/kyntus/facturation/internal/reconcile"
	"github.com/kyntus/facturation/internal/repository"
)

// Service runs the pipeline stages over the repositories. Imports of the
// same feed are serialized; the generation counters let a reconciliation
// detect a ledger swapped out from under it.
type Service struct {
	imports   repository.ImportRepository
	dossiers  repository.DossierRepository
	reference repository.ReferenceRepository
	aliases   fields.AliasConfig
	cfg       common.IngestConfig
	logger    *slog.Logger

	mu   sync.Mutex
	lock map[constants.Feed]*sync.Mutex
	gen  map[constants.Feed]uint64
}

func NewService(
	imports repository.ImportRepository,
	dossiers repository.DossierRepository,
	reference repository.ReferenceRepository,
	aliases fields.AliasConfig,
	cfg common.IngestConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		imports:   imports,
		dossiers:  dossiers,
		reference: reference,
		aliases:   aliases,
		cfg:       cfg,
		logger:    logger,
		lock: map[constants.Feed]*sync.Mutex{
			constants.FeedPraxedo: {},
			constants.FeedPIDI:    {},
		},
		gen: make(map[constants.Feed]uint64),
	}
}

// ImportSummary reports what one feed import did.
type ImportSummary struct {
	Feed      constants.Feed
	BatchID   uuid.UUID
	Filename  string
	Rows      int
	Records   int
	Encoding  string
	Delimiter rune
	Warnings  []csvio.ParseWarning
	// MissingOptional lists non-identifying fields with no matching header.
	MissingOptional []fields.Field
}

// ImportFeed replaces one feed from an uploaded file: parse, resolve headers,
// replace the raw rows, rebuild the normalized ledger. Header resolution
// failures on the identifying fields abort before anything is written.
func (s *Service) ImportFeed(ctx context.Context, feed constants.Feed, filename string, data []byte, importedBy string) (*ImportSummary, error) {
	s.feedLock(feed).Lock()
	defer s.feedLock(feed).Unlock()

	start := time.Now()
	batchID := uuid.New()

	delim := rune(';')
	if s.cfg.DefaultDelimiter != "" {
		delim = []rune(s.cfg.DefaultDelimiter)[0]
	}

	parsed, err := csvio.Parse(data, feed, batchID, delim, s.cfg.SniffBytes)
	if err != nil {
		s.logger.Error("import.parse.failed", "feed", feed, "file", filename, "error", err)
		return nil, common.NewAppError("IMPORT_PARSE", fmt.Sprintf("parse %s", filename), err)
	}

	res := fields.Resolve(parsed.Headers, fields.ByFeed[feed], s.aliases[feed])
	missingOptional, err := checkResolution(feed, res)
	if err != nil {
		s.logger.Error("import.headers.failed", "feed", feed, "file", filename, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	batch := entity.ImportBatch{
		ID:         batchID,
		Feed:       feed,
		Filename:   filename,
		RowCount:   len(parsed.Rows),
		ImportedBy: importedBy,
		ImportedAt: now,
	}
	if err := s.imports.ReplaceRaw(ctx, batch, parsed.Rows); err != nil {
		return nil, err
	}

	records := normalize.BuildLedger(parsed.Rows, feed, res, now)
	if err := s.imports.ReplaceLedger(ctx, feed, records); err != nil {
		return nil, err
	}
	s.bumpGeneration(feed)

	s.logger.Info("import.ok",
		"feed", feed,
		"file", filename,
		"batch_id", batchID,
		"rows", len(parsed.Rows),
		"records", len(records),
		"encoding", parsed.Encoding,
		"warnings", len(parsed.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &ImportSummary{
		Feed:            feed,
		BatchID:         batchID,
		Filename:        filename,
		Rows:            len(parsed.Rows),
		Records:         len(records),
		Encoding:        parsed.Encoding,
		Delimiter:       parsed.Delimiter,
		Warnings:        parsed.Warnings,
		MissingOptional: missingOptional,
	}, nil
}

// checkResolution splits missing fields into fatal (no identifying header at
// all) and optional. A feed file whose rows cannot be keyed is rejected
// before any write.
func checkResolution(feed constants.Feed, res fields.Resolution) ([]fields.Field, error) {
	keyResolved := false
	for _, f := range fields.KeyFields[feed] {
		if _, ok := res.Mapping[f]; ok {
			keyResolved = true
			break
		}
	}
	if !keyResolved {
		return nil, common.NewAppError("IMPORT_HEADERS",
			fmt.Sprintf("feed %s: no identifying column among %v", feed, fields.KeyFields[feed]),
			common.ErrInvalidInput)
	}
	return res.Missing, nil
}

// RunSummary reports one reconcile+evaluate run.
type RunSummary struct {
	Dossiers  int
	ByMatch   map[constants.MatchStatus]int
	Verdicts  int
	ByVerdict map[constants.VerdictStatus]int
}

// ReconcileAndEvaluate rebuilds the dossier set from the two current ledgers
// and derives a verdict per dossier from the reference snapshots. If either
// ledger is replaced while the run reads, the run fails with ErrStaleRead
// and writes nothing.
func (s *Service) ReconcileAndEvaluate(ctx context.Context, tieBreak reconcile.TieBreak) (*RunSummary, error) {
	start := time.Now()
	before := s.generations()

	praxedo, err := s.imports.ListLedger(ctx, constants.FeedPraxedo)
	if err != nil {
		return nil, err
	}
	pidi, err := s.imports.ListLedger(ctx, constants.FeedPIDI)
	if err != nil {
		return nil, err
	}
	if s.generations() != before {
		return nil, common.NewAppError("RECONCILE_STALE", "ledger replaced during read", common.ErrStaleRead)
	}

	dossiers := reconcile.Reconcile(praxedo, pidi, reconcile.Options{
		TieBreak: tieBreak,
		Logger:   s.logger,
	})
	if err := s.dossiers.ReplaceDossiers(ctx, dossiers); err != nil {
		return nil, err
	}

	rules, err := s.reference.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	remu, err := s.reference.ListRemunerations(ctx)
	if err != nil {
		return nil, err
	}
	catalog := billing.NewCatalog(rules, remu)

	now := time.Now().UTC()
	verdicts := make([]entity.BillingVerdict, 0, len(dossiers))
	byVerdict := make(map[constants.VerdictStatus]int)
	byMatch := make(map[constants.MatchStatus]int)
	for i := range dossiers {
		d := &dossiers[i]
		byMatch[d.Statut]++
		v := billing.Evaluate(catalog, billing.InputFromDossier(d), now)
		byVerdict[v.Statut]++
		verdicts = append(verdicts, v)
	}
	if err := s.dossiers.ReplaceVerdicts(ctx, verdicts); err != nil {
		return nil, err
	}

	s.logger.Info("reconcile.run.ok",
		"dossiers", len(dossiers),
		"verdicts", len(verdicts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &RunSummary{
		Dossiers:  len(dossiers),
		ByMatch:   byMatch,
		Verdicts:  len(verdicts),
		ByVerdict: byVerdict,
	}, nil
}

func (s *Service) feedLock(feed constants.Feed) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lock[feed]
	if !ok {
		l = &sync.Mutex{}
		s.lock[feed] = l
	}
	return l
}

func (s *Service) bumpGeneration(feed constants.Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[feed]++
}

// generations snapshots both feed counters for the stale-read check.
func (s *Service) generations() [2]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [2]uint64{s.gen[constants.FeedPraxedo], s.gen[constants.FeedPIDI]}
}
