package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/pythagon-backend/internal/data/repos"
	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

const (
	IngestModeSync  = "sync"
	IngestModeAsync = "async"
)

// Partitioner splits a document into ordered units (pages).
type Partitioner interface {
	Partition(ctx context.Context, doc domain.Document) ([]domain.Unit, error)
}

// Extractor derives text and math expressions from one unit.
type Extractor interface {
	Extract(ctx context.Context, unit domain.Unit) (domain.Extraction, error)
}

// DocumentArchive stores the raw upload. Optional.
type DocumentArchive interface {
	Archive(ctx context.Context, owner string, documentID uuid.UUID, doc domain.Document) error
}

type IngestResult struct {
	DocumentID uuid.UUID
	TotalUnits int
	Units      []*domain.Problem
}

type IngestionConfig struct {
	Mode               string
	ExtractConcurrency int
	ExtractTimeout     time.Duration
}

type IngestionService interface {
	Ingest(ctx context.Context, owner string, doc domain.Document) (*IngestResult, error)
	// RunExtraction settles one Problem. Called inline in sync mode and by the
	// unit_extract job in async mode.
	RunExtraction(ctx context.Context, problemID uuid.UUID, unit domain.Unit) error
	FailExtraction(ctx context.Context, problemID uuid.UUID, reason string) error
	GetProblem(ctx context.Context, owner string, id uuid.UUID) (*domain.Problem, error)
	// ListDocument returns the caller's Problems for one upload in page order.
	ListDocument(ctx context.Context, owner string, documentID uuid.UUID) ([]*domain.Problem, error)
	DeleteProblem(ctx context.Context, owner string, id uuid.UUID) error
}

type ingestionService struct {
	log         *logger.Logger
	problems    repos.ProblemRepo
	partitioner Partitioner
	extractor   Extractor
	archive     DocumentArchive
	queue       runtime.Queue
	notify      StatusNotifier
	cfg         IngestionConfig
	now         func() time.Time
}

func NewIngestionService(
	baseLog *logger.Logger,
	problems repos.ProblemRepo,
	partitioner Partitioner,
	extractor Extractor,
	archive DocumentArchive,
	queue runtime.Queue,
	notify StatusNotifier,
	cfg IngestionConfig,
) IngestionService {
	if cfg.Mode != IngestModeAsync {
		cfg.Mode = IngestModeSync
	}
	if cfg.ExtractConcurrency < 1 {
		cfg.ExtractConcurrency = 4
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 60 * time.Second
	}
	return &ingestionService{
		log:         baseLog.With("service", "IngestionService"),
		problems:    problems,
		partitioner: partitioner,
		extractor:   extractor,
		archive:     archive,
		queue:       queue,
		notify:      notify,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *ingestionService) Ingest(ctx context.Context, owner string, doc domain.Document) (*IngestResult, error) {
	if err := checkPDF(doc); err != nil {
		return nil, err
	}

	units, err := s.partitioner.Partition(ctx, doc)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedMedia) {
			return nil, err
		}
		return nil, fmt.Errorf("partition %q: %v: %w", doc.Filename, err, domain.ErrProcessingFailed)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("partition %q: document has no pages: %w", doc.Filename, domain.ErrProcessingFailed)
	}

	documentID := uuid.New()
	now := s.now()
	created := make([]*domain.Problem, len(units))
	for i := range units {
		units[i].Index = i + 1
		p := domain.NewProblem(owner, documentID, i+1, now)
		created[i] = &p
	}
	if err := s.problems.Insert(ctx, created); err != nil {
		return nil, fmt.Errorf("insert problems: %w", err)
	}
	for _, p := range created {
		s.notify.ProblemChanged(ctx, p)
	}

	logKV := append([]interface{}{"document_id", documentID, "owner_id", owner, "pages", len(units), "mode", s.cfg.Mode}, ctxutil.LogFields(ctx)...)
	s.log.Info("document ingested", logKV...)

	if s.archive != nil {
		if err := s.archive.Archive(ctx, owner, documentID, doc); err != nil {
			s.log.Warn("document archive failed", append(logKV, "error", err)...)
		}
	}

	if s.cfg.Mode == IngestModeAsync && s.queue != nil {
		s.schedule(ctx, owner, created, units)
	} else {
		s.extractAll(ctx, created, units)
	}

	out := make([]*domain.Problem, len(created))
	for i, p := range created {
		cur, err := s.problems.Get(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("reload problem %s: %w", p.ID, err)
		}
		out[i] = cur
	}
	return &IngestResult{DocumentID: documentID, TotalUnits: len(out), Units: out}, nil
}

// extractAll runs extraction inline with bounded concurrency. Extraction
// outcomes are recorded on the Problems, so the group never errors.
func (s *ingestionService) extractAll(ctx context.Context, created []*domain.Problem, units []domain.Unit) {
	workCtx := ctxutil.Detach(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.ExtractConcurrency)
	for i := range created {
		id, unit := created[i].ID, units[i]
		g.Go(func() error {
			if err := s.RunExtraction(workCtx, id, unit); err != nil {
				s.log.Warn("extraction not recorded", "problem_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ingestionService) schedule(ctx context.Context, owner string, created []*domain.Problem, units []domain.Unit) {
	for i, p := range created {
		job := runtime.NewJob(runtime.JobTypeUnitExtract, p.ID, owner, units[i])
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Warn("extraction job not scheduled", "problem_id", p.ID, "error", err)
			if ferr := s.FailExtraction(ctx, p.ID, "extraction could not be scheduled"); ferr != nil {
				s.log.Warn("fail extraction", "problem_id", p.ID, "error", ferr)
			}
		}
	}
}

func (s *ingestionService) RunExtraction(ctx context.Context, problemID uuid.UUID, unit domain.Unit) error {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	res, err := withDeadline(runCtx, func(c context.Context) (domain.Extraction, error) {
		return s.extractor.Extract(c, unit)
	})
	if err != nil {
		reason := "extraction failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "extraction timed out"
		}
		s.log.Warn(reason, "problem_id", problemID, "page", unit.Index, "error", err)
		return s.FailExtraction(ctx, problemID, reason)
	}

	p, err := s.problems.CompareAndTransition(ctx, problemID, domain.ProblemProcessing, func(p *domain.Problem) error {
		p.Complete(res.Text, res.Expressions, s.now())
		return nil
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.notify.ProblemChanged(ctx, p)
	return nil
}

func (s *ingestionService) FailExtraction(ctx context.Context, problemID uuid.UUID, reason string) error {
	p, err := s.problems.CompareAndTransition(ctx, problemID, domain.ProblemProcessing, func(p *domain.Problem) error {
		p.Fail(reason, s.now())
		return nil
	})
	if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.notify.ProblemChanged(ctx, p)
	return nil
}

func (s *ingestionService) GetProblem(ctx context.Context, owner string, id uuid.UUID) (*domain.Problem, error) {
	p, err := s.problems.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != owner {
		return nil, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *ingestionService) ListDocument(ctx context.Context, owner string, documentID uuid.UUID) ([]*domain.Problem, error) {
	all, err := s.problems.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Problem, 0, len(all))
	for _, p := range all {
		if p.OwnerID == owner {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return out, nil
}

func (s *ingestionService) DeleteProblem(ctx context.Context, owner string, id uuid.UUID) error {
	err := s.problems.Delete(ctx, id, func(p *domain.Problem) error {
		if p.OwnerID != owner {
			return fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
		}
		if p.SolutionCount > 0 {
			return fmt.Errorf("problem %s has %d solutions: %w", id, p.SolutionCount, domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("problem deleted", "problem_id", id, "owner_id", owner)
	return nil
}

// checkPDF requires both the declared media type and the content to be PDF.
func checkPDF(doc domain.Document) error {
	declared := strings.ToLower(strings.TrimSpace(doc.MimeType))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	if declared != domain.MimeTypePDF {
		return fmt.Errorf("declared %q: %w", doc.MimeType, domain.ErrUnsupportedMedia)
	}
	if !mimetype.Detect(doc.Data).Is(domain.MimeTypePDF) {
		return fmt.Errorf("content is not a PDF: %w", domain.ErrUnsupportedMedia)
	}
	return nil
}

// withDeadline runs fn and gives up when ctx ends, even if fn ignores ctx.
func withDeadline[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{v: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
