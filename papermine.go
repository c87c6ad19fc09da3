// Package papermine orchestrates the CFST specimen extraction pipeline:
// adaptive page selection, image caching, vision extraction, physical
// validation, workbook export, and batch archival with crash-safe state.
package papermine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cfstlab/papermine/export"
	"github.com/cfstlab/papermine/extract"
	"github.com/cfstlab/papermine/imgcache"
	"github.com/cfstlab/papermine/llm"
	"github.com/cfstlab/papermine/pagescan"
	"github.com/cfstlab/papermine/pdfdoc"
	"github.com/cfstlab/papermine/store"
	"github.com/cfstlab/papermine/validate"
)

// Outcome is the terminal classification of one document.
type Outcome string

const (
	// OutcomeSucceeded: data extracted, validated, and archived.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed: the document could not be read or rendered.
	OutcomeFailed Outcome = "failed"
	// OutcomeExcluded: the model rejected the document as out of scope.
	OutcomeExcluded Outcome = "excluded"
	// OutcomeManualReview: the model accepted the document but found no
	// specimen data.
	OutcomeManualReview Outcome = "manual_review"
	// OutcomeRetained: extraction failed after rendering; the image cache
	// is kept so a later run can retry without touching the PDF.
	OutcomeRetained Outcome = "retained_for_retry"
)

// DocumentResult reports one document's trip through the pipeline.
type DocumentResult struct {
	DocID    string
	Path     string
	Outcome  Outcome
	Pages    []int
	Strategy string
	Records  int
	Summary  validate.Summary

	// ArchivePath is set on successful archival; Warning notes a non-fatal
	// archive failure (cache retained).
	ArchivePath string
	Warning     string

	Err error
}

// BatchSummary aggregates a directory run.
type BatchSummary struct {
	Processed    int
	Succeeded    int
	Failed       int
	Excluded     int
	ManualReview int
	Retained     int

	WorkbookPath string
	Report       string
}

// Engine is the pipeline's entry point.
type Engine interface {
	// ProcessDirectory runs every PDF in the input directory and writes the
	// aggregated workbook.
	ProcessDirectory(ctx context.Context) (*BatchSummary, error)

	// ProcessDocument runs a single PDF end to end. If the document already
	// has cached images, selection and rendering are skipped and extraction
	// resumes from the cache.
	ProcessDocument(ctx context.Context, path string) (*DocumentResult, error)

	// ResumeFromCache re-enters the pipeline at the extraction stage using
	// a pre-existing image cache, without any source PDF.
	ResumeFromCache(ctx context.Context, docID string) (*DocumentResult, error)

	// Store exposes the state database for diagnostics.
	Store() *store.Store

	// Close shuts the engine down.
	Close() error
}

// DocumentSource abstracts an opened PDF for the pipeline: page count plus
// per-page text for selection. The document identifier comes from the path,
// not the source, so a cache check can happen before opening.
type DocumentSource = pagescan.TextSource

// DocumentOpener opens a source document. The default uses pdfdoc.Open.
type DocumentOpener func(path string) (DocumentSource, error)

// Extractor turns cached page images into specimen records.
type Extractor interface {
	Extract(ctx context.Context, docID string, imagePaths []string) (*extract.Result, error)
}

// FileMover routes a source PDF to an outcome directory.
type FileMover interface {
	Move(path, destDir string) error
}

// Option configures the engine.
type Option func(*engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *engine) { e.logger = l }
}

// WithRenderer replaces the page renderer.
func WithRenderer(r pdfdoc.Renderer) Option {
	return func(e *engine) { e.renderer = r }
}

// WithExtractor replaces the vision extraction client.
func WithExtractor(x Extractor) Option {
	return func(e *engine) { e.extractor = x }
}

// WithFileMover replaces the outcome-directory file mover.
func WithFileMover(m FileMover) Option {
	return func(e *engine) { e.mover = m }
}

// WithDocumentOpener replaces the PDF opener.
func WithDocumentOpener(o DocumentOpener) Option {
	return func(e *engine) { e.opener = o }
}

// WithClock replaces the time source used for archive directory names.
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

type engine struct {
	cfg    Config
	logger *slog.Logger

	selector  *pagescan.Selector
	cache     *imgcache.Cache
	archiver  *imgcache.Archiver
	state     *store.Store
	validator *validate.Engine
	renderer  pdfdoc.Renderer
	extractor Extractor
	mover     FileMover
	opener    DocumentOpener
	now       func() time.Time

	mu      sync.Mutex
	writer  *export.Writer
	reports map[string]validate.Summary

	// batchMu serializes read-archive-advance on the batch counter so that
	// parallel documents never share or skip a batch number.
	batchMu sync.Mutex
}

// New builds an engine from configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	selector, err := pagescan.NewSelector(cfg.Selection)
	if err != nil {
		return nil, fmt.Errorf("building page selector: %w", err)
	}
	e.selector = selector

	e.cache, err = imgcache.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	e.archiver, err = imgcache.NewArchiver(cfg.ArchiveDir, e.logger)
	if err != nil {
		return nil, err
	}
	e.state, err = store.New(cfg.StatePath, e.logger)
	if err != nil {
		return nil, err
	}

	e.validator = validate.NewEngine(cfg.Thresholds)
	e.writer = export.NewWriter(e.logger)
	e.reports = make(map[string]validate.Summary)

	if e.renderer == nil {
		e.renderer = &pdfdoc.PopplerRenderer{DPI: cfg.RenderDPI, Quality: cfg.RenderQuality}
	}
	if e.extractor == nil {
		provider, err := llm.NewVisionProvider(cfg.Vision)
		if err != nil {
			e.state.Close()
			return nil, err
		}
		e.extractor = extract.NewClient(provider, cfg.Vision.Model, e.logger)
	}
	if e.mover == nil {
		e.mover = &diskMover{}
	}
	if e.opener == nil {
		e.opener = func(path string) (DocumentSource, error) { return pdfdoc.Open(path) }
	}
	return e, nil
}

func (e *engine) Store() *store.Store { return e.state }

func (e *engine) Close() error { return e.state.Close() }

// ProcessDirectory runs every PDF under the input directory, bounded by the
// configured concurrency, then writes the workbook and validation report.
func (e *engine) ProcessDirectory(ctx context.Context) (*BatchSummary, error) {
	paths, err := listPDFs(e.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	e.logger.Info("starting batch", "input_dir", e.cfg.InputDir, "documents", len(paths))

	results := make([]*DocumentResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := e.ProcessDocument(gctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &BatchSummary{}
	for _, res := range results {
		if res == nil {
			continue
		}
		summary.Processed++
		switch res.Outcome {
		case OutcomeSucceeded:
			summary.Succeeded++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeExcluded:
			summary.Excluded++
		case OutcomeManualReview:
			summary.ManualReview++
		case OutcomeRetained:
			summary.Retained++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	summary.Report = export.Report(e.reports)
	if e.writer.Total() > 0 {
		path := filepath.Join(e.cfg.OutputDir,
			fmt.Sprintf("extraction_results_%s.xlsx", e.now().Format("2006-01-02")))
		if err := e.writer.Save(path); err != nil {
			return nil, err
		}
		summary.WorkbookPath = path
	}

	e.logger.Info("batch finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"excluded", summary.Excluded,
		"manual_review", summary.ManualReview,
		"retained", summary.Retained,
	)
	return summary, nil
}

// ProcessDocument runs the per-document state machine. Errors that are
// per-document outcomes are reported in the result, not returned; the error
// return is reserved for infrastructure failures (state db, context).
func (e *engine) ProcessDocument(ctx context.Context, path string) (*DocumentResult, error) {
	docID := pdfdoc.ID(path)
	res := &DocumentResult{DocID: docID, Path: path}
	log := e.logger.With("doc_id", docID)

	if err := e.state.RecordOutcome(ctx, docID, store.StatusProcessing, "", 0, ""); err != nil {
		return nil, err
	}

	// A populated cache means a previous run got through rendering; resume
	// at extraction with the exact entries on disk.
	if e.cache.Exists(docID) {
		log.Info("cache found, resuming at extraction")
		return e.processFromCache(ctx, res)
	}

	doc, err := e.opener(path)
	if err != nil {
		log.Warn("unreadable document", "error", err)
		return e.fail(ctx, res, fmt.Errorf("opening document: %w", err))
	}
	if doc.PageCount() == 0 {
		return e.fail(ctx, res, ErrNoPages)
	}

	selection := e.selector.Select(ctx, doc)
	res.Strategy = selection.Strategy
	pages := selection.Pages
	if len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	log.Info("pages selected", "strategy", selection.Strategy, "pages", len(pages))

	rendered := 0
	for _, page := range pages {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		img, err := e.renderer.RenderPage(ctx, path, page)
		if err != nil {
			log.Warn("page render failed", "page", page, "error", err)
			continue
		}
		if _, err := e.cache.Write(docID, page, img); err != nil {
			return nil, fmt.Errorf("caching page %d: %w", page, err)
		}
		rendered++
	}
	if rendered == 0 {
		// Total rendering failure leaves nothing worth retrying.
		e.reclaimCache(docID)
		return e.fail(ctx, res, ErrNoImages)
	}
	res.Pages = pages

	return e.processFromCache(ctx, res)
}

// ResumeFromCache enters the pipeline directly at the extraction stage for
// a document whose images are already cached. The source PDF is not needed,
// so outcome routing of the original file is skipped.
func (e *engine) ResumeFromCache(ctx context.Context, docID string) (*DocumentResult, error) {
	res := &DocumentResult{DocID: docID}
	if !e.cache.Exists(docID) {
		res.Outcome = OutcomeFailed
		res.Err = ErrCacheMissing
		return res, nil
	}
	if err := e.state.RecordOutcome(ctx, docID, store.StatusProcessing, "", 0, ""); err != nil {
		return nil, err
	}
	return e.processFromCache(ctx, res)
}

// processFromCache is the shared AIProcessing → Validating → Archiving
// path for both the embedded flow and standalone resume.
func (e *engine) processFromCache(ctx context.Context, res *DocumentResult) (*DocumentResult, error) {
	docID := res.DocID
	log := e.logger.With("doc_id", docID)

	entries, err := e.cache.Entries(docID)
	if err != nil || len(entries) == 0 {
		return e.fail(ctx, res, ErrCacheMissing)
	}
	imagePaths := make([]string, len(entries))
	if res.Pages == nil {
		res.Pages = make([]int, len(entries))
		for i, entry := range entries {
			res.Pages[i] = entry.Page
		}
	}
	for i, entry := range entries {
		imagePaths[i] = entry.Path
	}

	result, err := e.extractor.Extract(ctx, docID, imagePaths)
	if err != nil {
		// The retry contract: cache survives, the source file stays put, and
		// a later run re-enters here directly.
		log.Warn("extraction failed, cache retained for retry", "error", err)
		res.Outcome = OutcomeRetained
		res.Err = fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		if rerr := e.state.RecordOutcome(ctx, docID, store.StatusFailed, string(OutcomeRetained), 0, err.Error()); rerr != nil {
			return nil, rerr
		}
		return res, nil
	}

	if !result.Valid {
		log.Info("document excluded", "reason", result.Reason)
		res.Outcome = OutcomeExcluded
		e.reclaimCache(docID)
		e.route(res, e.cfg.ExcludedDir)
		if err := e.state.RecordOutcome(ctx, docID, store.StatusDone, string(OutcomeExcluded), 0, result.Reason); err != nil {
			return nil, err
		}
		return res, nil
	}

	if result.Empty() {
		// Valid paper, zero records: likely a extraction miss, so the cache
		// is kept for a manual re-run.
		log.Info("no specimen data extracted, routing to manual review")
		res.Outcome = OutcomeManualReview
		e.route(res, e.cfg.ReviewDir)
		if err := e.state.RecordOutcome(ctx, docID, store.StatusDone, string(OutcomeManualReview), 0, "zero records"); err != nil {
			return nil, err
		}
		return res, nil
	}

	groups := e.validator.ValidateGroups(result)
	e.mu.Lock()
	e.writer.Add(result)
	for group, s := range groups {
		merged := e.reports[sheetFor(group)]
		merged.Merge(s)
		e.reports[sheetFor(group)] = merged
		res.Summary.Merge(s)
	}
	e.mu.Unlock()
	res.Records = res.Summary.Total
	log.Info("records validated",
		"records", res.Summary.Total,
		"ok", res.Summary.OK,
		"review", res.Summary.Review,
		"errors", res.Summary.Errors,
	)

	zipPath, batch, archiveErr, err := e.claimBatch(ctx, docID)
	if err != nil {
		return nil, err
	}
	if archiveErr != nil {
		// Archive failure is non-fatal: the data is already extracted, the
		// cache stays for a later archival pass, the counter holds.
		log.Warn("archival failed, cache retained", "error", archiveErr)
		res.Outcome = OutcomeSucceeded
		res.Warning = fmt.Sprintf("archival failed: %v", archiveErr)
		if rerr := e.state.RecordOutcome(ctx, docID, store.StatusDone, string(OutcomeSucceeded), batch, res.Warning); rerr != nil {
			return nil, rerr
		}
		return res, nil
	}
	res.ArchivePath = zipPath

	res.Outcome = OutcomeSucceeded
	if err := e.state.RecordOutcome(ctx, docID, store.StatusDone, string(OutcomeSucceeded), batch, ""); err != nil {
		return nil, err
	}
	log.Info("document done", "batch", batch, "archive", zipPath)
	return res, nil
}

// claimBatch archives the document's cache under the current batch number
// and advances the counter, as one critical section: without it, two
// parallel documents could both read batch N, archive into the same dataset
// directory, and double-advance past N+1. archiveErr reports a failed
// archive (the counter holds); err reports state-store failures.
func (e *engine) claimBatch(ctx context.Context, docID string) (zipPath string, batch int, archiveErr, err error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	batch, err = e.state.BatchNumber(ctx)
	if err != nil {
		return "", 0, nil, err
	}
	zipPath, archiveErr = e.archiver.Archive(e.cache, docID, batch, e.now())
	if archiveErr != nil {
		return "", batch, archiveErr, nil
	}
	_, err = e.state.AdvanceBatch(ctx)
	return zipPath, batch, nil, err
}

// reclaimCache removes a document's cache directory. A failed delete never
// changes the document's outcome, but it leaves stale images that a later
// run would mistake for a resume point, so it is logged like a failed move.
func (e *engine) reclaimCache(docID string) {
	if err := e.cache.Delete(docID); err != nil {
		e.logger.Warn("could not delete cache", "doc_id", docID, "error", err)
	}
}

// fail marks the document failed and routes the source to the failed
// directory. The cache has either never been created or been cleaned up by
// the caller.
func (e *engine) fail(ctx context.Context, res *DocumentResult, cause error) (*DocumentResult, error) {
	res.Outcome = OutcomeFailed
	res.Err = cause
	e.route(res, e.cfg.FailedDir)
	if err := e.state.RecordOutcome(ctx, res.DocID, store.StatusFailed, string(OutcomeFailed), 0, cause.Error()); err != nil {
		return nil, err
	}
	return res, nil
}

// route moves the source PDF to an outcome directory, when there is one.
func (e *engine) route(res *DocumentResult, destDir string) {
	if res.Path == "" || destDir == "" {
		return
	}
	if err := e.mover.Move(res.Path, destDir); err != nil {
		e.logger.Warn("could not move source file",
			"doc_id", res.DocID, "dest", destDir, "error", err)
	}
}

func sheetFor(g extract.Group) string {
	switch g {
	case extract.GroupCircular:
		return export.SheetCircular
	case extract.GroupRoundEnded:
		return export.SheetRoundEnded
	default:
		return export.SheetRectangular
	}
}

// listPDFs returns the PDF paths under dir in stable name order.
func listPDFs(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing input directory: %w", err)
	}
	var paths []string
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(it.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, it.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// diskMover moves files with a cross-device copy fallback.
type diskMover struct{}

func (diskMover) Move(path, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(destDir, filepath.Base(path))
	if err := os.Rename(path, dest); err == nil {
		return nil
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
