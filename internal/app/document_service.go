package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"widgetrag/internal/cache"
	"widgetrag/internal/chunker"
	"widgetrag/internal/embedding"
	"widgetrag/internal/logger"
	"widgetrag/internal/metrics"
	"widgetrag/internal/model"
	"widgetrag/internal/pkg/textextract"
	"widgetrag/internal/platform/rabbitmq"
	"widgetrag/internal/repository"
)

const defaultEmbeddingBatchSize = 10

// JobPublisher hands document processing to the background worker.
type JobPublisher interface {
	PublishDocumentJob(ctx context.Context, documentID uint, reason string) (string, error)
}

// Locker serializes work on one document. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, documentID uint) (func(context.Context) error, error)
}

type DocumentServiceConfig struct {
	BatchSize      int
	EmbeddingModel string
}

type DocumentService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	publisher JobPublisher
	locker    Locker
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	cfg       DocumentServiceConfig
	logger    *zap.Logger
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	publisher JobPublisher,
	locker Locker,
	ch *chunker.Chunker,
	embedder embedding.Embedder,
	cfg DocumentServiceConfig,
	log *zap.Logger,
) *DocumentService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbeddingBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		publisher: publisher,
		locker:    locker,
		chunker:   ch,
		embedder:  embedder,
		cfg:       cfg,
		logger:    log,
	}
}

type CreateDocumentInput struct {
	OwnerID     uint
	Name        string
	ContentType string
	Content     string
}

// Create stores the document as processing and queues it for indexing.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*model.Document, error) {
	if input.OwnerID == 0 {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrEmptyDocument
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	doc := &model.Document{
		OwnerID:     input.OwnerID,
		Name:        name,
		ContentType: contentType,
		Content:     input.Content,
		Status:      model.DocumentStatusProcessing,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, doc, rabbitmq.JobReasonUpload); err != nil {
		return nil, err
	}
	return doc, nil
}

// Upload extracts text from a file and then behaves like Create.
func (s *DocumentService) Upload(ctx context.Context, ownerID uint, filename string, r io.Reader) (*model.Document, error) {
	if !textextract.Supported(filename) {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(filename), ErrUnsupportedFile)
	}
	text, err := textextract.Extract(filename, r)
	if err != nil {
		if errors.Is(err, textextract.ErrUnsupportedType) {
			return nil, fmt.Errorf("%s: %w", filepath.Ext(filename), ErrUnsupportedFile)
		}
		return nil, fmt.Errorf("extract %s: %w: %w", filename, ErrInvalidInput, err)
	}
	return s.Create(ctx, CreateDocumentInput{
		OwnerID:     ownerID,
		Name:        filepath.Base(filename),
		ContentType: contentTypeFor(filename),
		Content:     text,
	})
}

func (s *DocumentService) enqueue(ctx context.Context, doc *model.Document, reason string) error {
	jobID, err := s.publisher.PublishDocumentJob(ctx, doc.ID, reason)
	if err != nil {
		msg := "could not queue document for processing"
		if markErr := s.docRepo.MarkError(ctx, doc.ID, msg); markErr != nil {
			s.logger.Error("mark document error failed", zap.Uint("document_id", doc.ID), zap.Error(markErr))
		}
		doc.Status = model.DocumentStatusError
		doc.ErrorMessage = msg
		return fmt.Errorf("%w: %w", ErrJobEnqueue, err)
	}
	logger.FromContext(ctx, s.logger).Info("document job queued",
		zap.Uint("document_id", doc.ID),
		zap.String("job_id", jobID),
		zap.String("reason", reason),
	)
	return nil
}

func (s *DocumentService) List(ctx context.Context, ownerID uint) ([]model.Document, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByOwner(ctx, ownerID)
}

func (s *DocumentService) Get(ctx context.Context, actor Actor, id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.OwnerID != actor.UserID && !actor.isAdmin() {
		// Hide other users' documents entirely.
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) Chunks(ctx context.Context, actor Actor, id uint) ([]model.DocumentChunk, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.chunkRepo.GetChunksForDocument(ctx, id)
}

// Delete removes the document together with its chunks.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	deleted, err := s.docRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDocumentNotFound
	}
	return nil
}

// Reprocess drops every chunk of the document under its lock and queues a
// fresh indexing job. Only the owner or an admin may reprocess.
func (s *DocumentService) Reprocess(ctx context.Context, actor Actor, id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.OwnerID != actor.UserID && !actor.isAdmin() {
		return nil, ErrForbidden
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	removed, resetErr := s.docRepo.ResetForReprocess(ctx, id)
	s.release(ctx, id, release)
	if resetErr != nil {
		return nil, resetErr
	}
	logger.FromContext(ctx, s.logger).Info("document reset for reprocessing",
		zap.Uint("document_id", id),
		zap.Int64("chunks_removed", removed),
	)

	doc, err = s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if err := s.enqueue(ctx, doc, rabbitmq.JobReasonReprocess); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReprocessFailure names a document ReprocessMany could not queue.
type ReprocessFailure struct {
	DocumentID uint   `json:"document_id"`
	Error      string `json:"error"`
}

type ReprocessResult struct {
	Queued []uint             `json:"queued"`
	Failed []ReprocessFailure `json:"failed"`
}

// ReprocessMany reprocesses the caller's own documents: every one of them
// when all is set, otherwise those listed in ids. Ids the caller does not
// own are reported as not found. One failure does not stop the rest.
func (s *DocumentService) ReprocessMany(ctx context.Context, actor Actor, ids []uint, all bool) (*ReprocessResult, error) {
	if actor.UserID == 0 || (!all && len(ids) == 0) {
		return nil, ErrInvalidInput
	}
	owned, err := s.docRepo.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	targets := make([]uint, 0, len(owned))
	result := &ReprocessResult{Queued: []uint{}, Failed: []ReprocessFailure{}}
	if all {
		for _, d := range owned {
			targets = append(targets, d.ID)
		}
	} else {
		mine := make(map[uint]bool, len(owned))
		for _, d := range owned {
			mine[d.ID] = true
		}
		seen := make(map[uint]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if !mine[id] {
				result.Failed = append(result.Failed, ReprocessFailure{DocumentID: id, Error: ErrDocumentNotFound.Error()})
				continue
			}
			targets = append(targets, id)
		}
	}

	for _, id := range targets {
		if _, err := s.Reprocess(ctx, actor, id); err != nil {
			result.Failed = append(result.Failed, ReprocessFailure{DocumentID: id, Error: err.Error()})
			continue
		}
		result.Queued = append(result.Queued, id)
	}
	logger.FromContext(ctx, s.logger).Info("bulk reprocess finished",
		zap.Uint("owner_id", actor.UserID),
		zap.Int("queued", len(result.Queued)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// ProcessDocument is the worker entry point: chunk, embed, store, then mark
// the document indexed. Any failure other than a busy lock or a cancelled ctx
// marks the document as error before it is returned, so an acked job never
// leaves the document in processing. ErrDocumentBusy means retry later.
func (s *DocumentService) ProcessDocument(ctx context.Context, id uint) error {
	log := logger.FromContext(ctx, s.logger).With(zap.Uint("document_id", id))

	release, err := s.acquire(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDocumentBusy) {
			return err
		}
		return s.fail(ctx, log, id, err)
	}
	defer s.release(ctx, id, release)

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return s.fail(ctx, log, id, err)
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.Status == model.DocumentStatusIndexed && doc.EmbeddingProcessed {
		log.Info("document already indexed, skipping")
		return nil
	}

	start := time.Now()
	count, err := s.index(ctx, doc)
	if err != nil {
		return s.fail(ctx, log, id, err)
	}
	metrics.DocumentsProcessedTotal.WithLabelValues(model.DocumentStatusIndexed).Inc()
	metrics.ChunksWrittenTotal.Add(float64(count))
	log.Info("document indexed", zap.Int("chunks", count), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// fail records cause on the document and returns it. A cancelled ctx means
// shutdown; the job is requeued and the document left as is.
func (s *DocumentService) fail(ctx context.Context, log *zap.Logger, id uint, cause error) error {
	if ctx.Err() != nil {
		log.Info("document processing interrupted", zap.Error(cause))
		return cause
	}
	metrics.DocumentsProcessedTotal.WithLabelValues(model.DocumentStatusError).Inc()

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if markErr := s.docRepo.MarkError(markCtx, id, cause.Error()); markErr != nil {
		log.Error("mark document error failed", zap.Error(markErr))
	}
	log.Warn("document processing failed", zap.Error(cause))
	return cause
}

func (s *DocumentService) index(ctx context.Context, doc *model.Document) (int, error) {
	pieces, err := s.chunker.Split(doc.Content)
	if err != nil {
		return 0, err
	}
	if len(pieces) == 0 {
		return 0, ErrEmptyDocument
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors := make([]model.Vector, 0, len(pieces))
	for i := 0; i < len(texts); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", i, end-1, err)
		}
		vectors = append(vectors, batch...)
	}

	inputs := make([]repository.ChunkInput, len(pieces))
	for i, p := range pieces {
		meta, err := json.Marshal(model.ChunkMetadata{
			Model:      s.cfg.EmbeddingModel,
			Dimensions: len(vectors[i]),
			Start:      p.Start,
			End:        p.End,
			ChunkSize:  s.chunker.Size(),
			Overlap:    s.chunker.Overlap(),
		})
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata failed: %w", err)
		}
		inputs[i] = repository.ChunkInput{
			Index:     p.Index,
			Content:   p.Text,
			Embedding: vectors[i],
			Metadata:  meta,
		}
	}
	if err := s.chunkRepo.SaveChunks(ctx, doc.ID, inputs); err != nil {
		return 0, err
	}
	if err := s.docRepo.MarkIndexed(ctx, doc.ID, model.Mean(vectors), len(inputs)); err != nil {
		return 0, err
	}
	return len(inputs), nil
}

func (s *DocumentService) acquire(ctx context.Context, id uint) (func(context.Context) error, error) {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, cache.ErrLockBusy) {
			return nil, fmt.Errorf("%w: %w", ErrDocumentBusy, err)
		}
		return nil, fmt.Errorf("acquire document lock: %w", err)
	}
	return release, nil
}

func (s *DocumentService) release(ctx context.Context, id uint, release func(context.Context) error) {
	// Release even when the caller's context is already cancelled.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := release(releaseCtx); err != nil {
		s.logger.Warn("release document lock failed", zap.Uint("document_id", id), zap.Error(err))
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".html", ".htm":
		return "text/html"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	default:
		return "text/plain"
	}
}
