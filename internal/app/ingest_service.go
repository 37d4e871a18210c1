package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lexibot/internal/ai"
	"lexibot/internal/model"
	"lexibot/internal/pkg/chunker"
	"lexibot/internal/repository"
)

var (
	// ErrNoContent means extraction produced zero pages or only empty ones.
	ErrNoContent = errors.New("document contains no extractable content")

	ErrDocumentNotFound = errors.New("document not found")
)

// PageExtractor converts raw file bytes into normalized per-page text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte, fileType string) ([]string, error)
}

// IngestService turns an uploaded file into embedded, tenant-scoped chunks.
// Partial ingestion is preferable to total failure: a chunk whose embedding
// or write fails is skipped and logged, and the result reports the achieved
// chunk count so callers can detect degradation.
type IngestService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	extractor PageExtractor
	llm       LLMClient
	embCfg    ai.EmbeddingConfig
	log       *zap.Logger

	chunkSize    int
	chunkOverlap int
	embedWorkers int
}

type IngestResult struct {
	DocumentID uint   `json:"document_id"`
	Filename   string `json:"filename"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	extractor PageExtractor,
	llm LLMClient,
	embCfg ai.EmbeddingConfig,
	chunkSize, chunkOverlap, embedWorkers int,
	log *zap.Logger,
) *IngestService {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	if chunkOverlap <= 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunker.DefaultOverlap
	}
	if embedWorkers <= 0 {
		embedWorkers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		extractor:    extractor,
		llm:          llm,
		embCfg:       embCfg,
		log:          log,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embedWorkers: embedWorkers,
	}
}

type chunkJob struct {
	page    int
	index   int
	content string
}

// Ingest extracts pages, persists the document record, then chunks and embeds
// every page with bounded fan-out. Embedding calls across chunks are
// independent; results are keyed by (page, chunk_index), not call order.
func (s *IngestService) Ingest(ctx context.Context, data []byte, filename string, userID uint, fileType string) (*IngestResult, error) {
	if userID == 0 || len(data) == 0 {
		return nil, ErrInvalidInput
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "untitled"
	}

	pages, err := s.extractor.ExtractPages(ctx, data, fileType)
	if err != nil {
		return nil, err
	}

	var jobs []chunkJob
	for pageIdx, pageText := range pages {
		for i, piece := range chunker.Split(pageText, s.chunkSize, s.chunkOverlap) {
			jobs = append(jobs, chunkJob{page: pageIdx + 1, index: i, content: piece})
		}
	}
	if len(jobs) == 0 {
		return nil, ErrNoContent
	}

	doc := &model.Document{
		UserID:    userID,
		Filename:  filename,
		PageCount: len(pages),
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		stored int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedWorkers)
	for _, job := range jobs {
		g.Go(func() error {
			vec, err := s.llm.Embed(gctx, s.embCfg, job.content)
			if err != nil {
				s.log.Warn("embed chunk failed, skipping",
					zap.Uint("document_id", doc.ID),
					zap.Int("page", job.page),
					zap.Int("chunk_index", job.index),
					zap.Error(err))
				return nil
			}

			chunk := &model.Chunk{
				DocumentID: doc.ID,
				UserID:     userID,
				Page:       job.page,
				ChunkIndex: job.index,
				Content:    job.content,
			}
			chunk.SetEmbedding(vec)
			if err := s.chunkRepo.Upsert(chunk); err != nil {
				s.log.Warn("store chunk failed, skipping",
					zap.Uint("document_id", doc.ID),
					zap.Int("page", job.page),
					zap.Int("chunk_index", job.index),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			stored++
			mu.Unlock()
			return nil
		})
	}
	// Workers swallow their own failures; Wait only orders the fan-in.
	_ = g.Wait()

	if stored < len(jobs) {
		s.log.Warn("document partially ingested",
			zap.Uint("document_id", doc.ID),
			zap.Int("chunks_stored", stored),
			zap.Int("chunks_expected", len(jobs)))
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Pages:      len(pages),
		Chunks:     stored,
	}, nil
}

func (s *IngestService) ListDocuments(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

// DeleteDocument removes a document and its chunks; ownership is checked
// before anything is touched.
func (s *IngestService) DeleteDocument(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	return s.docRepo.DeleteByIDAndUserID(doc.ID, userID)
}
