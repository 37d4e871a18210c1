package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lexibot/internal/ai"
	"lexibot/internal/model"
	"lexibot/internal/repository"
)

// fakeExtractor returns canned pages regardless of input.
type fakeExtractor struct {
	pages []string
	err   error
}

func (f *fakeExtractor) ExtractPages(context.Context, []byte, string) ([]string, error) {
	return f.pages, f.err
}

func TestIngestStoresChunksPerPage(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	extractor := &fakeExtractor{pages: []string{"page one facts", "page two facts"}}
	llm := &fakeLLM{}

	svc := NewIngestService(docRepo, chunkRepo, extractor, llm, ai.EmbeddingConfig{}, 1200, 200, 2, nil)

	result, err := svc.Ingest(context.Background(), []byte("%PDF"), "lease.pdf", 1, "pdf")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Pages != 2 {
		t.Fatalf("pages = %d, want 2", result.Pages)
	}
	if result.Chunks != 2 {
		t.Fatalf("chunks = %d, want 2", result.Chunks)
	}

	var chunks []model.Chunk
	if err := db.Where("document_id = ?", result.DocumentID).Order("page ASC").Find(&chunks).Error; err != nil {
		t.Fatalf("load chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("stored chunks = %d, want 2", len(chunks))
	}
	for _, c := range chunks {
		if c.UserID != 1 {
			t.Fatalf("chunk must inherit the owner, got user %d", c.UserID)
		}
		if len(c.EmbeddingVector()) == 0 {
			t.Fatalf("chunk %d has no embedding", c.ID)
		}
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Fatalf("pages are 1-based: got %d and %d", chunks[0].Page, chunks[1].Page)
	}
}

func TestIngestPartialOnEmbedFailure(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	extractor := &fakeExtractor{pages: []string{"good page", "poison page"}}
	llm := &fakeLLM{
		embedFn: func(text string) ([]float32, error) {
			if strings.Contains(text, "poison") {
				return nil, errors.New("embedding backend rejected input")
			}
			return []float32{0.5, 0.5}, nil
		},
	}

	svc := NewIngestService(docRepo, chunkRepo, extractor, llm, ai.EmbeddingConfig{}, 1200, 200, 2, nil)

	result, err := svc.Ingest(context.Background(), []byte("%PDF"), "lease.pdf", 1, "pdf")
	if err != nil {
		t.Fatalf("partial ingestion must not fail the upload: %v", err)
	}
	if result.Pages != 2 {
		t.Fatalf("pages = %d, want 2", result.Pages)
	}
	if result.Chunks != 1 {
		t.Fatalf("chunks = %d, want 1 after one embed failure", result.Chunks)
	}
}

func TestIngestNoContent(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	extractor := &fakeExtractor{pages: []string{"", ""}}

	svc := NewIngestService(docRepo, chunkRepo, extractor, &fakeLLM{}, ai.EmbeddingConfig{}, 1200, 200, 2, nil)

	_, err := svc.Ingest(context.Background(), []byte("%PDF"), "scan.pdf", 1, "pdf")
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("got %v, want ErrNoContent", err)
	}

	// No document row may survive a contentless upload.
	docs, err := svc.ListDocuments(1)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	extractor := &fakeExtractor{pages: []string{"page one"}}

	svc := NewIngestService(docRepo, chunkRepo, extractor, &fakeLLM{}, ai.EmbeddingConfig{}, 1200, 200, 2, nil)

	result, err := svc.Ingest(context.Background(), []byte("%PDF"), "lease.pdf", 4, "pdf")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := svc.DeleteDocument(9, result.DocumentID); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("delete as other user: got %v, want ErrDocumentNotFound", err)
	}

	if err := svc.DeleteDocument(4, result.DocumentID); err != nil {
		t.Fatalf("delete as owner: %v", err)
	}

	var chunkCount int64
	if err := db.Model(&model.Chunk{}).Where("document_id = ?", result.DocumentID).Count(&chunkCount).Error; err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if chunkCount != 0 {
		t.Fatalf("chunks must cascade with the document, %d remain", chunkCount)
	}
}
