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

func seedChunk(t *testing.T, repo *repository.ChunkRepository, docID, userID uint, page, index int, content string, vec []float32) {
	t.Helper()
	chunk := &model.Chunk{
		DocumentID: docID,
		UserID:     userID,
		Page:       page,
		ChunkIndex: index,
		Content:    content,
	}
	chunk.SetEmbedding(vec)
	if err := repo.Upsert(chunk); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
}

func TestRetrieveIsTenantScoped(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)

	// User 1 owns two chunks at different similarity to the query; user 2's
	// chunk is a perfect match and must still never appear for user 1.
	seedChunk(t, chunkRepo, 10, 1, 1, 0, "close match", []float32{0.9, 0.1, 0})
	seedChunk(t, chunkRepo, 10, 1, 2, 0, "weak match", []float32{0, 1, 0})
	seedChunk(t, chunkRepo, 20, 2, 1, 0, "other tenant", []float32{1, 0, 0})

	llm := &fakeLLM{embedFn: func(string) ([]float32, error) { return []float32{1, 0, 0}, nil }}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	got := svc.Retrieve(context.Background(), "what did the lease say", 1, 0)
	if len(got) != 2 {
		t.Fatalf("retrieved %d chunks, want 2", len(got))
	}
	for _, sc := range got {
		if sc.Chunk.UserID != 1 {
			t.Fatalf("retrieved a chunk owned by user %d", sc.Chunk.UserID)
		}
	}
	if got[0].Chunk.Content != "close match" {
		t.Fatalf("best chunk = %q, want the closest embedding first", got[0].Chunk.Content)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores must be descending: %f then %f", got[0].Score, got[1].Score)
	}
}

func TestRetrieveTopK(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	for i := 0; i < 8; i++ {
		seedChunk(t, chunkRepo, 10, 1, 1, i, "chunk", []float32{1, float32(i) * 0.1, 0})
	}

	llm := &fakeLLM{}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 3, nil)

	if got := svc.Retrieve(context.Background(), "q", 1, 0); len(got) != 3 {
		t.Fatalf("default top-k: got %d, want 3", len(got))
	}
	if got := svc.Retrieve(context.Background(), "q", 1, 5); len(got) != 5 {
		t.Fatalf("explicit k: got %d, want 5", len(got))
	}
}

func TestRetrieveDegradesToUngrounded(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	seedChunk(t, chunkRepo, 10, 1, 1, 0, "present", []float32{1, 0, 0})

	llm := &fakeLLM{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("embedding backend down")
	}}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	if got := svc.Retrieve(context.Background(), "q", 1, 0); got != nil {
		t.Fatalf("embed failure must yield no grounding, got %d chunks", len(got))
	}
}

func TestSynthesizeStructuredWithCitations(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	llm := &fakeLLM{completeFn: func([]ai.ChatMessage) (string, error) {
		return "```json\n{\"answer\": \"The lease bars subletting.\", \"sources\": [{\"document_id\": 10, \"page\": 3, \"score\": 0.91}]}\n```", nil
	}}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	retrieved := []ScoredChunk{{Chunk: model.Chunk{DocumentID: 10, Page: 3, Content: "no subletting"}, Score: 0.91}}
	answer, err := svc.Synthesize(context.Background(), "can I sublet", retrieved, nil, "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !answer.Structured {
		t.Fatalf("fenced JSON must still decode as structured")
	}
	if !strings.HasPrefix(answer.Text, "The lease bars subletting.") {
		t.Fatalf("answer text = %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "Sources:") || !strings.Contains(answer.Text, "document 10, page 3") {
		t.Fatalf("citations missing from rendered answer: %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].DocumentID != 10 {
		t.Fatalf("sources = %+v", answer.Sources)
	}
}

func TestSynthesizeRawFallback(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	llm := &fakeLLM{completeFn: func([]ai.ChatMessage) (string, error) {
		return "I cannot answer in JSON today.", nil
	}}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	answer, err := svc.Synthesize(context.Background(), "q", nil, nil, "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer.Structured {
		t.Fatalf("plain text must not report structured")
	}
	if answer.Text != "I cannot answer in JSON today." {
		t.Fatalf("raw text must pass through verbatim, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("raw fallback must carry no sources")
	}
}

func TestSynthesizeUngroundedPrompt(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)

	var captured string
	llm := &fakeLLM{completeFn: func(messages []ai.ChatMessage) (string, error) {
		captured = messages[len(messages)-1].Content
		return `{"answer": "General guidance only.", "sources": []}`, nil
	}}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	history := []model.Message{{Role: "user", Content: "earlier question"}}
	answer, err := svc.Synthesize(context.Background(), "next question", nil, history, "Spanish")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !answer.Structured {
		t.Fatalf("expected structured answer")
	}
	if !strings.Contains(captured, "No document excerpts are available") {
		t.Fatalf("ungrounded prompt must say so, got: %q", captured)
	}
	if !strings.Contains(captured, "earlier question") {
		t.Fatalf("history must be woven into the prompt")
	}
	if !strings.Contains(captured, "Respond in Spanish.") {
		t.Fatalf("language directive missing: %q", captured)
	}
}

func TestSynthesizeGenerationFailure(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	llm := &fakeLLM{completeFn: func([]ai.ChatMessage) (string, error) {
		return "", errors.New("provider 500")
	}}
	svc := NewAnswerService(chunkRepo, llm, ai.ChatConfig{}, ai.EmbeddingConfig{}, 5, nil)

	if _, err := svc.Synthesize(context.Background(), "q", nil, nil, ""); err == nil {
		t.Fatalf("generation failure must surface as an error")
	}
}
