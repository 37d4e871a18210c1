package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"lexibot/internal/ai"
	"lexibot/internal/model"
	"lexibot/internal/repository"
)

const defaultTopK = 5

// LLMClient is the surface of the opaque generation/embedding collaborators.
type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
}

// ScoredChunk is one retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk model.Chunk `json:"chunk"`
	Score float32     `json:"score"`
}

// SourceRef is one citation in a structured answer.
type SourceRef struct {
	DocumentID uint    `json:"document_id"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

// Answer is the decoded generation output. Structured reports whether the
// model honored the JSON contract; when it did not, Text carries the raw
// response verbatim and Sources is empty.
type Answer struct {
	Structured bool        `json:"structured"`
	Text       string      `json:"text"`
	Sources    []SourceRef `json:"sources,omitempty"`
}

// AnswerService retrieves tenant-scoped grounding chunks and synthesizes a
// cited answer from them.
type AnswerService struct {
	chunkRepo *repository.ChunkRepository
	llm       LLMClient
	chatCfg   ai.ChatConfig
	embCfg    ai.EmbeddingConfig
	topK      int
	log       *zap.Logger
}

func NewAnswerService(
	chunkRepo *repository.ChunkRepository,
	llm LLMClient,
	chatCfg ai.ChatConfig,
	embCfg ai.EmbeddingConfig,
	topK int,
	log *zap.Logger,
) *AnswerService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AnswerService{
		chunkRepo: chunkRepo,
		llm:       llm,
		chatCfg:   chatCfg,
		embCfg:    embCfg,
		topK:      topK,
		log:       log,
	}
}

// Retrieve embeds the question once and returns the caller's top-k chunks by
// cosine similarity, best first. The tenant filter is part of the chunk query
// itself, so another user's rows never enter the candidate set. Any failure
// (embedding backend, store) degrades to an empty result: no grounding, not a
// hard error.
func (s *AnswerService) Retrieve(ctx context.Context, question string, userID uint, k int) []ScoredChunk {
	if k <= 0 {
		k = s.topK
	}

	queryEmb, err := s.llm.Embed(ctx, s.embCfg, question)
	if err != nil {
		s.log.Warn("query embedding failed, answering ungrounded", zap.Error(err))
		return nil
	}

	candidates, err := s.chunkRepo.ListByUserID(userID)
	if err != nil {
		s.log.Warn("chunk store unavailable, answering ungrounded", zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	scored := make([]ScoredChunk, len(candidates))
	for i := range candidates {
		scored[i] = ScoredChunk{
			Chunk: candidates[i],
			Score: cosineSimilarity(queryEmb, candidates[i].EmbeddingVector()),
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// Synthesize builds one grounded prompt from the question, retrieved chunks
// and recent conversation turns, calls the generation service once, and
// decodes the structured answer. A generation failure is the only error this
// returns; malformed output falls back to the raw text.
func (s *AnswerService) Synthesize(
	ctx context.Context,
	question string,
	retrieved []ScoredChunk,
	history []model.Message,
	language string,
) (*Answer, error) {
	if strings.TrimSpace(language) == "" {
		language = "English"
	}

	prompt := buildGroundedPrompt(question, retrieved, history, language)
	messages := []ai.ChatMessage{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: prompt},
	}

	raw, err := s.llm.Complete(ctx, s.chatCfg, messages)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	answer := decodeAnswer(raw)
	if answer.Structured && len(answer.Sources) > 0 {
		answer.Text += renderCitations(answer.Sources)
	}
	return &answer, nil
}

const synthesisSystemPrompt = "You are a careful legal research assistant. " +
	"Answer strictly from the provided document excerpts when any are given. " +
	"Reply with a single JSON object of the form " +
	`{"answer": "...", "sources": [{"document_id": 1, "page": 1, "score": 0.0}]}` +
	" and nothing else. Cite only excerpts you actually used; use an empty sources list otherwise."

func buildGroundedPrompt(question string, retrieved []ScoredChunk, history []model.Message, language string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(retrieved) == 0 {
		b.WriteString("No document excerpts are available for this question. ")
		b.WriteString("Answer from general knowledge and state clearly that no uploaded documents support the answer.\n\n")
	} else {
		b.WriteString("Document excerpts:\n")
		for _, sc := range retrieved {
			fmt.Fprintf(&b, "[doc %d page %d score %.3f]\n%s\n\n",
				sc.Chunk.DocumentID, sc.Chunk.Page, sc.Score, sc.Chunk.Content)
		}
	}

	fmt.Fprintf(&b, "Respond in %s.\n\nQuestion: %s", language, question)
	return b.String()
}

// decodeAnswer attempts a strict parse of the span between the first '{' and
// the last '}' in the raw response; generation services are not guaranteed to
// honor formatting instructions, so anything unparseable is returned verbatim.
func decodeAnswer(raw string) Answer {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return Answer{Structured: false, Text: trimmed}
	}

	var parsed struct {
		Answer  string      `json:"answer"`
		Sources []SourceRef `json:"sources"`
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err != nil || strings.TrimSpace(parsed.Answer) == "" {
		return Answer{Structured: false, Text: trimmed}
	}
	return Answer{Structured: true, Text: strings.TrimSpace(parsed.Answer), Sources: parsed.Sources}
}

func renderCitations(sources []SourceRef) string {
	var b strings.Builder
	b.WriteString("\n\nSources:\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "- document %d, page %d (score %.2f)\n", src.DocumentID, src.Page, src.Score)
	}
	return strings.TrimRight(b.String(), "\n")
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
