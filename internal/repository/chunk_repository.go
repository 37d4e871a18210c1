package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lexibot/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Upsert writes a chunk keyed on (document_id, page, chunk_index) so a retried
// ingestion never duplicates rows.
func (r *ChunkRepository) Upsert(chunk *model.Chunk) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "document_id"}, {Name: "page"}, {Name: "chunk_index"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"content", "embedding"}),
	}).Create(chunk).Error
	if err != nil {
		return fmt.Errorf("upsert chunk failed: %w", err)
	}
	return nil
}

// ListByUserID returns every chunk owned by the user. The tenant filter lives
// in the query predicate; callers never see another user's rows.
func (r *ChunkRepository) ListByUserID(userID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("user_id = ?", userID).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by user failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var n int64
	if err := r.db.Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
