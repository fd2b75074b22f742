package recommendationctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"wordbridge/src/recommendation"
)

type Recommendation struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	UploadID        int64     `gorm:"not null;index;column:upload_id" json:"upload_id"`
	StudentID       int64     `gorm:"not null;index;column:student_id" json:"student_id"`
	Word            string    `gorm:"not null" json:"word"`
	Definition      string    `json:"definition"`
	Rationale       string    `json:"rationale"`
	DifficultyScore int       `gorm:"not null" json:"difficulty_score"`
	ExampleSentence string    `json:"example_sentence"`
	Status          string    `gorm:"not null;default:pending" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}

type RecommendationService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewRecommendationService(db *gorm.DB) (*RecommendationService, error) {
	node, err := snowflake.NewNode(2)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &RecommendationService{
		db:        db,
		snowflake: node,
	}, nil
}

// ReplaceForUpload deletes any prior rows for the upload and inserts the new
// batch, in one transaction. Redelivered jobs therefore never append
// duplicate rows, and a crash mid-replacement rolls back to the prior batch.
func (s *RecommendationService) ReplaceForUpload(ctx context.Context, studentID, uploadID int64, candidates []recommendation.Candidate) error {
	rows := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		status := c.Status
		if status == "" {
			status = recommendation.StatusPending
		}
		rows = append(rows, Recommendation{
			ID:              s.snowflake.Generate().Int64(),
			UploadID:        uploadID,
			StudentID:       studentID,
			Word:            c.Word,
			Definition:      c.Definition,
			Rationale:       c.Rationale,
			DifficultyScore: c.DifficultyScore,
			ExampleSentence: c.ExampleSentence,
			Status:          status,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", uploadID).Delete(&Recommendation{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace recommendations for upload %d: %v", uploadID, err)
	}
	return nil
}

func (s *RecommendationService) GetByUploadID(ctx context.Context, uploadID int64) ([]Recommendation, error) {
	var rows []Recommendation
	result := s.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Order("difficulty_score ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get recommendations: %v", result.Error)
	}
	return rows, nil
}

func (s *RecommendationService) DeleteForUpload(ctx context.Context, uploadID int64) error {
	result := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).Delete(&Recommendation{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete recommendations: %v", result.Error)
	}
	return nil
}
