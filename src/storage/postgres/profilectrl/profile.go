package profilectrl

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type StudentProfile struct {
	StudentID       int64      `gorm:"primaryKey;column:student_id" json:"student_id"`
	GradeLevel      int        `gorm:"not null" json:"grade_level"`
	VocabularyLevel *int       `json:"vocabulary_level,omitempty"`
	LastAnalyzedAt  *time.Time `json:"last_analyzed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

// BaselineWord is one entry of the per-grade vocabulary presumed already
// known, used to keep the model from recommending duplicates.
type BaselineWord struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	GradeLevel int    `gorm:"not null;index" json:"grade_level"`
	Word       string `gorm:"not null" json:"word"`
}

func (BaselineWord) TableName() string {
	return "baseline_words"
}

type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	return &ProfileService{db: db}, nil
}

func (s *ProfileService) GetByStudentID(ctx context.Context, studentID int64) (*StudentProfile, error) {
	var profile StudentProfile
	result := s.db.WithContext(ctx).First(&profile, "student_id = ?", studentID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student profile: %v", result.Error)
	}
	return &profile, nil
}

func (s *ProfileService) LoadBaselineWords(ctx context.Context, gradeLevel, limit int) ([]string, error) {
	var words []string
	result := s.db.WithContext(ctx).
		Model(&BaselineWord{}).
		Where("grade_level = ?", gradeLevel).
		Order("word ASC").
		Limit(limit).
		Pluck("word", &words)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to load baseline words: %v", result.Error)
	}
	return words, nil
}

func (s *ProfileService) UpdateVocabularyLevel(ctx context.Context, studentID int64, level int) error {
	result := s.db.WithContext(ctx).
		Model(&StudentProfile{}).
		Where("student_id = ?", studentID).
		Update("vocabulary_level", level)
	if result.Error != nil {
		return fmt.Errorf("failed to update vocabulary level: %v", result.Error)
	}
	return nil
}

func (s *ProfileService) MarkAnalyzed(ctx context.Context, studentID int64, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&StudentProfile{}).
		Where("student_id = ?", studentID).
		Update("last_analyzed_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark profile analyzed: %v", result.Error)
	}
	return nil
}
