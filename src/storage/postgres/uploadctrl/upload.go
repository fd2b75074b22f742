package uploadctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UploadStatus tracks where an upload is in the processing pipeline.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
)

type Upload struct {
	ID          int64        `gorm:"primaryKey" json:"id"`
	StudentID   int64        `gorm:"not null;index;column:student_id" json:"student_id"`
	Filename    string       `gorm:"not null" json:"filename"`
	StorageURL  string       `gorm:"not null;column:storage_url" json:"storage_url"` // bucket name + object name
	Status      UploadStatus `gorm:"not null;default:pending" json:"status"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Upload) TableName() string {
	return "uploads"
}

type UploadService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewUploadService(db *gorm.DB) (*UploadService, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &UploadService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *UploadService) GetByID(ctx context.Context, id int64) (*Upload, error) {
	var upload Upload
	result := s.db.WithContext(ctx).First(&upload, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get upload: %v", result.Error)
	}
	return &upload, nil
}

func (s *UploadService) Create(ctx context.Context, studentID int64, filename, storageURL string) (*Upload, error) {
	upload := &Upload{
		ID:         s.snowflake.Generate().Int64(),
		StudentID:  studentID,
		Filename:   filename,
		StorageURL: storageURL,
		Status:     StatusPending,
	}

	result := s.db.WithContext(ctx).Create(upload)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create upload: %v", result.Error)
	}

	return upload, nil
}

// UpdateStatus moves an upload along its state machine. processedAt is set
// only for the terminal states. Updating an ID with no row is a no-op, which
// keeps redelivered jobs for deleted uploads harmless.
func (s *UploadService) UpdateStatus(ctx context.Context, id int64, status UploadStatus, processedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if processedAt != nil {
		updates["processed_at"] = processedAt
	}

	result := s.db.WithContext(ctx).Model(&Upload{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update upload status: %v", result.Error)
	}
	return nil
}

// ListStalePending returns uploads that never left pending, oldest first.
// These are jobs whose enqueue was lost and need re-queuing.
func (s *UploadService) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Upload, error) {
	var uploads []Upload
	cutoff := time.Now().Add(-olderThan)

	result := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&uploads)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stale pending uploads: %v", result.Error)
	}
	return uploads, nil
}
