package repository

import (
	"context"

	"skillsnap_backend/internal/model"

	"gorm.io/gorm"
)

// SubmissionRepository 只追加，每次评分都插入新记录
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) ListByUserAndSkill(ctx context.Context, userID, skillID string, limit int) ([]model.Submission, error) {
	var ss []model.Submission
	query := r.DB.WithContext(ctx).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&ss).Error
	return ss, err
}
