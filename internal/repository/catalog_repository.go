package repository

import (
	"context"
	"errors"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogRepository 读取技能、测评、编程题及其用例。
// 查询不到记录时返回 nil，不返回错误
type CatalogRepository struct {
	DB    *gorm.DB
	Cache *AssessmentCache
}

func NewCatalogRepository(db *gorm.DB, cache *AssessmentCache) *CatalogRepository {
	return &CatalogRepository{DB: db, Cache: cache}
}

func (r *CatalogRepository) ListSkills(ctx context.Context) ([]model.Skill, error) {
	var skills []model.Skill
	err := r.DB.WithContext(ctx).Order("created_at asc, id asc").Find(&skills).Error
	return skills, err
}

func (r *CatalogRepository) GetSkill(ctx context.Context, id string) (*model.Skill, error) {
	var s model.Skill
	err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) GetAssessmentRaw(ctx context.Context, skillID string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).First(&a, "skill_id = ?", skillID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// 题目数据损坏时拒绝评分，避免正确答案永远无法命中
	if err := a.Validate(); err != nil {
		logger.Log.Error("stored assessment is invalid", zap.String("skill_id", skillID), zap.Error(err))
		return nil, err
	}
	return &a, nil
}

// GetAssessmentPublic 优先读缓存，缓存中只存公开投影
func (r *CatalogRepository) GetAssessmentPublic(ctx context.Context, skillID string) (*model.PublicAssessment, error) {
	if r.Cache != nil {
		if cached, err := r.Cache.Get(ctx, skillID); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			logger.Log.Warn("assessment cache read failed", zap.String("skill_id", skillID), zap.Error(err))
		}
	}

	raw, err := r.GetAssessmentRaw(ctx, skillID)
	if err != nil || raw == nil {
		return nil, err
	}
	public := raw.Public()

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, skillID, public); err != nil {
			logger.Log.Warn("assessment cache write failed", zap.String("skill_id", skillID), zap.Error(err))
		}
	}
	return public, nil
}

func (r *CatalogRepository) GetProblem(ctx context.Context, problemID string) (*model.Problem, error) {
	var p model.Problem
	err := r.DB.WithContext(ctx).First(&p, "id = ?", problemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) GetHiddenTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	var tcs []model.TestCase
	err := r.DB.WithContext(ctx).
		Where("problem_id = ? AND is_hidden = ?", problemID, true).
		Order("ordinal asc, created_at asc").
		Find(&tcs).Error
	return tcs, err
}

func (r *CatalogRepository) GetAllTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	var tcs []model.TestCase
	err := r.DB.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("ordinal asc, created_at asc").
		Find(&tcs).Error
	return tcs, err
}

func (r *CatalogRepository) SaveAssessment(ctx context.Context, a *model.Assessment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := r.DB.WithContext(ctx).Save(a).Error; err != nil {
		return err
	}
	if r.Cache != nil {
		return r.Cache.Invalidate(ctx, a.SkillID)
	}
	return nil
}
