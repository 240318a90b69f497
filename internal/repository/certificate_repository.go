package repository

import (
	"context"
	"errors"

	"skillsnap_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(ctx context.Context, c *model.Certificate) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CertificateRepository) UpdateStorage(ctx context.Context, id string, storagePath, url *string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"storage_path": storagePath, "url": url}).Error
}

func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CertificateRepository) FindByVerifiedID(ctx context.Context, verifiedID string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.WithContext(ctx).First(&c, "verified_id = ?", verifiedID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
