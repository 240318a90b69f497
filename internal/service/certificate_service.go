package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/logger"
	"skillsnap_backend/pkg/monitoring"

	"go.uber.org/zap"
)

type CertificateStore interface {
	Create(ctx context.Context, c *model.Certificate) error
	UpdateStorage(ctx context.Context, id string, storagePath, url *string) error
	FindByID(ctx context.Context, id string) (*model.Certificate, error)
	FindByVerifiedID(ctx context.Context, verifiedID string) (*model.Certificate, error)
}

// BlobStore 由 StorageService 实现
type BlobStore interface {
	Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
	PublicURL(objectPath string) string
}

// ArtifactRenderer 生成证书文件内容
type ArtifactRenderer interface {
	Render(c *model.Certificate) ([]byte, error)
}

type CertificateService struct {
	Repo         CertificateStore
	Renderer     ArtifactRenderer
	Blob         BlobStore
	SignedURLTTL time.Duration
	RefreshTTL   time.Duration
	now          func() time.Time
}

func NewCertificateService(repo CertificateStore, renderer ArtifactRenderer, blob BlobStore, signedTTL, refreshTTL time.Duration) *CertificateService {
	if signedTTL <= 0 {
		signedTTL = 7 * 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = time.Hour
	}
	return &CertificateService{
		Repo:         repo,
		Renderer:     renderer,
		Blob:         blob,
		SignedURLTTL: signedTTL,
		RefreshTTL:   refreshTTL,
		now:          time.Now,
	}
}

func certificatePath(id string) string {
	return fmt.Sprintf("certificates/%s.pdf", id)
}

// VerifiedID 格式为 {skill}-{user}-{base36 毫秒时间戳}
func VerifiedID(skillID, userID string, issuedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s", skillID, userID, strconv.FormatInt(issuedAt.UnixMilli(), 36))
}

// Issue 先写记录，再渲染、上传并回填链接。
// 记录创建之后的失败会同时返回已部分填充的证书和错误
func (s *CertificateService) Issue(ctx context.Context, userID, userName, skillID, skillName string) (*model.Certificate, error) {
	issuedAt := s.now().UTC()
	cert := &model.Certificate{
		UserID:     userID,
		UserName:   userName,
		SkillID:    skillID,
		SkillName:  skillName,
		IssuedAt:   issuedAt,
		VerifiedID: VerifiedID(skillID, userID, issuedAt),
	}
	if err := s.Repo.Create(ctx, cert); err != nil {
		monitoring.CertificateCounter.WithLabelValues("record_failed").Inc()
		return nil, fmt.Errorf("create certificate record: %w", err)
	}

	doc, err := s.Renderer.Render(cert)
	if err != nil {
		monitoring.CertificateCounter.WithLabelValues("render_failed").Inc()
		return cert, fmt.Errorf("render certificate %s: %w", cert.ID, err)
	}

	path := certificatePath(cert.ID)
	if err := s.Blob.Upload(ctx, path, bytes.NewReader(doc), int64(len(doc)), util.MimePDF); err != nil {
		monitoring.CertificateCounter.WithLabelValues("upload_failed").Inc()
		return cert, fmt.Errorf("upload certificate %s: %w", cert.ID, err)
	}

	link, err := s.Blob.SignedURL(ctx, path, s.SignedURLTTL)
	if err != nil {
		logger.Log.Warn("signed url unavailable, using public url", zap.String("certificate_id", cert.ID), zap.Error(err))
		link = s.Blob.PublicURL(path)
	}

	cert.StoragePath = &path
	if link != "" {
		cert.URL = &link
	}
	if err := s.Repo.UpdateStorage(ctx, cert.ID, cert.StoragePath, cert.URL); err != nil {
		monitoring.CertificateCounter.WithLabelValues("update_failed").Inc()
		return cert, fmt.Errorf("update certificate %s: %w", cert.ID, err)
	}

	monitoring.CertificateCounter.WithLabelValues("issued").Inc()
	logger.Log.Info("certificate issued",
		zap.String("certificate_id", cert.ID),
		zap.String("user_id", userID),
		zap.String("skill_id", skillID))
	return cert, nil
}

// Get 获取证书；有存储路径但没有 url 时临时签一个短期链接
func (s *CertificateService) Get(ctx context.Context, id string) (*model.Certificate, error) {
	cert, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, util.ErrCertificateNotFound
	}
	s.refreshURL(ctx, cert)
	return cert, nil
}

func (s *CertificateService) Verify(ctx context.Context, verifiedID string) (*model.Certificate, error) {
	cert, err := s.Repo.FindByVerifiedID(ctx, verifiedID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, util.ErrCertificateNotFound
	}
	s.refreshURL(ctx, cert)
	return cert, nil
}

// refreshURL 生成的链接不落库
func (s *CertificateService) refreshURL(ctx context.Context, cert *model.Certificate) {
	if cert.StoragePath == nil || cert.URL != nil || s.Blob == nil {
		return
	}
	link, err := s.Blob.SignedURL(ctx, *cert.StoragePath, s.RefreshTTL)
	if err != nil {
		logger.Log.Warn("failed to refresh certificate url", zap.String("certificate_id", cert.ID), zap.Error(err))
		return
	}
	cert.URL = &link
}
