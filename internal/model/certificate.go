package model

import "time"

// swagger:model Certificate
type Certificate struct {
	UUIDBase
	UserID      string    `gorm:"index;type:varchar(128)" json:"userId"`
	UserName    string    `gorm:"size:255" json:"userName"`
	SkillID     string    `gorm:"index;type:varchar(64)" json:"skillId"`
	SkillName   string    `gorm:"size:255" json:"skillName"`
	IssuedAt    time.Time `json:"issuedAt"`
	VerifiedID  string    `gorm:"uniqueIndex;type:varchar(255)" json:"verifiedId"`
	StoragePath *string   `gorm:"size:512" json:"storagePath"`
	URL         *string   `gorm:"type:text" json:"url"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// CertificateRef 评分接口返回给调用方的证书引用
type CertificateRef struct {
	ID         string  `json:"id"`
	URL        *string `json:"url"`
	VerifiedID string  `json:"verifiedId"`
}

func (c *Certificate) Ref() *CertificateRef {
	return &CertificateRef{ID: c.ID, URL: c.URL, VerifiedID: c.VerifiedID}
}
