package model

import "time"

// swagger:model Skill
type Skill struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Icon          string    `gorm:"size:32" json:"icon"`
	Difficulty    string    `gorm:"size:32" json:"difficulty"`
	Duration      int       `json:"duration"` // Minutes
	QuestionCount int       `json:"questions"`
	Description   string    `gorm:"type:text" json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (Skill) TableName() string {
	return "skills"
}
