package model

import "gorm.io/datatypes"

type QuestionOutcome struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Message    string `json:"message,omitempty"`
}

// swagger:model Submission
type Submission struct {
	UUIDBase
	UserID         string                               `gorm:"index;type:varchar(128);not null" json:"userId"`
	SkillID        string                               `gorm:"index;type:varchar(64);not null" json:"skillId"`
	Answers        datatypes.JSON                       `json:"answers"`
	Score          int                                  `json:"score"`
	TotalQuestions int                                  `json:"totalQuestions"`
	Percentage     int                                  `json:"percentage"`
	Results        datatypes.JSONSlice[QuestionOutcome] `json:"results"`
}

func (Submission) TableName() string {
	return "submissions"
}
