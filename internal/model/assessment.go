package model

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ  QuestionType = "mcq"
	QuestionCode QuestionType = "code"
)

type CodeExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Question 作为测评文档的一部分存储，Correct 不对外暴露
type Question struct {
	ID          string        `json:"id"`
	Type        QuestionType  `json:"type"`
	Title       string        `json:"title,omitempty"`
	Text        string        `json:"text"`
	Options     []string      `json:"options,omitempty"`
	Correct     *int          `json:"correct,omitempty"`
	InitialCode string        `json:"initialCode,omitempty"`
	Examples    []CodeExample `json:"examples,omitempty"`
	Constraints []string      `json:"constraints,omitempty"`
}

var ErrInvalidQuestion = errors.New("invalid question")

// Validate 检查 correct 下标落在选项范围内
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: question without id", ErrInvalidQuestion)
	}
	if q.Correct != nil && (*q.Correct < 0 || *q.Correct >= len(q.Options)) {
		return fmt.Errorf("%w: question %s: correct index %d out of range (%d options)", ErrInvalidQuestion, q.ID, *q.Correct, len(q.Options))
	}
	return nil
}

// swagger:model Assessment
type Assessment struct {
	SkillID   string                        `gorm:"primaryKey;type:varchar(64)" json:"skillId"`
	Title     string                        `gorm:"size:255;not null" json:"title"`
	TimeLimit int                           `gorm:"default:0" json:"timeLimit"` // Seconds
	Questions datatypes.JSONSlice[Question] `json:"questions"`
	CreatedAt time.Time                     `json:"createdAt"`
	UpdatedAt time.Time                     `json:"updatedAt"`
}

// Validate 校验所有题目，写入和读取时都会调用
func (a *Assessment) Validate() error {
	for _, q := range a.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("assessment %s: %w", a.SkillID, err)
		}
	}
	return nil
}

func (Assessment) TableName() string {
	return "assessments"
}

type PublicQuestion struct {
	ID          string        `json:"id"`
	Type        QuestionType  `json:"type"`
	Title       string        `json:"title,omitempty"`
	Text        string        `json:"text"`
	Options     []string      `json:"options,omitempty"`
	InitialCode string        `json:"initialCode,omitempty"`
	Examples    []CodeExample `json:"examples,omitempty"`
	Constraints []string      `json:"constraints,omitempty"`
}

// PublicAssessment is the learner-facing view: no correct answers, no test cases.
type PublicAssessment struct {
	SkillID   string           `json:"skillId"`
	Title     string           `json:"title"`
	TimeLimit int              `json:"timeLimit"`
	Questions []PublicQuestion `json:"questions"`
}

// Public projects the raw assessment. It is the only way a public view is produced.
func (a *Assessment) Public() *PublicAssessment {
	out := &PublicAssessment{
		SkillID:   a.SkillID,
		Title:     a.Title,
		TimeLimit: a.TimeLimit,
		Questions: make([]PublicQuestion, 0, len(a.Questions)),
	}
	for _, q := range a.Questions {
		out.Questions = append(out.Questions, PublicQuestion{
			ID:          q.ID,
			Type:        q.Type,
			Title:       q.Title,
			Text:        q.Text,
			Options:     q.Options,
			InitialCode: q.InitialCode,
			Examples:    q.Examples,
			Constraints: q.Constraints,
		})
	}
	return out
}
