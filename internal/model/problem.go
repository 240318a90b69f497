package model

// swagger:model Problem
type Problem struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TimeLimit   float64 `json:"timeLimit"`   // Seconds
	MemoryLimit int     `json:"memoryLimit"` // KB
}

func (Problem) TableName() string {
	return "problems"
}

// swagger:model TestCase
type TestCase struct {
	UUIDBase
	ProblemID      string `gorm:"index;type:varchar(64);not null" json:"problemId"`
	Ordinal        int    `gorm:"default:0" json:"ordinal"`
	Stdin          string `gorm:"type:text" json:"stdin"`
	ExpectedOutput string `gorm:"type:text" json:"expected_output"`
	IsHidden       bool   `gorm:"index;default:false" json:"is_hidden"`
}

func (TestCase) TableName() string {
	return "test_cases"
}
