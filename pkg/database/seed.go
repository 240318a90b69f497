package database

import (
	"fmt"
	"log"

	"skillsnap_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func intPtr(n int) *int { return &n }

var seedSkills = []model.Skill{
	{
		ID:            "javascript",
		Name:          "JavaScript",
		Icon:          "JS",
		Difficulty:    "Intermediate",
		Duration:      45,
		QuestionCount: 10,
		Description:   "Test your knowledge of ES6+, closures, promises, and async programming.",
	},
	{
		ID:            "python",
		Name:          "Python",
		Icon:          "PY",
		Difficulty:    "Beginner",
		Duration:      30,
		QuestionCount: 10,
		Description:   "Assess your understanding of Python syntax, data structures, and algorithms.",
	},
	{
		ID:            "react",
		Name:          "React",
		Icon:          "⚛️",
		Difficulty:    "Advanced",
		Duration:      60,
		QuestionCount: 25,
		Description:   "Validate your expertise in hooks, context, and state management.",
	},
}

var seedAssessments = []model.Assessment{
	{
		SkillID:   "javascript",
		Title:     "JavaScript Assessment",
		TimeLimit: 2700,
		Questions: datatypes.JSONSlice[model.Question]{
			{
				ID:      "js_q1",
				Type:    model.QuestionMCQ,
				Title:   "Array Methods",
				Text:    "Which method creates a new array with all elements that pass the test implemented by the provided function?",
				Options: []string{"forEach()", "map()", "filter()", "reduce()"},
				Correct: intPtr(2),
			},
			{
				ID:          "js_q2",
				Type:        model.QuestionCode,
				Title:       "Reverse String",
				Text:        "Write a function `reverseString(str)` that returns the reversed string.",
				InitialCode: "function reverseString(str) {\n  // Your code here\n}",
				Examples:    []model.CodeExample{{Input: `"hello"`, Output: `"olleh"`}},
				Constraints: []string{"Input string will not be empty."},
			},
		},
	},
	{
		SkillID:   "python",
		Title:     "Python Assessment",
		TimeLimit: 1800,
		Questions: datatypes.JSONSlice[model.Question]{
			{
				ID:      "py_q1",
				Type:    model.QuestionMCQ,
				Title:   "List Comprehension",
				Text:    "What is the output of `[x*2 for x in range(3)]`?",
				Options: []string{"[0, 1, 2]", "[0, 2, 4]", "[2, 4, 6]", "Syntax Error"},
				Correct: intPtr(1),
			},
			{
				ID:          "py_q2",
				Type:        model.QuestionCode,
				Title:       "Sum of List",
				Text:        "Write a function `sum_list(nums)` that returns the sum of all numbers in the list.",
				InitialCode: "def sum_list(nums):\n    # Your code here\n    pass",
				Examples:    []model.CodeExample{{Input: "[1, 2, 3]", Output: "6"}},
				Constraints: []string{"List can be empty."},
			},
		},
	},
}

type seedProblem struct {
	problem model.Problem
	cases   []model.TestCase
}

var seedProblems = []seedProblem{
	{
		problem: model.Problem{ID: "js_q2", TimeLimit: 2.0, MemoryLimit: 128000},
		cases: []model.TestCase{
			{Stdin: "hello", ExpectedOutput: "olleh", IsHidden: false},
			{Stdin: "world", ExpectedOutput: "dlrow", IsHidden: true},
			{Stdin: "12345", ExpectedOutput: "54321", IsHidden: true},
		},
	},
	{
		problem: model.Problem{ID: "py_q2", TimeLimit: 2.0, MemoryLimit: 128000},
		cases: []model.TestCase{
			{Stdin: "[1, 2, 3]", ExpectedOutput: "6", IsHidden: false},
			{Stdin: "[10, -5, 5]", ExpectedOutput: "10", IsHidden: true},
			{Stdin: "[]", ExpectedOutput: "0", IsHidden: true},
		},
	},
}

// Seed 写入开发用的技能、测评和题目，仅在对应表为空时插入
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Skill{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			skills := append([]model.Skill(nil), seedSkills...)
			if err := tx.Create(&skills).Error; err != nil {
				return fmt.Errorf("seed skills: %w", err)
			}
			log.Printf("Seeded %d skills", len(skills))
		}

		if err := tx.Model(&model.Assessment{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			for _, a := range seedAssessments {
				a := a
				if err := a.Validate(); err != nil {
					return fmt.Errorf("seed assessment %s: %w", a.SkillID, err)
				}
				if err := tx.Create(&a).Error; err != nil {
					return fmt.Errorf("seed assessment %s: %w", a.SkillID, err)
				}
			}
			log.Printf("Seeded %d assessments", len(seedAssessments))
		}

		if err := tx.Model(&model.Problem{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			for _, sp := range seedProblems {
				p := sp.problem
				if err := tx.Create(&p).Error; err != nil {
					return fmt.Errorf("seed problem %s: %w", p.ID, err)
				}
				for i, tc := range sp.cases {
					tc.ProblemID = p.ID
					tc.Ordinal = i + 1
					if err := tx.Create(&tc).Error; err != nil {
						return fmt.Errorf("seed test case %s#%d: %w", p.ID, i+1, err)
					}
				}
			}
			log.Printf("Seeded %d problems", len(seedProblems))
		}
		return nil
	})
}
