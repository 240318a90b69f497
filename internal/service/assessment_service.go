package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/logger"
	"skillsnap_backend/pkg/monitoring"
	"skillsnap_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const submissionHistoryLimit = 50

// Catalog 技能与测评的只读接口
type Catalog interface {
	TestCaseSource
	ListSkills(ctx context.Context) ([]model.Skill, error)
	GetSkill(ctx context.Context, id string) (*model.Skill, error)
}

// CodeGrader 评测单道代码题
type CodeGrader interface {
	GradeCode(ctx context.Context, questionID, source string, languageID int) (model.QuestionOutcome, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	ListByUserAndSkill(ctx context.Context, userID, skillID string, limit int) ([]model.Submission, error)
}

type CertificateIssuer interface {
	Issue(ctx context.Context, userID, userName, skillID, skillName string) (*model.Certificate, error)
}

// Principal 当前登录用户
type Principal struct {
	UserID string
	Name   string
}

// CertificateOutcome 证书签发结果（尽力而为）：证书或记录下来的错误
type CertificateOutcome struct {
	Certificate *model.Certificate
	Err         error
}

func (o CertificateOutcome) Issued() bool {
	return o.Err == nil && o.Certificate != nil
}

type GradeResult struct {
	Score          int                     `json:"score"`
	TotalQuestions int                     `json:"totalQuestions"`
	Percentage     int                     `json:"percentage"`
	Results        []model.QuestionOutcome `json:"results"`
	SubmissionID   string                  `json:"submissionId"`
	Certificate    *model.CertificateRef   `json:"certificate"`
}

type AssessmentService struct {
	Catalog      Catalog
	Grader       CodeGrader
	Submissions  SubmissionStore
	Certificates CertificateIssuer
	Policy       *PolicyStore
	MaxSource    int
}

func NewAssessmentService(catalog Catalog, grader CodeGrader, submissions SubmissionStore, certificates CertificateIssuer, policy *PolicyStore, maxSource int) *AssessmentService {
	return &AssessmentService{
		Catalog:      catalog,
		Grader:       grader,
		Submissions:  submissions,
		Certificates: certificates,
		Policy:       policy,
		MaxSource:    maxSource,
	}
}

func (s *AssessmentService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	return s.Catalog.ListSkills(ctx)
}

// GetPublicAssessment 获取不含答案的测评
func (s *AssessmentService) GetPublicAssessment(ctx context.Context, skillID string) (*model.PublicAssessment, error) {
	a, err := s.Catalog.GetAssessmentPublic(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, util.ErrAssessmentNotFound
	}
	return a, nil
}

// ListSubmissions 用户在某技能下的提交记录，按时间倒序
func (s *AssessmentService) ListSubmissions(ctx context.Context, userID, skillID string) ([]model.Submission, error) {
	return s.Submissions.ListByUserAndSkill(ctx, userID, skillID, submissionHistoryLimit)
}

// Grade 按题目顺序评分，写入一条新的提交记录；达到及格线时尝试签发证书
func (s *AssessmentService) Grade(ctx context.Context, p Principal, skillID string, answers map[string]json.RawMessage) (*GradeResult, error) {
	ctx, span := tracing.Start(ctx, "assessment.Grade", attribute.String("skill.id", skillID))
	result, err := s.grade(ctx, p, skillID, answers)
	tracing.End(span, err)
	return result, err
}

func (s *AssessmentService) grade(ctx context.Context, p Principal, skillID string, answers map[string]json.RawMessage) (*GradeResult, error) {
	assessment, err := s.Catalog.GetAssessmentRaw(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("load assessment: %w", err)
	}
	if assessment == nil {
		return nil, util.ErrAssessmentNotFound
	}

	policy := s.loadPolicy()

	// 预检：语言缺失时整个请求失败，不调用执行后端
	code, err := s.resolveCodeAnswers(assessment.Questions, answers, policy.DefaultLanguageID)
	if err != nil {
		return nil, err
	}

	results := make([]model.QuestionOutcome, 0, len(assessment.Questions))
	score := 0
	for _, q := range assessment.Questions {
		var outcome model.QuestionOutcome
		switch q.Type {
		case model.QuestionMCQ:
			raw, ok := answers[q.ID]
			outcome = model.QuestionOutcome{QuestionID: q.ID, Correct: ok && mcqCorrect(q, raw)}
		case model.QuestionCode:
			ans, ok := code[q.ID]
			if !ok {
				outcome = model.QuestionOutcome{QuestionID: q.ID, Message: msgNoCode}
				break
			}
			outcome, err = s.Grader.GradeCode(ctx, q.ID, ans.source, ans.languageID)
			if err != nil {
				return nil, err
			}
		default:
			outcome = model.QuestionOutcome{QuestionID: q.ID, Message: msgUnknownType}
		}
		if outcome.Correct {
			score++
		}
		results = append(results, outcome)
	}

	total := len(assessment.Questions)
	result := &GradeResult{
		Score:          score,
		TotalQuestions: total,
		Percentage:     percentage(score, total),
		Results:        results,
	}

	sub := &model.Submission{
		UserID:         p.UserID,
		SkillID:        skillID,
		Answers:        encodeAnswers(answers),
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Percentage:     result.Percentage,
		Results:        datatypes.JSONSlice[model.QuestionOutcome](results),
	}
	if err := s.Submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	result.SubmissionID = sub.ID

	passed := result.Percentage >= policy.PassThreshold
	monitoring.GradingCounter.WithLabelValues(skillID, strconv.FormatBool(passed)).Inc()
	logger.Log.Info("assessment graded",
		zap.String("user_id", p.UserID),
		zap.String("skill_id", skillID),
		zap.String("submission_id", sub.ID),
		zap.Int("score", score),
		zap.Int("total", total),
		zap.Int("percentage", result.Percentage))

	if passed {
		outcome := s.issueCertificate(ctx, p, skillID, assessment.Title)
		if outcome.Issued() {
			result.Certificate = outcome.Certificate.Ref()
		} else {
			logger.Log.Error("certificate issuance failed",
				zap.String("user_id", p.UserID),
				zap.String("skill_id", skillID),
				zap.Error(outcome.Err))
		}
	}

	return result, nil
}

func (s *AssessmentService) loadPolicy() GradingPolicy {
	if s.Policy == nil {
		return GradingPolicy{PassThreshold: 70, CompareOutput: true}
	}
	return s.Policy.Load()
}

func (s *AssessmentService) issueCertificate(ctx context.Context, p Principal, skillID, fallbackName string) CertificateOutcome {
	if s.Certificates == nil {
		return CertificateOutcome{Err: fmt.Errorf("certificate issuer not configured")}
	}

	skillName := fallbackName
	if skill, err := s.Catalog.GetSkill(ctx, skillID); err != nil {
		logger.Log.Warn("skill lookup failed, using assessment title", zap.String("skill_id", skillID), zap.Error(err))
	} else if skill != nil && skill.Name != "" {
		skillName = skill.Name
	}

	cert, err := s.Certificates.Issue(ctx, p.UserID, p.Name, skillID, skillName)
	return CertificateOutcome{Certificate: cert, Err: err}
}

type codeAnswer struct {
	source     string
	languageID int
}

// resolveCodeAnswers 预先解析所有代码答案，没有源码的题目不放入结果
func (s *AssessmentService) resolveCodeAnswers(questions []model.Question, answers map[string]json.RawMessage, defaultLanguage int) (map[string]codeAnswer, error) {
	out := make(map[string]codeAnswer)
	for _, q := range questions {
		if q.Type != model.QuestionCode {
			continue
		}
		raw, ok := answers[q.ID]
		if !ok {
			continue
		}
		ans, present, err := parseCodeAnswer(raw, defaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		if !present {
			continue
		}
		if s.MaxSource > 0 && len([]rune(ans.source)) > s.MaxSource {
			return nil, fmt.Errorf("question %s: %w", q.ID, util.ErrSourceTooLarge)
		}
		out[q.ID] = ans
	}
	return out, nil
}

// parseCodeAnswer 支持纯源码字符串或 {source|source_code, language_id}
func parseCodeAnswer(raw json.RawMessage, defaultLanguage int) (codeAnswer, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return codeAnswer{}, false, nil
	}

	var ans codeAnswer
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &ans.source); err != nil {
			return codeAnswer{}, false, nil
		}
	case '{':
		var obj struct {
			Source     string          `json:"source"`
			SourceCode string          `json:"source_code"`
			LanguageID json.RawMessage `json:"language_id"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return codeAnswer{}, false, nil
		}
		ans.source = obj.Source
		if ans.source == "" {
			ans.source = obj.SourceCode
		}
		id, err := ParseLanguageID(obj.LanguageID)
		if err != nil {
			return codeAnswer{}, false, err
		}
		ans.languageID = id
	default:
		return codeAnswer{}, false, nil
	}

	if strings.TrimSpace(ans.source) == "" {
		return codeAnswer{}, false, nil
	}
	if ans.languageID == 0 {
		if defaultLanguage <= 0 {
			return codeAnswer{}, false, util.ErrMissingLanguage
		}
		ans.languageID = defaultLanguage
	}
	return ans, true, nil
}

// ParseLanguageID 接受 71 或 "71"；缺失或 null 返回 0
func ParseLanguageID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, util.ErrInvalidLanguage
		}
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.Atoi(n.String())
	if err != nil || id <= 0 {
		return 0, util.ErrInvalidLanguage
	}
	return id, nil
}

// mcqCorrect 只接受与正确选项下标相等的 JSON 数字，"2" 不等于 2
func mcqCorrect(q model.Question, raw json.RawMessage) bool {
	if q.Correct == nil {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	f, ok := v.(float64)
	return ok && f == float64(*q.Correct)
}

func percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

func encodeAnswers(answers map[string]json.RawMessage) datatypes.JSON {
	if answers == nil {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
