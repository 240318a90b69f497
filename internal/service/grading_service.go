package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/logger"
	"skillsnap_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	msgNoTestCases  = "No test cases configured"
	msgNoCode       = "No code submitted"
	msgUnknownType  = "Unknown question type"
	msgFailedOnCase = "Failed on test case %d (%s)"
)

// TestCaseSource 题目与测试用例的读取接口
type TestCaseSource interface {
	GetAssessmentRaw(ctx context.Context, skillID string) (*model.Assessment, error)
	GetAssessmentPublic(ctx context.Context, skillID string) (*model.PublicAssessment, error)
	GetProblem(ctx context.Context, problemID string) (*model.Problem, error)
	GetHiddenTestCases(ctx context.Context, problemID string) ([]model.TestCase, error)
	GetAllTestCases(ctx context.Context, problemID string) ([]model.TestCase, error)
}

// GradingService 用题目的测试用例评测代码答案
type GradingService struct {
	Source    TestCaseSource
	Client    ExecutionClient
	Policy    *PolicyStore
	MaxSource int
}

func NewGradingService(source TestCaseSource, client ExecutionClient, policy *PolicyStore, maxSource int) *GradingService {
	return &GradingService{Source: source, Client: client, Policy: policy, MaxSource: maxSource}
}

// resolveTestCases 优先使用隐藏用例，没有时退回到全部用例
func (s *GradingService) resolveTestCases(ctx context.Context, questionID string) ([]model.TestCase, error) {
	tcs, err := s.Source.GetHiddenTestCases(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load hidden test cases: %w", err)
	}
	if len(tcs) > 0 {
		return tcs, nil
	}

	tcs, err = s.Source.GetAllTestCases(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load test cases: %w", err)
	}
	if len(tcs) > 0 {
		logger.Log.Warn("question has no hidden test cases, grading against all cases",
			zap.String("question_id", questionID), zap.Int("count", len(tcs)))
	}
	return tcs, nil
}

// GradeCode 按存储顺序逐个运行，遇到第一个非 Accepted 即停止。
// 后端错误记为该题失败，只有后端未配置会作为 error 返回
func (s *GradingService) GradeCode(ctx context.Context, questionID, source string, languageID int) (model.QuestionOutcome, error) {
	ctx, span := tracing.Start(ctx, "grading.GradeCode",
		attribute.String("question.id", questionID), attribute.Int("language.id", languageID))
	outcome, err := s.gradeCode(ctx, span, questionID, source, languageID)
	tracing.End(span, err)
	return outcome, err
}

func (s *GradingService) gradeCode(ctx context.Context, span trace.Span, questionID, source string, languageID int) (model.QuestionOutcome, error) {
	outcome := model.QuestionOutcome{QuestionID: questionID}

	tcs, err := s.resolveTestCases(ctx, questionID)
	if err != nil {
		return outcome, err
	}
	if len(tcs) == 0 {
		outcome.Message = msgNoTestCases
		return outcome, nil
	}

	policy := s.policy()
	for i, tc := range tcs {
		res, err := s.Client.Execute(ctx, s.request(tc, source, languageID, policy))
		if err != nil {
			if errors.Is(err, ErrExecutorNotConfigured) {
				return outcome, err
			}
			logger.Log.Warn("test case execution failed",
				zap.String("question_id", questionID),
				zap.Int("test_case", i+1),
				zap.Error(err))
			outcome.Message = fmt.Sprintf(msgFailedOnCase, i+1, err.Error())
			return outcome, nil
		}

		status := verdict(tc, res, policy)
		if status != StatusAccepted {
			outcome.Message = fmt.Sprintf(msgFailedOnCase, i+1, status)
			span.SetAttributes(attribute.Int("failed.case", i+1))
			return outcome, nil
		}
	}

	outcome.Correct = true
	return outcome, nil
}

// CaseReport 试运行接口中的单个用例结果，不包含标准输出
type CaseReport struct {
	TestCaseID    string          `json:"testcase_id"`
	Status        ExecutionStatus `json:"status"`
	Stderr        string          `json:"stderr"`
	CompileOutput string          `json:"compile_output"`
	ExecutionTime float64         `json:"execution_time"`
	Memory        int64           `json:"memory"`
}

type RunReport struct {
	Status  ExecutionStatus `json:"status"`
	Results []CaseReport    `json:"results"`
}

// RunQuestion 运行全部用例并逐个返回结果；与 GradeCode 不同，后端错误直接返回
func (s *GradingService) RunQuestion(ctx context.Context, questionID, source string, languageID int) (*RunReport, error) {
	ctx, span := tracing.Start(ctx, "grading.RunQuestion",
		attribute.String("question.id", questionID), attribute.Int("language.id", languageID))
	report, err := s.runQuestion(ctx, questionID, source, languageID)
	tracing.End(span, err)
	return report, err
}

func (s *GradingService) runQuestion(ctx context.Context, questionID, source string, languageID int) (*RunReport, error) {
	if err := ValidateExecutionRequest(ExecutionRequest{SourceCode: source, LanguageID: languageID}, s.MaxSource); err != nil {
		return nil, err
	}

	problem, err := s.Source.GetProblem(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if problem == nil {
		return nil, util.ErrProblemNotFound
	}

	tcs, err := s.resolveTestCases(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if len(tcs) == 0 {
		return nil, util.ErrNoTestCases
	}

	policy := s.policy()
	report := &RunReport{Status: StatusAccepted, Results: make([]CaseReport, 0, len(tcs))}
	for _, tc := range tcs {
		res, err := s.Client.Execute(ctx, s.request(tc, source, languageID, policy))
		if err != nil {
			return nil, err
		}
		status := verdict(tc, res, policy)
		if status != StatusAccepted {
			report.Status = StatusWrongAnswer
		}
		report.Results = append(report.Results, CaseReport{
			TestCaseID:    tc.ID,
			Status:        status,
			Stderr:        res.Stderr,
			CompileOutput: res.CompileOutput,
			ExecutionTime: res.Time,
			Memory:        res.Memory,
		})
	}
	return report, nil
}

func (s *GradingService) policy() GradingPolicy {
	if s.Policy == nil {
		return GradingPolicy{CompareOutput: true}
	}
	return s.Policy.Load()
}

func (s *GradingService) request(tc model.TestCase, source string, languageID int, policy GradingPolicy) ExecutionRequest {
	req := ExecutionRequest{SourceCode: source, LanguageID: languageID, Stdin: tc.Stdin}
	if policy.CompareOutput {
		req.ExpectedOutput = tc.ExpectedOutput
	}
	return req
}

// verdict 标准输出与期望输出不一致时把 Accepted 降为 Wrong Answer；后端未提供输出时不比对
func verdict(tc model.TestCase, res *ExecutionResult, policy GradingPolicy) ExecutionStatus {
	if res == nil {
		return StatusUnknown
	}
	if res.Status == StatusAccepted && policy.CompareOutput && !res.StdoutUnavailable &&
		tc.ExpectedOutput != "" && !outputsMatch(res.Stdout, tc.ExpectedOutput) {
		return StatusWrongAnswer
	}
	return res.Status
}

// outputsMatch 忽略行尾空白和末尾空行
func outputsMatch(got, want string) bool {
	return normalizeOutput(got) == normalizeOutput(want)
}

func normalizeOutput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
