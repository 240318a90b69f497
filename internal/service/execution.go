package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/monitoring"
)

// ExecutionStatus 执行后端单次运行的归一化结果
type ExecutionStatus string

const (
	StatusAccepted          ExecutionStatus = "Accepted"
	StatusWrongAnswer       ExecutionStatus = "Wrong Answer"
	StatusCompilationError  ExecutionStatus = "Compilation Error"
	StatusRuntimeError      ExecutionStatus = "Runtime Error"
	StatusTimeLimitExceeded ExecutionStatus = "Time Limit Exceeded"
	StatusUnknown           ExecutionStatus = "Unknown"
)

var (
	ErrExecutorNotConfigured   = errors.New("execution backend not configured")
	ErrNoSubmissionID          = errors.New("no submission id returned from execution backend")
	ErrExecutionTimeout        = errors.New("execution backend submission timed out")
	ErrInvalidExecutionRequest = errors.New("invalid execution request")
)

// TransportError 与执行后端通信时的网络或协议错误
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ExecutionRequest struct {
	SourceCode     string
	LanguageID     int
	Stdin          string
	ExpectedOutput string
}

type ExecutionResult struct {
	Status        ExecutionStatus
	Stdout        string
	Stderr        string
	CompileOutput string
	Time          float64 // Seconds
	Memory        int64   // KB
	// 后端未给出标准输出内容（例如流只能通过 uri 获取且获取失败），此时不做输出比对
	StdoutUnavailable bool
}

// ExecutionClient 在外部后端运行一次 (source, language, stdin)，阻塞直到得到归一化结果
type ExecutionClient interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	Provider() string
}

// NewExecutionClient 按 execution.provider 选择执行后端
func NewExecutionClient(cfg *config.Config, opts ...ClientOption) ExecutionClient {
	var client ExecutionClient
	switch cfg.Execution.Provider {
	case util.ProviderJudge0:
		client = NewJudge0Client(cfg.Judge0, cfg.Execution, opts...)
	default:
		client = NewSphereClient(cfg.Sphere, cfg.Execution, opts...)
	}
	return &instrumentedClient{inner: client}
}

type clientOptions struct {
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// ClientOption 执行后端客户端选项
type ClientOption func(*clientOptions)

// WithHTTPClient 自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithPolling 覆盖轮询间隔与整体超时
func WithPolling(interval, timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.pollInterval = interval
		o.timeout = timeout
	}
}

func buildClientOptions(exec config.ExecutionConfig, opts []ClientOption) clientOptions {
	o := clientOptions{
		httpClient:   &http.Client{Timeout: exec.RequestTimeout},
		pollInterval: exec.PollInterval,
		timeout:      exec.Timeout,
	}
	if o.httpClient.Timeout <= 0 {
		o.httpClient.Timeout = 15 * time.Second
	}
	if o.pollInterval <= 0 {
		o.pollInterval = time.Second
	}
	if o.timeout <= 0 {
		o.timeout = 120 * time.Second
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateExecutionRequest 校验所有后端共用的输入约束
func ValidateExecutionRequest(req ExecutionRequest, maxSourceLength int) error {
	if req.LanguageID <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidExecutionRequest, util.ErrInvalidLanguage)
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidExecutionRequest, util.ErrSourceRequired)
	}
	if maxSourceLength > 0 && len([]rune(req.SourceCode)) > maxSourceLength {
		return fmt.Errorf("%w: %w", ErrInvalidExecutionRequest, util.ErrSourceTooLarge)
	}
	return nil
}

// normalizeStatus 先按状态码查表，查不到再按状态名匹配
func normalizeStatus(code *int, name string, table map[int]ExecutionStatus) ExecutionStatus {
	if code != nil {
		if s, ok := table[*code]; ok {
			return s
		}
	}
	return statusFromName(name)
}

func statusFromName(name string) ExecutionStatus {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return StatusUnknown
	case strings.Contains(n, "accept"):
		return StatusAccepted
	case strings.Contains(n, "compil"):
		return StatusCompilationError
	case strings.Contains(n, "runtime"):
		return StatusRuntimeError
	case strings.Contains(n, "time"):
		return StatusTimeLimitExceeded
	case strings.Contains(n, "wrong"):
		return StatusWrongAnswer
	}
	return StatusUnknown
}

// flexFloat 兼容 0.01、"0.01" 和 null
func flexFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return f
}

type instrumentedClient struct {
	inner ExecutionClient
}

func (c *instrumentedClient) Provider() string {
	return c.inner.Provider()
}

func (c *instrumentedClient) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	start := time.Now()
	res, err := c.inner.Execute(ctx, req)
	outcome := executionOutcomeLabel(res, err)
	monitoring.ExecutionCounter.WithLabelValues(c.inner.Provider(), outcome).Inc()
	monitoring.ExecutionDuration.WithLabelValues(c.inner.Provider()).Observe(time.Since(start).Seconds())
	return res, err
}

func executionOutcomeLabel(res *ExecutionResult, err error) string {
	var transportErr *TransportError
	switch {
	case err == nil && res != nil:
		return string(res.Status)
	case errors.Is(err, ErrExecutionTimeout):
		return "timeout"
	case errors.Is(err, ErrExecutorNotConfigured):
		return "not_configured"
	case errors.As(err, &transportErr):
		return "transport_error"
	}
	return "error"
}
