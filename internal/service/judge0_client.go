package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/util"
)

// Judge0 状态 id；1、2 为排队/处理中，wait=true 时不会返回
var judge0StatusTable = map[int]ExecutionStatus{
	3:  StatusAccepted,
	4:  StatusWrongAnswer,
	5:  StatusTimeLimitExceeded,
	6:  StatusCompilationError,
	7:  StatusRuntimeError,
	8:  StatusRuntimeError,
	9:  StatusRuntimeError,
	10: StatusRuntimeError,
	11: StatusRuntimeError,
	12: StatusRuntimeError,
}

// Judge0Client 同步提交（wait=true），响应中直接带回完整结果
type Judge0Client struct {
	baseURL       string
	apiKey        string
	host          string
	base64Encoded bool
	maxSource     int
	httpClient    *http.Client
}

func NewJudge0Client(cfg config.Judge0Config, exec config.ExecutionConfig, opts ...ClientOption) *Judge0Client {
	o := buildClientOptions(exec, opts)
	return &Judge0Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiKey:        cfg.APIKey,
		host:          cfg.Host,
		base64Encoded: cfg.Base64Encoded,
		maxSource:     exec.MaxSourceLength,
		httpClient:    o.httpClient,
	}
}

func (c *Judge0Client) Provider() string {
	return util.ProviderJudge0
}

type judge0Submission struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

type judge0Response struct {
	Token  string `json:"token"`
	Status *struct {
		ID          *int   `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string         `json:"stdout"`
	Stderr        *string         `json:"stderr"`
	CompileOutput *string         `json:"compile_output"`
	Message       *string         `json:"message"`
	Time          json.RawMessage `json:"time"`
	Memory        json.RawMessage `json:"memory"`
}

func (c *Judge0Client) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w (JUDGE0_URL)", ErrExecutorNotConfigured)
	}
	if err := ValidateExecutionRequest(req, c.maxSource); err != nil {
		return nil, err
	}

	payload := judge0Submission{
		SourceCode:     c.encode(req.SourceCode),
		LanguageID:     req.LanguageID,
		Stdin:          c.encode(req.Stdin),
		ExpectedOutput: c.encode(req.ExpectedOutput),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/submissions/?base64_encoded=%t&wait=true", c.baseURL, c.base64Encoded)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "judge0 submit", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.host != "" {
		httpReq.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "judge0 submit", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "judge0 submit", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: "judge0 submit", StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(raw), 256))}
	}

	var out judge0Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "judge0 decode", Err: err}
	}

	result := &ExecutionResult{
		Status:        StatusUnknown,
		Stdout:        c.decode(out.Stdout),
		Stderr:        c.decode(out.Stderr),
		CompileOutput: c.decode(out.CompileOutput),
		Time:          flexFloat(out.Time),
		Memory:        int64(flexFloat(out.Memory)),
	}
	if out.Status != nil {
		result.Status = normalizeStatus(out.Status.ID, out.Status.Description, judge0StatusTable)
	}
	if result.Stderr == "" && out.Message != nil {
		result.Stderr = c.decode(out.Message)
	}
	return result, nil
}

func (c *Judge0Client) encode(s string) string {
	if s == "" || !c.base64Encoded {
		return s
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode 兼容 Judge0 带换行的 base64；无法解码时原样返回
func (c *Judge0Client) decode(s *string) string {
	if s == nil {
		return ""
	}
	if !c.base64Encoded {
		return *s
	}
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, *s)
	b, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return *s
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
