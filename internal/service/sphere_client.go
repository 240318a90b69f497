package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/logger"

	"go.uber.org/zap"
)

// Sphere Engine 终态状态码；0 为排队，1-8 为编译/运行中
var sphereStatusTable = map[int]ExecutionStatus{
	11: StatusCompilationError,
	12: StatusRuntimeError,
	13: StatusTimeLimitExceeded,
	15: StatusAccepted,
	17: StatusWrongAnswer,
}

const (
	sphereMaxInProgressCode = 8
	// 输出流 uri 单次读取上限
	sphereMaxStreamBytes = 1 << 20
)

type pollPhase int

const (
	phaseQueued pollPhase = iota
	phaseRunning
	phaseTerminal
)

func (p pollPhase) String() string {
	switch p {
	case phaseQueued:
		return "queued"
	case phaseRunning:
		return "running"
	}
	return "terminal"
}

// SphereClient 创建提交后轮询，直到进入终态或超过整体超时
type SphereClient struct {
	baseURL      string
	token        string
	maxSource    int
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
}

func NewSphereClient(cfg config.SphereConfig, exec config.ExecutionConfig, opts ...ClientOption) *SphereClient {
	o := buildClientOptions(exec, opts)
	return &SphereClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		maxSource:    exec.MaxSourceLength,
		pollInterval: o.pollInterval,
		timeout:      o.timeout,
		httpClient:   o.httpClient,
	}
}

func (c *SphereClient) Provider() string {
	return util.ProviderSphere
}

type sphereCreateRequest struct {
	Source     string `json:"source"`
	CompilerID int    `json:"compilerId"`
	Input      string `json:"input"`
}

func (c *SphereClient) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w (SPHERE_BASE_URL)", ErrExecutorNotConfigured)
	}
	if c.token == "" {
		return nil, fmt.Errorf("%w (SPHERE_TOKEN)", ErrExecutorNotConfigured)
	}
	if err := ValidateExecutionRequest(req, c.maxSource); err != nil {
		return nil, err
	}

	id, err := c.create(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, id)
}

func (c *SphereClient) create(ctx context.Context, req ExecutionRequest) (string, error) {
	body, err := json.Marshal(sphereCreateRequest{
		Source:     req.SourceCode,
		CompilerID: req.LanguageID,
		Input:      req.Stdin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/submissions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", &TransportError{Op: "sphere create decode", Err: err}
	}
	id := submissionID(created.ID)
	if id == "" {
		return "", ErrNoSubmissionID
	}
	return id, nil
}

// poll 状态机：Queued -> Running -> Terminal，每次轮询间隔 pollInterval，直到截止时间
func (c *SphereClient) poll(ctx context.Context, id string) (*ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	phase := phaseQueued
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Log.Warn("sphere submission timed out",
					zap.String("submission_id", id),
					zap.String("last_phase", phase.String()),
					zap.Duration("timeout", c.timeout))
				return nil, fmt.Errorf("%w after %s (submission %s, last phase %s)", ErrExecutionTimeout, c.timeout, id, phase)
			}
			return nil, ctx.Err()
		case <-timer.C:
		}

		snap, err := c.fetch(ctx, id)
		if err != nil {
			// 临时错误，截止前继续重试
			logger.Log.Debug("sphere poll failed, retrying", zap.String("submission_id", id), zap.Error(err))
			timer.Reset(c.pollInterval)
			continue
		}

		phase = snap.phase()
		if phase == phaseTerminal {
			return snap.toResult(func(uri string) (string, error) {
				return c.fetchStream(ctx, uri)
			}), nil
		}
		timer.Reset(c.pollInterval)
	}
}

func (c *SphereClient) fetch(ctx context.Context, id string) (*sphereSnapshot, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/submissions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &TransportError{Op: "sphere poll decode", Err: err}
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return newSphereSnapshot(data), nil
}

func (c *SphereClient) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	op := "sphere " + strings.ToLower(method) + " " + path
	endpoint := fmt.Sprintf("%s%s?access_token=%s", c.baseURL, path, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(raw), 256))}
	}
	return raw, nil
}

// fetchStream 读取以 uri 形式返回的输出流；与 baseURL 同域时补上 access_token
func (c *SphereClient) fetchStream(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if base, err := url.Parse(c.baseURL); err == nil && base.Host == u.Host {
		q := u.Query()
		if q.Get("access_token") == "" {
			q.Set("access_token", c.token)
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", &TransportError{Op: "sphere stream", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "sphere stream", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, sphereMaxStreamBytes))
	if err != nil {
		return "", &TransportError{Op: "sphere stream", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{Op: "sphere stream", StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(raw), 256))}
	}
	return string(raw), nil
}

// sphereSnapshot 一次轮询响应；不同 API 版本字段位置不同
type sphereSnapshot struct {
	data   map[string]interface{}
	result map[string]interface{}
	code   *int
	name   string
}

func newSphereSnapshot(data map[string]interface{}) *sphereSnapshot {
	s := &sphereSnapshot{data: data}
	s.result, _ = data["result"].(map[string]interface{})
	if s.result == nil {
		s.result = map[string]interface{}{}
	}

	s.code = firstInt(
		lookup(s.result, "status", "code"),
		lookup(data, "status", "code"),
		lookup(data, "status", "id"),
	)
	s.name = firstString(
		lookup(s.result, "status", "name"),
		lookup(data, "status", "name"),
	)
	return s
}

func (s *sphereSnapshot) phase() pollPhase {
	name := strings.ToLower(strings.TrimSpace(s.name))
	switch {
	case name == "queued" || name == "waiting":
		return phaseQueued
	case name == "running" || name == "executing" || name == "compilation":
		return phaseRunning
	case s.code == nil && name == "":
		return phaseQueued
	case s.code != nil && *s.code == 0:
		return phaseQueued
	case s.code != nil && *s.code > 0 && *s.code <= sphereMaxInProgressCode:
		return phaseRunning
	}
	return phaseTerminal
}

// streamFetcher 按 uri 取回输出流内容
type streamFetcher func(uri string) (string, error)

// toResult 归一化终态响应；fetch 为 nil 时不解析 uri 形式的输出流
func (s *sphereSnapshot) toResult(fetch streamFetcher) *ExecutionResult {
	res := &ExecutionResult{
		Status: normalizeStatus(s.code, s.name, sphereStatusTable),
		Time:   firstFloat(lookup(s.result, "time"), lookup(s.data, "time")),
		Memory: int64(firstFloat(lookup(s.result, "memory"), lookup(s.data, "memory"))),
	}

	stdout, ok := resolveStream(firstStream(
		lookup(s.result, "streams", "output"),
		lookup(s.data, "stdout"),
		lookup(s.result, "output"),
		lookup(s.data, "output"),
	), fetch)
	res.Stdout = stdout
	res.StdoutUnavailable = !ok

	res.Stderr, _ = resolveStream(firstStream(
		lookup(s.result, "streams", "error"),
		lookup(s.data, "stderr"),
		lookup(s.result, "error"),
		lookup(s.data, "error"),
	), fetch)
	res.CompileOutput, _ = resolveStream(firstStream(
		lookup(s.result, "streams", "cmpinfo"),
		lookup(s.data, "compile_output"),
		lookup(s.data, "build", "stderr"),
		lookup(s.result, "compile_output"),
	), fetch)
	return res
}

func lookup(m map[string]interface{}, path ...string) interface{} {
	var cur interface{} = m
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func firstInt(values ...interface{}) *int {
	for _, v := range values {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			n := int(f)
			return &n
		}
	}
	return nil
}

func firstFloat(values ...interface{}) float64 {
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			return t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func firstString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// streamRef 输出流：内联文本，或只给出 uri 的描述对象
type streamRef struct {
	text    string
	uri     string
	present bool
}

// firstStream 取第一个有内容的流；都为空时保留"存在但为空"的信息
func firstStream(values ...interface{}) streamRef {
	var found streamRef
	for _, v := range values {
		ref := readStream(v)
		if ref.text != "" || ref.uri != "" {
			return ref
		}
		if ref.present {
			found = ref
		}
	}
	return found
}

// readStream 支持字符串、字符串数组、带 output/text 的对象；
// 只有 uri（如 {"size":6,"uri":...}）的对象需要再取一次，其他对象视为缺失
func readStream(v interface{}) streamRef {
	switch t := v.(type) {
	case string:
		return streamRef{text: t, present: true}
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
				continue
			}
			b, _ := json.Marshal(item)
			parts = append(parts, string(b))
		}
		return streamRef{text: strings.Join(parts, "\n"), present: true}
	case map[string]interface{}:
		if s, ok := t["output"].(string); ok {
			return streamRef{text: s, present: true}
		}
		if s, ok := t["text"].(string); ok {
			return streamRef{text: s, present: true}
		}
		if s, ok := t["uri"].(string); ok && s != "" {
			return streamRef{uri: s}
		}
	}
	return streamRef{}
}

// resolveStream 返回流内容以及后端是否真正提供了它
func resolveStream(ref streamRef, fetch streamFetcher) (string, bool) {
	if ref.uri == "" {
		return ref.text, ref.present
	}
	if fetch == nil {
		return "", false
	}
	text, err := fetch(ref.uri)
	if err != nil {
		logger.Log.Debug("sphere stream unavailable", zap.String("uri", ref.uri), zap.Error(err))
		return "", false
	}
	return text, true
}

func submissionID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if n.String() == "0" {
			return ""
		}
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
