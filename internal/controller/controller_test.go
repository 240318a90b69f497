package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/middleware"
	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/repository"
	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubExecutor struct {
	mu        sync.Mutex
	err       error
	fail      map[string]service.ExecutionStatus
	calls     int
	languages []int
}

func (s *stubExecutor) Provider() string { return "stub" }

func (s *stubExecutor) Execute(ctx context.Context, req service.ExecutionRequest) (*service.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.languages = append(s.languages, req.LanguageID)
	if s.err != nil {
		return nil, s.err
	}
	if status, ok := s.fail[req.Stdin]; ok {
		return &service.ExecutionResult{Status: status, Stdout: "nope", Stderr: "trace"}, nil
	}
	return &service.ExecutionResult{Status: service.StatusAccepted, Stdout: req.ExpectedOutput + "\n", Time: 0.01, Memory: 512}, nil
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	exec   *stubExecutor
	policy *service.PolicyStore
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	if err := database.Seed(db); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret},
		Storage: config.StorageConfig{
			Type:          util.StorageLocal,
			LocalPath:     t.TempDir(),
			PublicBaseURL: "http://localhost:4000",
		},
	}

	exec := &stubExecutor{fail: map[string]service.ExecutionStatus{}}
	catalog := repository.NewCatalogRepository(db, nil)
	policy := service.NewPolicyStore(service.GradingPolicy{PassThreshold: 70, DefaultLanguageID: 63, CompareOutput: true})
	grading := service.NewGradingService(catalog, exec, policy, 100000)
	certs := service.NewCertificateService(
		repository.NewCertificateRepository(db),
		service.NewPDFRenderer("SkillSnap Certificate"),
		service.NewStorageService(cfg),
		0, 0,
	)
	assessments := service.NewAssessmentService(catalog, grading, repository.NewSubmissionRepository(db), certs, policy, 100000)

	skillCtl := NewSkillController(assessments)
	assessmentCtl := NewAssessmentController(assessments)
	executeCtl := NewExecuteController(grading)
	certCtl := NewCertificateController(certs)
	healthCtl := NewHealthController(db, exec)

	r := gin.New()
	public := r.Group("/api")
	public.GET("/health", healthCtl.HealthCheck)
	public.GET("/skills", skillCtl.ListSkills)
	public.GET("/assessments/:skillId", assessmentCtl.GetAssessment)
	public.GET("/certificates/:id", certCtl.GetCertificate)
	public.GET("/certificates/verify/:verifiedId", certCtl.Verify)

	auth := r.Group("/api")
	auth.Use(middleware.AuthMiddleware(cfg))
	auth.POST("/assessments/:skillId/submit", assessmentCtl.Submit)
	auth.GET("/assessments/:skillId/submissions", assessmentCtl.ListSubmissions)
	auth.POST("/execute", executeCtl.Execute)

	token, err := util.GenerateJWT("u1", "Alice", "alice@example.com", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{router: r, db: db, exec: exec, policy: policy, token: token}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/api/health", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(string(body.Data), `"executor":"stub"`) {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestListSkills(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/api/skills", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var skills []model.Skill
	if err := json.Unmarshal(body.Data, &skills); err != nil {
		t.Fatal(err)
	}
	if len(skills) != 3 {
		t.Fatalf("skills = %d", len(skills))
	}
}

func TestGetAssessment(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/assessments/javascript", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(string(body.Data), "correct") || strings.Contains(string(body.Data), "expected_output") {
		t.Fatalf("public assessment leaks answers: %s", body.Data)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/assessments/react", "", false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSubmitRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/api/assessments/javascript/submit", `{"answers":{}}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubmitAssessment(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/assessments/javascript/submit",
		`{"answers":{"js_q1":2,"js_q2":{"source":"function reverseString(s){return s}","language_id":63}}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result service.GradeResult
	if err := json.Unmarshal(body.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Score != 2 || result.TotalQuestions != 2 || result.Percentage != 100 {
		t.Fatalf("result = %+v", result)
	}
	if env.exec.calls != 2 {
		t.Fatalf("hidden test cases only, calls = %d", env.exec.calls)
	}
	if result.Certificate == nil || result.Certificate.URL == nil {
		t.Fatalf("certificate missing: %s", body.Data)
	}
	if !strings.HasPrefix(*result.Certificate.URL, "http://localhost:4000/uploads/certificates/") {
		t.Fatalf("url = %s", *result.Certificate.URL)
	}

	rec, body = env.do(t, http.MethodGet, "/api/certificates/"+result.Certificate.ID, "", false)
	if rec.Code != http.StatusOK || !strings.Contains(string(body.Data), `"skillName":"JavaScript"`) {
		t.Fatalf("get certificate status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec, body = env.do(t, http.MethodGet, "/api/certificates/verify/"+result.Certificate.VerifiedID, "", false)
	if rec.Code != http.StatusOK || !strings.Contains(string(body.Data), `"valid":true`) {
		t.Fatalf("verify status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec, body = env.do(t, http.MethodGet, "/api/assessments/javascript/submissions", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history []model.Submission
	json.Unmarshal(body.Data, &history)
	if len(history) != 1 || history[0].ID != result.SubmissionID {
		t.Fatalf("history = %s", body.Data)
	}
}

func TestSubmitBelowThresholdHasNullCertificate(t *testing.T) {
	env := newTestEnv(t)
	env.exec.fail["world"] = service.StatusWrongAnswer

	rec, body := env.do(t, http.MethodPost, "/api/assessments/javascript/submit",
		`{"answers":{"js_q1":"2","js_q2":"function reverseString(s){return s}"}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body.Data), `"certificate":null`) {
		t.Fatalf("expected null certificate: %s", body.Data)
	}
	if !strings.Contains(string(body.Data), `Failed on test case 1 (Wrong Answer)`) {
		t.Fatalf("missing failure message: %s", body.Data)
	}
	var count int64
	env.db.Model(&model.Certificate{}).Count(&count)
	if count != 0 {
		t.Fatalf("certificates = %d", count)
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		setup  func(*testEnv)
		status int
	}{
		{name: "unknown skill", path: "/api/assessments/rust/submit", body: `{"answers":{}}`, status: http.StatusNotFound},
		{name: "missing answers", path: "/api/assessments/javascript/submit", body: `{}`, status: http.StatusBadRequest},
		{
			name:   "missing language",
			path:   "/api/assessments/javascript/submit",
			body:   `{"answers":{"js_q2":"code"}}`,
			setup:  func(e *testEnv) { e.policy.Store(service.GradingPolicy{PassThreshold: 70, CompareOutput: true}) },
			status: http.StatusBadRequest,
		},
		{
			name:   "backend not configured",
			path:   "/api/assessments/javascript/submit",
			body:   `{"answers":{"js_q2":"code"}}`,
			setup:  func(e *testEnv) { e.exec.err = service.ErrExecutorNotConfigured },
			status: http.StatusInternalServerError,
		},
		{
			name:   "backend down is a failing outcome",
			path:   "/api/assessments/javascript/submit",
			body:   `{"answers":{"js_q2":"code"}}`,
			setup:  func(e *testEnv) { e.exec.err = &service.TransportError{Op: "x", Err: errors.New("refused")} },
			status: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			rec, _ := env.do(t, http.MethodPost, tt.path, tt.body, true)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t)
	env.exec.fail["12345"] = service.StatusRuntimeError

	rec, body := env.do(t, http.MethodPost, "/api/execute",
		`{"language_id":63,"source_code":"function reverseString(s){}","question_id":"js_q2"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(string(body.Data), "stdout") || strings.Contains(string(body.Data), "dlrow") {
		t.Fatalf("stdout leaked: %s", body.Data)
	}
	var report service.RunReport
	if err := json.Unmarshal(body.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != service.StatusWrongAnswer || len(report.Results) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Results[0].Status != service.StatusAccepted || report.Results[1].Status != service.StatusRuntimeError {
		t.Fatalf("results = %+v", report.Results)
	}
}

func TestExecuteAcceptsStringLanguageID(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/execute",
		`{"language_id":"63","source_code":"function reverseString(s){}","question_id":"js_q2"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.exec.languages) == 0 {
		t.Fatal("executor not called")
	}
	for _, id := range env.exec.languages {
		if id != 63 {
			t.Fatalf("languages = %v", env.exec.languages)
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		setup     func(*testEnv)
		status    int
		wantCalls bool
	}{
		{name: "bad body", body: `{"language_id":"x"}`, status: http.StatusBadRequest},
		{name: "language id not numeric", body: `{"language_id":"abc","source_code":"x","question_id":"js_q2"}`, status: http.StatusBadRequest},
		{name: "language id null", body: `{"language_id":null,"source_code":"x","question_id":"js_q2"}`, status: http.StatusBadRequest},
		{name: "language id missing", body: `{"source_code":"x","question_id":"js_q2"}`, status: http.StatusBadRequest},
		{name: "unknown question", body: `{"language_id":63,"source_code":"x","question_id":"nope"}`, status: http.StatusNotFound},
		{
			name:   "no test cases",
			body:   `{"language_id":63,"source_code":"x","question_id":"empty"}`,
			setup:  func(e *testEnv) { e.db.Create(&model.Problem{ID: "empty"}) },
			status: http.StatusBadRequest,
		},
		{
			name:      "transport error",
			body:      `{"language_id":63,"source_code":"x","question_id":"js_q2"}`,
			setup:     func(e *testEnv) { e.exec.err = &service.TransportError{Op: "x", StatusCode: 503, Err: errors.New("down")} },
			status:    http.StatusBadGateway,
			wantCalls: true,
		},
		{
			name:      "timeout",
			body:      `{"language_id":63,"source_code":"x","question_id":"js_q2"}`,
			setup:     func(e *testEnv) { e.exec.err = service.ErrExecutionTimeout },
			status:    http.StatusGatewayTimeout,
			wantCalls: true,
		},
		{
			name:      "not configured",
			body:      `{"language_id":63,"source_code":"x","question_id":"js_q2"}`,
			setup:     func(e *testEnv) { e.exec.err = service.ErrExecutorNotConfigured },
			status:    http.StatusInternalServerError,
			wantCalls: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			rec, _ := env.do(t, http.MethodPost, "/api/execute", tt.body, true)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if (env.exec.calls > 0) != tt.wantCalls {
				t.Fatalf("executor calls = %d", env.exec.calls)
			}
		})
	}
}

func TestCertificateNotFound(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/certificates/missing", "/api/certificates/verify/missing"} {
		rec, _ := env.do(t, http.MethodGet, path, "", false)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}
