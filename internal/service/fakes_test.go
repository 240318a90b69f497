package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"skillsnap_backend/internal/model"
)

type fakeCatalog struct {
	assessments map[string]*model.Assessment
	skills      map[string]*model.Skill
	problems    map[string]*model.Problem
	cases       map[string][]model.TestCase
	err         error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		assessments: map[string]*model.Assessment{},
		skills:      map[string]*model.Skill{},
		problems:    map[string]*model.Problem{},
		cases:       map[string][]model.TestCase{},
	}
}

func (f *fakeCatalog) addProblem(id string, cases ...model.TestCase) {
	f.problems[id] = &model.Problem{ID: id}
	for i := range cases {
		cases[i].ProblemID = id
		if cases[i].ID == "" {
			cases[i].ID = id + "-tc" + string(rune('1'+i))
		}
	}
	f.cases[id] = cases
}

func (f *fakeCatalog) GetAssessmentRaw(ctx context.Context, skillID string) (*model.Assessment, error) {
	return f.assessments[skillID], f.err
}

func (f *fakeCatalog) GetAssessmentPublic(ctx context.Context, skillID string) (*model.PublicAssessment, error) {
	a := f.assessments[skillID]
	if a == nil || f.err != nil {
		return nil, f.err
	}
	return a.Public(), nil
}

func (f *fakeCatalog) GetProblem(ctx context.Context, problemID string) (*model.Problem, error) {
	return f.problems[problemID], f.err
}

func (f *fakeCatalog) GetHiddenTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	var out []model.TestCase
	for _, tc := range f.cases[problemID] {
		if tc.IsHidden {
			out = append(out, tc)
		}
	}
	return out, f.err
}

func (f *fakeCatalog) GetAllTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	return f.cases[problemID], f.err
}

func (f *fakeCatalog) ListSkills(ctx context.Context) ([]model.Skill, error) {
	var out []model.Skill
	for _, s := range f.skills {
		out = append(out, *s)
	}
	return out, f.err
}

func (f *fakeCatalog) GetSkill(ctx context.Context, id string) (*model.Skill, error) {
	return f.skills[id], f.err
}

// fakeExecutor answers by stdin; unknown stdin is Accepted with empty stdout.
type fakeExecutor struct {
	mu       sync.Mutex
	results  map[string]*ExecutionResult
	errs     map[string]error
	requests []ExecutionRequest
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]*ExecutionResult{}, errs: map[string]error{}}
}

func (f *fakeExecutor) Provider() string { return "fake" }

func (f *fakeExecutor) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Stdin]; ok {
		return nil, err
	}
	if res, ok := f.results[req.Stdin]; ok {
		return res, nil
	}
	return &ExecutionResult{Status: StatusAccepted, Stdout: req.ExpectedOutput}, nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSubmissions struct {
	mu    sync.Mutex
	saved []*model.Submission
	err   error
}

func (f *fakeSubmissions) Create(ctx context.Context, s *model.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = model.GenerateUUID()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSubmissions) ListByUserAndSkill(ctx context.Context, userID, skillID string, limit int) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for i := len(f.saved) - 1; i >= 0; i-- {
		s := f.saved[i]
		if s.UserID == userID && s.SkillID == skillID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeCertificateStore struct {
	mu      sync.Mutex
	certs   map[string]*model.Certificate
	creates int
	err     error
}

func newFakeCertificateStore() *fakeCertificateStore {
	return &fakeCertificateStore{certs: map[string]*model.Certificate{}}
}

func (f *fakeCertificateStore) Create(ctx context.Context, c *model.Certificate) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = model.GenerateUUID()
	cp := *c
	f.certs[c.ID] = &cp
	f.creates++
	return nil
}

func (f *fakeCertificateStore) UpdateStorage(ctx context.Context, id string, storagePath, url *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.certs[id]
	if !ok {
		return errors.New("missing certificate")
	}
	c.StoragePath = storagePath
	c.URL = url
	return nil
}

func (f *fakeCertificateStore) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.certs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCertificateStore) FindByVerifiedID(ctx context.Context, verifiedID string) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if c.VerifiedID == verifiedID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeBlob struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	uploadErr error
	signErr   error
	signTTLs  []time.Duration
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{uploads: map[string][]byte{}}
}

func (f *fakeBlob) Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[objectPath] = b
	return nil
}

func (f *fakeBlob) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	f.signTTLs = append(f.signTTLs, ttl)
	f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/" + objectPath, nil
}

func (f *fakeBlob) PublicURL(objectPath string) string {
	return "https://public.example/" + objectPath
}

func (f *fakeBlob) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Render(c *model.Certificate) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + c.VerifiedID), nil
}
