package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/util"
)

func newTestIssuer() (*CertificateService, *fakeCertificateStore, *fakeBlob) {
	store := newFakeCertificateStore()
	blob := newFakeBlob()
	svc := NewCertificateService(store, stubRenderer{}, blob, 0, 0)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, store, blob
}

func TestVerifiedID(t *testing.T) {
	got := VerifiedID("python", "u42", time.UnixMilli(1700000000000))
	if got != "python-u42-loyw3v28" {
		t.Fatalf("VerifiedID() = %q", got)
	}
}

func TestIssueCertificate(t *testing.T) {
	svc, store, blob := newTestIssuer()

	cert, err := svc.Issue(context.Background(), "u42", "Alice", "python", "Python")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	wantPath := "certificates/" + cert.ID + ".pdf"
	if cert.StoragePath == nil || *cert.StoragePath != wantPath {
		t.Fatalf("storage path = %v", cert.StoragePath)
	}
	if cert.URL == nil || *cert.URL != "https://signed.example/"+wantPath {
		t.Fatalf("url = %v", cert.URL)
	}
	if !bytes.HasPrefix(blob.uploads[wantPath], []byte("%PDF-")) {
		t.Fatalf("artifact not uploaded")
	}
	if len(blob.signTTLs) != 1 || blob.signTTLs[0] != 7*24*time.Hour {
		t.Fatalf("sign ttls = %v", blob.signTTLs)
	}

	stored, _ := store.FindByID(context.Background(), cert.ID)
	if stored.URL == nil || *stored.URL != *cert.URL || stored.VerifiedID != "python-u42-loyw3v28" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestIssueFallsBackToPublicURL(t *testing.T) {
	svc, _, blob := newTestIssuer()
	blob.signErr = ErrSignedURLUnsupported

	cert, err := svc.Issue(context.Background(), "u1", "Bob", "js", "JavaScript")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if cert.URL == nil || !strings.HasPrefix(*cert.URL, "https://public.example/certificates/") {
		t.Fatalf("url = %v", cert.URL)
	}
}

func TestIssuePartialFailureKeepsRecord(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*CertificateService, *fakeBlob)
	}{
		{name: "render", setup: func(s *CertificateService, b *fakeBlob) { s.Renderer = stubRenderer{err: errors.New("font missing")} }},
		{name: "upload", setup: func(s *CertificateService, b *fakeBlob) { b.uploadErr = errors.New("denied") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, blob := newTestIssuer()
			tt.setup(svc, blob)

			cert, err := svc.Issue(context.Background(), "u1", "Bob", "js", "JavaScript")
			if err == nil {
				t.Fatalf("expected error")
			}
			if cert == nil || cert.ID == "" {
				t.Fatalf("record should exist after partial failure")
			}
			stored, _ := store.FindByID(context.Background(), cert.ID)
			if stored == nil || stored.URL != nil || stored.StoragePath != nil {
				t.Fatalf("stored = %+v", stored)
			}
		})
	}
}

func TestIssueRecordFailure(t *testing.T) {
	svc, store, blob := newTestIssuer()
	store.err = errors.New("db down")

	cert, err := svc.Issue(context.Background(), "u1", "Bob", "js", "JavaScript")
	if err == nil || cert != nil {
		t.Fatalf("cert = %+v, err = %v", cert, err)
	}
	if blob.uploadCount() != 0 {
		t.Fatalf("uploaded without a record")
	}
}

func TestGetCertificateRefreshesURL(t *testing.T) {
	svc, store, blob := newTestIssuer()
	path := "certificates/c1.pdf"
	store.certs["c1"] = &model.Certificate{UUIDBase: model.UUIDBase{ID: "c1"}, VerifiedID: "v1", StoragePath: &path}

	cert, err := svc.Get(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if cert.URL == nil || *cert.URL != "https://signed.example/"+path {
		t.Fatalf("url = %v", cert.URL)
	}
	if blob.signTTLs[0] != time.Hour {
		t.Fatalf("refresh ttl = %v", blob.signTTLs[0])
	}
	if store.certs["c1"].URL != nil {
		t.Fatalf("refreshed url must not be persisted")
	}

	verified, err := svc.Verify(context.Background(), "v1")
	if err != nil || verified.ID != "c1" {
		t.Fatalf("verify = %+v, %v", verified, err)
	}
}

func TestGetCertificateNotFound(t *testing.T) {
	svc, _, _ := newTestIssuer()
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, util.ErrCertificateNotFound) {
		t.Fatalf("Get error = %v", err)
	}
	if _, err := svc.Verify(context.Background(), "nope"); !errors.Is(err, util.ErrCertificateNotFound) {
		t.Fatalf("Verify error = %v", err)
	}
}

func TestPDFRenderer(t *testing.T) {
	r := NewPDFRenderer("")
	doc, err := r.Render(&model.Certificate{
		UserName:   "Zoë",
		SkillName:  "Python",
		IssuedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		VerifiedID: "python-u1-abc",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", doc[:8])
	}
}
