package tokenapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"vet-exam-orders/internal/platform/httpclient"
	"vet-exam-orders/internal/ports/auth"
)

// stubTransport responde siempre lo mismo y guarda el último request
// para inspeccionarlo.
type stubTransport struct {
	status int
	body   string

	lastMethod string
	lastPath   string
	lastAPIKey string
	lastBody   string
}

func (t *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.lastMethod = req.Method
	t.lastPath = req.URL.Path
	t.lastAPIKey = req.Header.Get("X-Api-Key")
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		t.lastBody = string(b)
	}
	return &http.Response{
		StatusCode: t.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(t.body)),
	}, nil
}

func newStubClient(tr *stubTransport) *Client {
	hc := httpclient.NewWithTransport(5*time.Second, tr)
	hc.BaseURL = "http://identity.local"
	return &Client{
		http:         hc,
		apiKey:       "test-key",
		apiKeyHeader: "X-Api-Key",
	}
}

func TestClient_VerifyToken_Success(t *testing.T) {
	tr := &stubTransport{
		status: http.StatusOK,
		body:   `{"user_id":"u-42","email":"vet@clinic.test","role":"admin"}`,
	}
	c := newStubClient(tr)

	claims, err := c.VerifyToken(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if claims.UserID != "u-42" || claims.Email != "vet@clinic.test" || claims.Role != auth.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if tr.lastMethod != http.MethodPost || tr.lastPath != "/v1/tokens/verify" {
		t.Fatalf("unexpected request: %s %s", tr.lastMethod, tr.lastPath)
	}
	if tr.lastAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", tr.lastAPIKey)
	}
	if !strings.Contains(tr.lastBody, "tok-abc") {
		t.Fatalf("expected token in body, got %q", tr.lastBody)
	}
}

func TestClient_VerifyToken_UnauthorizedStatus(t *testing.T) {
	tr := &stubTransport{status: http.StatusUnauthorized, body: `{"error":"expired"}`}
	c := newStubClient(tr)

	if _, err := c.VerifyToken(context.Background(), "tok-old"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_VerifyToken_EmptyToken(t *testing.T) {
	c := newStubClient(&stubTransport{status: http.StatusOK, body: `{}`})

	if _, err := c.VerifyToken(context.Background(), "   "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestVerifier_RejectsClaimsWithoutUserID(t *testing.T) {
	tr := &stubTransport{status: http.StatusOK, body: `{"user_id":"","role":"employee"}`}
	v := NewVerifier(newStubClient(tr))

	if _, err := v.Verify(context.Background(), "tok-abc"); err == nil {
		t.Fatalf("expected error for claims without user id")
	}
}

func TestVerifier_EmptyToken(t *testing.T) {
	v := NewVerifier(newStubClient(&stubTransport{status: http.StatusOK, body: `{}`}))

	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrTokenEmpty) {
		t.Fatalf("expected ErrTokenEmpty, got %v", err)
	}
}
