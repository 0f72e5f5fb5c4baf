package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/shared"
	_ "github.com/ledgerline/ledgerline/testing"
)

type stubStore struct {
	customer *customers.Customer
}

func (s *stubStore) Create(ctx context.Context, c customers.Customer) (customers.Customer, error) {
	c.ID = "new-customer"
	return c, nil
}

func (s *stubStore) GetByID(ctx context.Context, id string) (*customers.Customer, error) {
	if s.customer == nil || s.customer.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.customer, nil
}

func (s *stubStore) GetByUsername(ctx context.Context, username string) (*customers.Customer, error) {
	if s.customer == nil || s.customer.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.customer, nil
}

func (s *stubStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.customer != nil && s.customer.Username == username, nil
}

func (s *stubStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.customer != nil && s.customer.Email == email, nil
}

func (s *stubStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return nil
}

func newAuthHandler(t *testing.T, store auth.CustomerStore) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(nil, auth.NewService(store, nil, nil, nil, nil), sessionManager, csrfManager)
	return handler, sessionManager
}

func TestCSRFEndpointIssuesToken(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleCSRFForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["csrf_token"] == "" {
		t.Fatalf("expected csrf token in body")
	}
	if sess.Get(shared.CSRFSessionKey) != body["csrf_token"] {
		t.Fatalf("token in body does not match session")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Correct1!pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	handler, sessionManager := newAuthHandler(t, &stubStore{customer: &customers.Customer{
		ID:           "c1",
		Username:     "alice",
		PasswordHash: string(hashed),
	}})

	body := `{"username":"alice","password":"wrongpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "invalid username or password") {
		t.Fatalf("expected generic credential error, got %s", res.Body.String())
	}
	if sess.Customer() != "" {
		t.Fatalf("session must not be bound on failed login")
	}
}

func TestLoginBindsSession(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Correct1!pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	handler, sessionManager := newAuthHandler(t, &stubStore{customer: &customers.Customer{
		ID:           "c1",
		Username:     "alice",
		PasswordHash: string(hashed),
	}})

	body := `{"username":"alice","password":"Correct1!pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if sess.Customer() != "c1" {
		t.Fatalf("expected session bound to c1, got %q", sess.Customer())
	}
	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["username"] != "alice" {
		t.Fatalf("expected username in response, got %v", resp)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	handler, _ := newAuthHandler(t, &stubStore{})

	body := `{"first_name":"Alice","last_name":"Smith","email":"alice@example.com","phone":"1234567890","username":"alice","password":"weak"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res := httptest.NewRecorder()
	handler.HandleRegisterForTest(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "password") {
		t.Fatalf("expected password detail, got %s", res.Body.String())
	}
}
