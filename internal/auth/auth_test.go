package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roundtable/service/internal/config"
	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/user"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*user.User
	getErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*user.User{}}
}

func (f *fakeUsers) Create(_ context.Context, name, email string, passwordHash, googleID *string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return nil, user.ErrAlreadyExists
		}
	}
	u := &user.User{ID: fmt.Sprintf("user-%d", len(f.byID)+1), Name: name, Email: email, PasswordHash: passwordHash, GoogleID: googleID}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) GetByGoogleID(_ context.Context, googleID string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) LinkGoogleID(_ context.Context, id, googleID string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.GoogleID = &googleID
	return u, nil
}

type stubVerifier struct {
	id  *GoogleIdentity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (*GoogleIdentity, error) {
	return s.id, s.err
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour}
}

func newTestService(users Users, v Verifier) *Service {
	svc := NewService(users, v, testConfig())
	svc.cost = bcrypt.MinCost
	return svc
}

func TestService_RegisterAndLogin(t *testing.T) {
	users := newFakeUsers()
	svc := newTestService(users, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, " Ada ", "Ada@Example.com ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.User.Name)
	assert.Equal(t, "ada@example.com", res.User.Email)
	require.NotNil(t, res.User.PasswordHash)
	assert.NotEqual(t, "s3cret!", *res.User.PasswordHash)

	_, err = svc.Register(ctx, "Ada", "ada@example.com", "another")
	assert.ErrorIs(t, err, ErrEmailTaken)

	res, err = svc.Login(ctx, "ADA@example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginRejectsGoogleOnlyAccount(t *testing.T) {
	users := newFakeUsers()
	sub := "google-sub"
	_, err := users.Create(context.Background(), "G", "g@example.com", nil, &sub)
	require.NoError(t, err)

	_, err = newTestService(users, nil).Login(context.Background(), "g@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_TokenClaims(t *testing.T) {
	svc := newTestService(newFakeUsers(), nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	token, err := svc.issueToken(&user.User{ID: "u1", Email: "a@b.c", Name: "A"})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "a@b.c", claims["email"])
	assert.Equal(t, float64(fixed.Unix()), claims["iat"])
	assert.Equal(t, float64(fixed.Add(time.Hour).Unix()), claims["exp"])
}

func TestService_GoogleLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account", func(t *testing.T) {
		users := newFakeUsers()
		svc := newTestService(users, stubVerifier{id: &GoogleIdentity{Subject: "s1", Email: "new@example.com", EmailVerified: true}})

		res, err := svc.GoogleLogin(ctx, "cred")
		require.NoError(t, err)
		assert.Equal(t, "new", res.User.Name)
		require.NotNil(t, res.User.GoogleID)
		assert.Equal(t, "s1", *res.User.GoogleID)
		assert.Nil(t, res.User.PasswordHash)
	})

	t.Run("links existing email", func(t *testing.T) {
		users := newFakeUsers()
		hash := "x"
		existing, err := users.Create(ctx, "Ada", "ada@example.com", &hash, nil)
		require.NoError(t, err)
		svc := newTestService(users, stubVerifier{id: &GoogleIdentity{Subject: "s2", Email: "Ada@example.com", EmailVerified: true, Name: "Ada L"}})

		res, err := svc.GoogleLogin(ctx, "cred")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, res.User.ID)
		assert.Len(t, users.byID, 1)

		again, err := svc.GoogleLogin(ctx, "cred")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, again.User.ID)
	})

	t.Run("unverified email is rejected", func(t *testing.T) {
		svc := newTestService(newFakeUsers(), stubVerifier{id: &GoogleIdentity{Subject: "s3", Email: "x@example.com"}})
		_, err := svc.GoogleLogin(ctx, "cred")
		assert.ErrorIs(t, err, ErrInvalidGoogleToken)
	})

	t.Run("verification failure", func(t *testing.T) {
		svc := newTestService(newFakeUsers(), stubVerifier{err: errors.New("bad audience")})
		_, err := svc.GoogleLogin(ctx, "cred")
		assert.ErrorIs(t, err, ErrInvalidGoogleToken)
	})

	t.Run("disabled without verifier", func(t *testing.T) {
		_, err := newTestService(newFakeUsers(), nil).GoogleLogin(ctx, "cred")
		assert.ErrorIs(t, err, ErrInvalidGoogleToken)
	})
}

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("sub", map[string]interface{}{
		"email":          "a@example.com",
		"email_verified": "true",
		"name":           "A",
	})
	assert.Equal(t, &GoogleIdentity{Subject: "sub", Email: "a@example.com", EmailVerified: true, Name: "A"}, id)

	assert.False(t, identityFromClaims("sub", map[string]interface{}{"email_verified": false}).EmailVerified)
}

func TestGoogleVerifier_RejectsEmptyCredential(t *testing.T) {
	_, err := NewGoogleVerifier("client").Verify(context.Background(), "")
	assert.Error(t, err)
}

func newRouter(svc *Service) http.Handler {
	h := NewHandler(svc, logging.Nop())
	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/google", h.Google)
	r.With(middleware.RequireAuth("test-secret")).Get("/auth/me", h.Me)
	return r
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RegisterLoginMe(t *testing.T) {
	router := newRouter(newTestService(newFakeUsers(), nil))

	rec := post(router, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"s3cret!"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = post(router, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"s3cret!"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(router, "/auth/register", `{"name":"Ada","email":"not-an-email","password":"s3cret!"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(router, "/auth/login", `{"email":"ada@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(router, "/auth/login", `{"email":"ada@example.com","password":"s3cret!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.Token)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+env.Data.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Google(t *testing.T) {
	verifier := stubVerifier{id: &GoogleIdentity{Subject: "s1", Email: "g@example.com", EmailVerified: true, Name: "G"}}
	router := newRouter(newTestService(newFakeUsers(), verifier))

	assert.Equal(t, http.StatusBadRequest, post(router, "/auth/google", `{}`).Code)
	assert.Equal(t, http.StatusOK, post(router, "/auth/google", `{"credential":"abc"}`).Code)

	router = newRouter(newTestService(newFakeUsers(), stubVerifier{err: errors.New("expired")}))
	assert.Equal(t, http.StatusUnauthorized, post(router, "/auth/google", `{"credential":"abc"}`).Code)
}

func TestHandler_LoginStoreFailureIs500(t *testing.T) {
	users := newFakeUsers()
	users.getErr = errors.New("db down")
	router := newRouter(newTestService(users, nil))

	rec := post(router, "/auth/login", `{"email":"ada@example.com","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
