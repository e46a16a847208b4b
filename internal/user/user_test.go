package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/notify"
	"github.com/roundtable/service/internal/storage"
	"github.com/roundtable/service/internal/upload"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
)

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*User
	follows   map[[2]string]bool
	setURLErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[string]*User{
			alice: {ID: alice, Name: "Alice", Email: "alice@example.com"},
			bob:   {ID: bob, Name: "Bob", Email: "bob@example.com"},
		},
		follows: map[[2]string]bool{},
	}
}

func (f *fakeStore) Create(_ context.Context, name, email string, passwordHash, googleID *string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrAlreadyExists
		}
	}
	u := &User{ID: fmt.Sprintf("u%d", len(f.users)), Name: name, Email: email, PasswordHash: passwordHash, GoogleID: googleID}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetByGoogleID(_ context.Context, googleID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) LinkGoogleID(_ context.Context, id, googleID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.GoogleID = &googleID
	cp := *u
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, id string, name, bio *string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if bio != nil {
		u.Bio = bio
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetProfileURL(_ context.Context, id, url string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setURLErr != nil {
		return nil, f.setURLErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.ProfileURL = &url
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &Profile{User: *u}
	for edge := range f.follows {
		if edge[1] == id {
			p.FollowerCount++
		}
		if edge[0] == id {
			p.FollowingCount++
		}
	}
	return p, nil
}

func (f *fakeStore) ToggleFollow(_ context.Context, followerID, followingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	edge := [2]string{followerID, followingID}
	if f.follows[edge] {
		delete(f.follows, edge)
		return false, nil
	}
	f.follows[edge] = true
	return true, nil
}

func (f *fakeStore) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[[2]string{followerID, followingID}], nil
}

func (f *fakeStore) Followers(_ context.Context, id string) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Summary{}
	for edge := range f.follows {
		if edge[1] == id {
			out = append(out, Summary{ID: edge[0], Name: f.users[edge[0]].Name})
		}
	}
	return out, nil
}

func (f *fakeStore) Followings(_ context.Context, id string) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Summary{}
	for edge := range f.follows {
		if edge[0] == id {
			out = append(out, Summary{ID: edge[1], Name: f.users[edge[1]].Name})
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func TestService_ToggleFollowNotifiesOnFollowOnly(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(newFakeStore(), notifier)
	ctx := context.Background()

	following, err := svc.ToggleFollow(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, following)

	following, err = svc.ToggleFollow(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, following)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, bob, notifier.sent[0].UserID)
	assert.Equal(t, notify.TypeFollow, notifier.sent[0].Type)
	assert.Equal(t, "Alice started following you", notifier.sent[0].Message)
}

func TestService_ToggleFollowErrors(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingNotifier{})

	_, err := svc.ToggleFollow(context.Background(), alice, alice)
	assert.ErrorIs(t, err, ErrSelfFollow)

	_, err = svc.ToggleFollow(context.Background(), alice, "33333333-3333-3333-3333-333333333333")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateRequiresOwner(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingNotifier{})
	name := "Mallory"

	_, err := svc.Update(context.Background(), bob, alice, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := svc.Update(context.Background(), alice, alice, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Mallory", u.Name)
}

type testEnv struct {
	router http.Handler
	store  *fakeStore
	files  *storage.MemoryStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	files := storage.NewMemoryStorage("http://files.test")
	images := upload.NewPipeline(files, upload.Options{Namespace: "profile-images", MaxBytes: 1 << 20}, logging.Nop())
	h := NewHandler(NewService(store, &recordingNotifier{}), images, logging.Nop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-User"); id != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/users/{id}", h.Get)
	r.Put("/users/{id}", h.Update)
	r.With(h.RequireSelf, images.Middleware("profileImage")).Post("/users/{id}/upload-image", h.UploadImage)
	r.Post("/users/{id}/follow", h.Follow)
	r.Get("/users/{id}/follow-status", h.FollowStatus)
	r.Get("/users/{id}/followers", h.Followers)

	return &testEnv{router: r, store: store, files: files}
}

func (e *testEnv) do(method, path, userID string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("X-User", userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func imageForm(t *testing.T, field, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="me.png"`, field))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestHandler_UploadImageLinksProfileURL(t *testing.T) {
	env := newTestEnv(t)
	body, ct := imageForm(t, "profileImage", "image/png")

	rec := env.do(http.MethodPost, "/users/"+alice+"/upload-image", alice, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data profileImageData
	decodeData(t, rec, &data)
	assert.True(t, strings.HasPrefix(data.ProfileURL, "http://files.test/profile-images/"), data.ProfileURL)
	require.NotNil(t, data.User.ProfileURL)
	assert.Equal(t, data.ProfileURL, *data.User.ProfileURL)
	assert.Equal(t, 1, env.files.Len())
}

func TestHandler_UploadImageForbiddenStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	body, ct := imageForm(t, "profileImage", "image/png")

	rec := env.do(http.MethodPost, "/users/"+alice+"/upload-image", bob, body, ct)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, env.files.Len())
}

func TestHandler_UploadImageRejectsType(t *testing.T) {
	env := newTestEnv(t)
	body, ct := imageForm(t, "profileImage", "image/gif")

	rec := env.do(http.MethodPost, "/users/"+alice+"/upload-image", alice, body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, 0, env.files.Len())
}

func TestHandler_UploadImageDiscardsWhenPersistFails(t *testing.T) {
	env := newTestEnv(t)
	env.store.setURLErr = errors.New("db down")
	body, ct := imageForm(t, "profileImage", "image/png")

	rec := env.do(http.MethodPost, "/users/"+alice+"/upload-image", alice, body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, env.files.Len())
}

func TestHandler_FollowFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users/"+bob+"/follow", alice, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var follow map[string]bool
	decodeData(t, rec, &follow)
	assert.True(t, follow["following"])

	rec = env.do(http.MethodGet, "/users/"+bob+"/follow-status", alice, nil, "")
	var status map[string]bool
	decodeData(t, rec, &status)
	assert.True(t, status["followStatus"])

	rec = env.do(http.MethodGet, "/users/"+bob+"/followers", "", nil, "")
	var followers map[string][]Summary
	decodeData(t, rec, &followers)
	require.Len(t, followers["followers"], 1)
	assert.Equal(t, alice, followers["followers"][0].ID)

	rec = env.do(http.MethodGet, "/users/"+bob, "", nil, "")
	var p Profile
	decodeData(t, rec, &p)
	assert.Equal(t, 1, p.FollowerCount)

	rec = env.do(http.MethodPost, "/users/"+alice+"/follow", alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateValidationAndOwnership(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/users/"+alice, bob, bytes.NewBufferString(`{"name":"X"}`), "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, "/users/"+alice, alice, bytes.NewBufferString(`{"name":""}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/users/"+alice, alice, bytes.NewBufferString(`{"bio":"Cooks a lot"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var u User
	decodeData(t, rec, &u)
	require.NotNil(t, u.Bio)
	assert.Equal(t, "Cooks a lot", *u.Bio)
}

func TestHandler_GetUnknownOrMalformedID(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/users/not-a-uuid", "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/users/33333333-3333-3333-3333-333333333333", "", nil, "").Code)
}

func TestUser_HidesCredentials(t *testing.T) {
	hash, gid := "secret-hash", "google-sub"
	data, err := json.Marshal(User{ID: alice, PasswordHash: &hash, GoogleID: &gid})
	require.NoError(t, err)
	assert.NotContains(t, string(data), hash)
	assert.NotContains(t, string(data), gid)
}

func TestRepository_ToggleFollow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM follows`).WithArgs(alice, bob).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO follows`).WithArgs(alice, bob).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM follows`).WithArgs(alice, bob).WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewRepository(mock)
	following, err := repo.ToggleFollow(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.True(t, following)

	following, err = repo.ToggleFollow(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.False(t, following)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	cols := []string{"id", "name", "email", "password_hash", "google_id", "bio", "profile_url", "created_at", "updated_at"}
	hash := "h"
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WithArgs("Alice@Example.com").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(alice, "Alice", "alice@example.com", &hash, (*string)(nil), (*string)(nil), (*string)(nil), now, now))
	mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows(cols))

	repo := NewRepository(mock)
	u, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, alice, u.ID)
	require.NotNil(t, u.PasswordHash)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
