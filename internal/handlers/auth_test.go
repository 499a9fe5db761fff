package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

// fakeUserRepo stores users in memory and enforces email uniqueness the way
// the database index does.
type fakeUserRepo struct {
	nextID  int
	byID    map[int]types.User
	byEmail map[string]int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, byID: map[int]types.User{}, byEmail: map[string]int{}}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = r.nextID
	r.nextID++
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.byID[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int) error {
	user, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.byID, id)
	return nil
}

func newAuthTestServer(t *testing.T) (*httptest.Server, *fakeUserRepo) {
	t.Helper()

	repo := newFakeUserRepo()
	credentials, err := services.NewCredentialService("handler-test-secret-0123456789", 0, time.Hour)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, services.NewUserService(repo), credentials)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, repo
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerPayload() RegisterRequest {
	return RegisterRequest{
		Email:     "ada@example.com",
		Password:  "correct horse battery staple",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      types.RoleStudent,
	}
}

func TestRegister_CreatesUserAndIssuesToken(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[AuthResponse](t, resp)
	require.True(t, body.Success)
	require.NotEmpty(t, body.Token)
	require.Equal(t, "ada@example.com", body.User.Email)
	require.Equal(t, types.RoleStudent, body.User.Role)
	require.NotZero(t, body.User.ID)
}

func TestRegister_NeverReturnsPasswordHash(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw := decodeBody[map[string]any](t, resp)
	user, ok := raw["user"].(map[string]any)
	require.True(t, ok)
	_, leaked := user["password_hash"]
	require.False(t, leaked)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	require.False(t, body.Success)
	require.Equal(t, "user already exists", body.Message)
}

func TestRegister_EmailIsCaseInsensitive(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	upper := registerPayload()
	upper.Email = "ADA@Example.Com"
	resp = postJSON(t, server.URL+"/api/auth/register", upper)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRegister_ValidatesInput(t *testing.T) {
	server, _ := newAuthTestServer(t)

	cases := map[string]func(*RegisterRequest){
		"missing email":    func(r *RegisterRequest) { r.Email = "" },
		"missing password": func(r *RegisterRequest) { r.Password = "" },
		"missing name":     func(r *RegisterRequest) { r.FirstName = "  " },
		"missing role":     func(r *RegisterRequest) { r.Role = "" },
		"unknown role":     func(r *RegisterRequest) { r.Role = "superuser" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := registerPayload()
			mutate(&req)
			resp := postJSON(t, server.URL+"/api/auth/register", req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestRegister_RejectsMalformedJSON(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLogin_Succeeds(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/auth/login", LoginRequest{
		Email:    "Ada@example.com",
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[AuthResponse](t, resp)
	require.True(t, body.Success)
	require.NotEmpty(t, body.Token)
	require.Equal(t, "ada@example.com", body.User.Email)
}

func TestLogin_FailureMessageDoesNotDistinguishCause(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	unknown := postJSON(t, server.URL+"/api/auth/login", LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.Equal(t, http.StatusBadRequest, unknown.StatusCode)
	unknownBody := decodeBody[ErrorResponse](t, unknown)

	wrong := postJSON(t, server.URL+"/api/auth/login", LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong password",
	})
	require.Equal(t, http.StatusBadRequest, wrong.StatusCode)
	wrongBody := decodeBody[ErrorResponse](t, wrong)

	require.Equal(t, unknownBody.Message, wrongBody.Message)
	require.Equal(t, invalidCredentialsMessage, wrongBody.Message)
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	server, _ := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	auth := decodeBody[AuthResponse](t, resp)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, meResp.StatusCode)

	body := decodeBody[MeResponse](t, meResp)
	require.Equal(t, auth.User.ID, body.User.ID)
	require.Equal(t, "ada@example.com", body.User.Email)
}

func TestMe_RejectsBadTokens(t *testing.T) {
	server, _ := newAuthTestServer(t)

	for name, header := range map[string]string{
		"no header":     "",
		"not bearer":    "Basic abc",
		"garbage token": "Bearer not-a-jwt",
		"empty bearer":  "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/api/auth/me", nil)
			require.NoError(t, err)
			if header != "" {
				req.Header.Set("Authorization", header)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestMe_RejectsTokenForDeletedUser(t *testing.T) {
	server, repo := newAuthTestServer(t)

	resp := postJSON(t, server.URL+"/api/auth/register", registerPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	auth := decodeBody[AuthResponse](t, resp)

	require.NoError(t, repo.Delete(context.Background(), auth.User.ID))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)

	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
	meResp.Body.Close()
}
