package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
	"github.com/stretchr/testify/require"
)

const testToken = "good-token"

var testUser = &models.User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash", TwoFactorSecret: "SECRET"}

// fakeAuth accepts testToken for testUser and maps a few magic tokens onto
// the session errors.
type fakeAuth struct {
	signup func(username, email, password string) (*services.Session, error)
	login  func(email, password, code string) (*services.Session, error)
	enable func(userID string) (string, error)
}

func (f *fakeAuth) Signup(_ context.Context, username, email, password string) (*services.Session, error) {
	return f.signup(username, email, password)
}

func (f *fakeAuth) Login(_ context.Context, email, password, code string) (*services.Session, error) {
	return f.login(email, password, code)
}

func (f *fakeAuth) EnableTwoFactor(_ context.Context, userID string) (string, error) {
	return f.enable(userID)
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	switch token {
	case "":
		return nil, common.ErrTokenMissing
	case testToken:
		return testUser, nil
	case "expired":
		return nil, common.ErrTokenExpired
	case "orphan":
		return nil, common.ErrorNotFound
	default:
		return nil, common.ErrInvalidToken
	}
}

type fakeUsers struct {
	profile func(userID string) (*models.Profile, error)
	search  func(keyword, requester string) ([]models.UserSummary, error)
	follow  func(requester, target string) (bool, error)
	upload  func(userID string, u *services.Upload) (string, error)
}

func (f *fakeUsers) Profile(_ context.Context, userID string) (*models.Profile, error) {
	return f.profile(userID)
}

func (f *fakeUsers) Search(_ context.Context, keyword, requester string) ([]models.UserSummary, error) {
	return f.search(keyword, requester)
}

func (f *fakeUsers) Follow(_ context.Context, requester, target string) (bool, error) {
	return f.follow(requester, target)
}

func (f *fakeUsers) Unfollow(_ context.Context, requester, target string) (bool, error) {
	return f.follow(requester, target)
}

func (f *fakeUsers) UploadProfilePicture(_ context.Context, userID string, u *services.Upload) (string, error) {
	return f.upload(userID, u)
}

type fakePosts struct {
	feed    func(userID string, page, limit int) (*models.FeedPage, error)
	create  func(userID, content string, image *services.Upload) (*models.Post, error)
	get     func(id string) (*models.Post, error)
	list    func(userID string) ([]models.Post, error)
	like    func(postID, userID string) (bool, int, error)
	comment func(postID, userID, content string) (*models.Comment, error)
	del     func(postID, userID string) error
}

func (f *fakePosts) Feed(_ context.Context, userID string, page, limit int) (*models.FeedPage, error) {
	return f.feed(userID, page, limit)
}

func (f *fakePosts) Create(_ context.Context, userID, content string, image *services.Upload) (*models.Post, error) {
	return f.create(userID, content, image)
}

func (f *fakePosts) Get(_ context.Context, id string) (*models.Post, error) { return f.get(id) }

func (f *fakePosts) ListByUser(_ context.Context, userID string) ([]models.Post, error) {
	return f.list(userID)
}

func (f *fakePosts) Like(_ context.Context, postID, userID string) (bool, int, error) {
	return f.like(postID, userID)
}

func (f *fakePosts) Unlike(_ context.Context, postID, userID string) (bool, int, error) {
	return f.like(postID, userID)
}

func (f *fakePosts) Comment(_ context.Context, postID, userID, content string) (*models.Comment, error) {
	return f.comment(postID, userID, content)
}

func (f *fakePosts) Delete(_ context.Context, postID, userID string) error { return f.del(postID, userID) }

type fakeChats struct {
	create  func(requester, peer string) (*models.Chat, error)
	list    func(requester string) ([]models.Chat, error)
	get     func(chatID, requester string) (*models.Chat, error)
	history func(chatID, requester string) ([]models.Message, error)
	appendM func(chatID, requester, content string) (*models.Chat, error)
}

func (f *fakeChats) CreateOrGet(_ context.Context, requester, peer string) (*models.Chat, error) {
	return f.create(requester, peer)
}

func (f *fakeChats) List(_ context.Context, requester string) ([]models.Chat, error) {
	return f.list(requester)
}

func (f *fakeChats) Get(_ context.Context, chatID, requester string) (*models.Chat, error) {
	return f.get(chatID, requester)
}

func (f *fakeChats) History(_ context.Context, chatID, requester string) ([]models.Message, error) {
	return f.history(chatID, requester)
}

func (f *fakeChats) AppendMessage(_ context.Context, chatID, requester, content string) (*models.Chat, error) {
	return f.appendM(chatID, requester, content)
}

type fakeRelay struct {
	userID string
	serve  func(w http.ResponseWriter, r *http.Request) error
}

func (f *fakeRelay) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	f.userID = userID
	if f.serve != nil {
		return f.serve(w, r)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type fakeStorage struct {
	loc storage.Location
	err error
}

func (f *fakeStorage) Put(context.Context, string, string, []byte) error { return nil }
func (f *fakeStorage) Delete(context.Context, string) error              { return nil }
func (f *fakeStorage) Locate(context.Context, string) (storage.Location, error) {
	return f.loc, f.err
}

type testEnv struct {
	srv     *Server
	auth    *fakeAuth
	users   *fakeUsers
	posts   *fakePosts
	chats   *fakeChats
	relay   *fakeRelay
	storage *fakeStorage
	metrics *metrics.Metrics
	logs    *bytes.Buffer
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxUploadBytes = 1 << 10
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		auth:    &fakeAuth{},
		users:   &fakeUsers{},
		posts:   &fakePosts{},
		chats:   &fakeChats{},
		relay:   &fakeRelay{},
		storage: &fakeStorage{},
		metrics: metrics.New(),
		logs:    &bytes.Buffer{},
	}
	env.srv = NewServer(cfg, logging.NewJSONLogger(env.logs, "debug"), Deps{
		Auth:    env.auth,
		Users:   env.users,
		Posts:   env.posts,
		Chats:   env.chats,
		Relay:   env.relay,
		Storage: env.storage,
		Metrics: env.metrics,
	})
	return env
}

// do sends a request through the router. body may be nil, a string or any
// JSON-encodable value. An empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decodeBody(t, rec)["message"].(string)
	return msg
}
