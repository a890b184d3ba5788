package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/dbx"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/chats"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/follows"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// fakeStore is an in-memory database shared by the fake repositories.
type fakeStore struct {
	mu sync.Mutex

	users    map[string]*models.User
	follows  map[[2]string]time.Time
	posts    map[string]*models.Post
	likes    map[string][]string
	comments map[string][]models.Comment
	chats    map[string]*models.Chat
	members  map[string][]string
	messages map[string][]models.Message

	seq        int
	feedOffset int   // last offset passed to Feed
	err        error // returned by every call when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.User{},
		follows:  map[[2]string]time.Time{},
		posts:    map[string]*models.Post{},
		likes:    map[string][]string{},
		comments: map[string][]models.Comment{},
		chats:    map[string]*models.Chat{},
		members:  map[string][]string{},
		messages: map[string][]models.Message{},
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *fakeStore) tick() time.Time {
	s.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

func (s *fakeStore) addUser(id, username, email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Username: username, Email: email, CreatedAt: s.tick()}
	s.users[id] = u
	return u
}

func (s *fakeStore) summary(id string) models.UserSummary {
	if u, ok := s.users[id]; ok {
		return u.Summary()
	}
	return models.UserSummary{ID: id}
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsers{m.s} }
func (m *fakeRepoManager) Follows(dbx.DBTX) follows.Repository          { return &fakeFollows{m.s} }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository              { return &fakePosts{m.s} }
func (m *fakeRepoManager) Chats(dbx.DBTX) chats.Repository              { return &fakeChats{m.s} }

// --- users ---

type fakeUsers struct{ s *fakeStore }

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return f.s.err
	}
	for _, x := range f.s.users {
		if x.Username == u.Username || x.Email == u.Email {
			return common.ErrorConflict
		}
	}
	u.CreatedAt = f.s.tick()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.s.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return false, f.s.err
	}
	for _, u := range f.s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) EnableTwoFactor(ctx context.Context, id, secret string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = secret
	return nil
}

func (f *fakeUsers) SetProfilePicture(ctx context.Context, id, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.ProfilePicture = key
	return nil
}

func (f *fakeUsers) Search(ctx context.Context, keyword, excludeID string, limit int) ([]models.UserSummary, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	kw := strings.ToLower(keyword)
	out := []models.UserSummary{}
	for _, u := range f.s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), kw) || strings.Contains(strings.ToLower(u.Email), kw) {
			out = append(out, u.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- follows ---

type fakeFollows struct{ s *fakeStore }

func (f *fakeFollows) Follow(ctx context.Context, a, b string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.follows[[2]string{a, b}]; ok {
		return false, nil
	}
	f.s.follows[[2]string{a, b}] = f.s.tick()
	return true, nil
}

func (f *fakeFollows) Unfollow(ctx context.Context, a, b string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.follows[[2]string{a, b}]; !ok {
		return false, nil
	}
	delete(f.s.follows, [2]string{a, b})
	return true, nil
}

func (f *fakeFollows) Followers(ctx context.Context, id string) ([]models.UserSummary, error) {
	return f.edges(func(k [2]string) (string, bool) { return k[0], k[1] == id })
}

func (f *fakeFollows) Following(ctx context.Context, id string) ([]models.UserSummary, error) {
	return f.edges(func(k [2]string) (string, bool) { return k[1], k[0] == id })
}

func (f *fakeFollows) edges(match func([2]string) (string, bool)) ([]models.UserSummary, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.UserSummary{}
	for k := range f.s.follows {
		if other, ok := match(k); ok {
			out = append(out, f.s.summary(other))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- posts ---

type fakePosts struct{ s *fakeStore }

func (f *fakePosts) Create(ctx context.Context, p *models.Post) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return f.s.err
	}
	p.CreatedAt = f.s.tick()
	cp := *p
	f.s.posts[p.ID] = &cp
	return nil
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.posts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	cp.Author = f.s.summary(p.UserID)
	return &cp, nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.posts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.posts, id)
	delete(f.s.likes, id)
	delete(f.s.comments, id)
	return nil
}

func (f *fakePosts) feed(userID string) []models.Post {
	out := []models.Post{}
	for _, p := range f.s.posts {
		if _, follows := f.s.follows[[2]string{userID, p.UserID}]; p.UserID == userID || follows {
			cp := *p
			cp.Author = f.s.summary(p.UserID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakePosts) Feed(ctx context.Context, userID string, limit, offset int) ([]models.Post, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.feedOffset = offset
	all := f.feed(userID)
	if offset >= len(all) {
		return []models.Post{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakePosts) CountFeed(ctx context.Context, userID string) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return 0, f.s.err
	}
	return len(f.feed(userID)), nil
}

func (f *fakePosts) ListByUser(ctx context.Context, userID string) ([]models.Post, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.Post{}
	for _, p := range f.feed(userID) {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePosts) Like(ctx context.Context, postID, userID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, id := range f.s.likes[postID] {
		if id == userID {
			return false, nil
		}
	}
	f.s.likes[postID] = append(f.s.likes[postID], userID)
	return true, nil
}

func (f *fakePosts) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	likes := f.s.likes[postID]
	for i, id := range likes {
		if id == userID {
			f.s.likes[postID] = append(likes[:i:i], likes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePosts) CountLikes(ctx context.Context, postID string) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.s.likes[postID]), nil
}

func (f *fakePosts) LoadLikes(ctx context.Context, ids []string) (map[string][]string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := map[string][]string{}
	for _, id := range ids {
		if l := f.s.likes[id]; len(l) > 0 {
			out[id] = append([]string(nil), l...)
		}
	}
	return out, nil
}

func (f *fakePosts) AddComment(ctx context.Context, c *models.Comment) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c.CreatedAt = f.s.tick()
	cp := *c
	cp.Author = f.s.summary(c.UserID)
	f.s.comments[c.PostID] = append(f.s.comments[c.PostID], cp)
	return nil
}

func (f *fakePosts) LoadComments(ctx context.Context, ids []string) (map[string][]models.Comment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := map[string][]models.Comment{}
	for _, id := range ids {
		if c := f.s.comments[id]; len(c) > 0 {
			out[id] = append([]models.Comment(nil), c...)
		}
	}
	return out, nil
}

// --- chats ---

type fakeChats struct{ s *fakeStore }

func (f *fakeChats) Insert(ctx context.Context, c *models.Chat) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, x := range f.s.chats {
		if x.PairKey == c.PairKey {
			return false, nil
		}
	}
	c.CreatedAt = f.s.tick()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	f.s.chats[c.ID] = &cp
	return true, nil
}

func (f *fakeChats) GetByPairKey(ctx context.Context, key string) (*models.Chat, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, x := range f.s.chats {
		if x.PairKey == key {
			cp := *x
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeChats) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	x, ok := f.s.chats[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *x
	return &cp, nil
}

func (f *fakeChats) AddParticipants(ctx context.Context, chatID string, ids []string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.members[chatID] = append(f.s.members[chatID], ids...)
	return nil
}

func (f *fakeChats) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, id := range f.s.members[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChats) Participants(ctx context.Context, chatIDs []string) (map[string][]models.UserSummary, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := map[string][]models.UserSummary{}
	for _, c := range chatIDs {
		for _, id := range f.s.members[c] {
			out[c] = append(out[c], f.s.summary(id))
		}
	}
	return out, nil
}

func (f *fakeChats) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.Chat{}
	for id, members := range f.s.members {
		for _, m := range members {
			if m == userID {
				out = append(out, *f.s.chats[id])
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeChats) Touch(ctx context.Context, chatID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.chats[chatID].UpdatedAt = f.s.tick()
	return nil
}

func (f *fakeChats) AddMessage(ctx context.Context, m *models.Message) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m.CreatedAt = f.s.tick()
	cp := *m
	cp.Sender = f.s.summary(m.SenderID)
	f.s.messages[m.ChatID] = append(f.s.messages[m.ChatID], cp)
	return nil
}

func (f *fakeChats) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]models.Message{}, f.s.messages[chatID]...), nil
}

// --- storage ---

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (f *fakeStorage) Put(ctx context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return f.deleteErr
}

func (f *fakeStorage) Locate(ctx context.Context, key string) (storage.Location, error) {
	return storage.Location{Path: key}, nil
}

// pngBytes is the smallest header http.DetectContentType recognises as PNG.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
