package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatarchive/internal/cache"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

type fakeUsers struct {
	users   []models.User
	gotQ    repository.ListQuery
	gotF    repository.UserFilter
	calls   int
	listErr error
	// onList runs while the list is being read.
	onList func()
}

func (f *fakeUsers) List(_ context.Context, q repository.ListQuery, filter repository.UserFilter) (*models.Page[models.User], error) {
	f.calls++
	f.gotQ, f.gotF = q, filter
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	if q.Sort != nil && q.Sort.Column != "name" {
		return nil, repository.ErrInvalidSort
	}
	return &models.Page[models.User]{Page: q.Page, PerPage: q.PerPage, Total: int64(len(f.users)), Items: f.users}, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

type fakeChannels struct {
	channels   []models.Channel
	members    []models.User
	gotChannel string
}

func (f *fakeChannels) List(_ context.Context, q repository.ListQuery) (*models.Page[models.Channel], error) {
	return &models.Page[models.Channel]{Page: q.Page, PerPage: q.PerPage, Total: int64(len(f.channels)), Items: f.channels}, nil
}

func (f *fakeChannels) GetByID(_ context.Context, id string) (*models.Channel, error) {
	for _, ch := range f.channels {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, nil
}

func (f *fakeChannels) ListMembers(_ context.Context, channelID string, q repository.ListQuery) (*models.Page[models.User], error) {
	f.gotChannel = channelID
	if q.Sort != nil && q.Sort.Column != "name" {
		return nil, repository.ErrInvalidSort
	}
	return &models.Page[models.User]{Page: q.Page, PerPage: q.PerPage, Total: int64(len(f.members)), Items: f.members}, nil
}

type fakeMessages struct {
	messages []models.Message
	gotF     repository.MessageFilter
	getErr   error
}

func (f *fakeMessages) List(_ context.Context, q repository.ListQuery, filter repository.MessageFilter) (*models.Page[models.Message], error) {
	f.gotF = filter
	return &models.Page[models.Message]{Page: q.Page, PerPage: q.PerPage, Total: int64(len(f.messages)), Items: f.messages}, nil
}

func (f *fakeMessages) Get(_ context.Context, channelID, id string) (*models.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, m := range f.messages {
		if m.ChannelID == channelID && m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

type fakeEmojis struct{ emojis []models.Emoji }

func (f *fakeEmojis) List(_ context.Context, q repository.ListQuery) (*models.Page[models.Emoji], error) {
	return &models.Page[models.Emoji]{Page: q.Page, PerPage: q.PerPage, Total: int64(len(f.emojis)), Items: f.emojis}, nil
}

type fakeApps struct {
	apps map[uuid.UUID]*models.App
	err  error
}

func (f *fakeApps) Create(_ context.Context, name string, description *string, secretHash string) (*models.App, error) {
	app := &models.App{ID: uuid.New(), Name: name, Description: description, SecretHash: secretHash}
	f.apps[app.ID] = app
	return app, nil
}

func (f *fakeApps) GetByID(_ context.Context, id uuid.UUID) (*models.App, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.apps[id], nil
}

// memCache stores pages as JSON under per-resource generations, like the
// Redis cache does.
type memCache struct {
	pages map[string][]byte
	gens  map[string]int64
	hits  int
}

func newMemCache() *memCache {
	return &memCache{pages: map[string][]byte{}, gens: map[string]int64{}}
}

func (m *memCache) slotKey(s cache.Slot) string {
	return fmt.Sprintf("%s|%d|%s", s.Resource, s.Gen, s.Key)
}

func (m *memCache) Get(_ context.Context, resource, key string, dst any) (cache.Slot, bool) {
	slot := cache.NewSlot(resource, key, m.gens[resource])
	b, ok := m.pages[m.slotKey(slot)]
	if !ok {
		return slot, false
	}
	m.hits++
	return slot, json.Unmarshal(b, dst) == nil
}

func (m *memCache) Set(_ context.Context, slot cache.Slot, v any) {
	b, _ := json.Marshal(v)
	m.pages[m.slotKey(slot)] = b
}

func (m *memCache) bump(resource string) { m.gens[resource]++ }

var errBoom = errors.New("boom")

func serve(t *testing.T, method, path, body string, register func(r *gin.Engine)) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T { return &v }
