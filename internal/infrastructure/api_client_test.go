package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

// fakeAPI is an in-memory stand-in for the platform API and file host
type fakeAPI struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	videos   map[string]map[string]interface{}
	variants []map[string]interface{}
	requests []*http.Request
	token    string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, videos: make(map[string]map[string]interface{}), token: "tok-123"}
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", f.handleLogin)
	mux.HandleFunc("/videos", f.handleList)
	mux.HandleFunc("/video/", f.handleVideo)
	mux.HandleFunc("/file/", f.handleVariants)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) config() domain.APIConfig {
	config := domain.DefaultConfig().API
	config.BaseURL = f.server.URL
	config.FilesURL = f.server.URL
	config.Timeout = 5 * time.Second
	return config
}

func (f *fakeAPI) addVideo(id string, video map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video["id"] = id
	f.videos[id] = video
}

func (f *fakeAPI) requestsTo(prefix string) []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*http.Request
	for _, r := range f.requests {
		if strings.HasPrefix(r.URL.Path, prefix) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body["email"] != "me@example.com" || body["password"] != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"errors.invalidLogin"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"token": f.token})
}

func (f *fakeAPI) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]map[string]interface{}, 0, len(f.videos))
	for _, v := range f.videos {
		results = append(results, v)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"count": len(results), "results": results})
}

func (f *fakeAPI) handleVideo(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/video/")
	f.mu.Lock()
	video, ok := f.videos[id]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"errors.notFound"}`))
		return
	}
	json.NewEncoder(w).Encode(video)
}

func (f *fakeAPI) handleVariants(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	json.NewEncoder(w).Encode(f.variants)
}

func TestAPIClient_Login(t *testing.T) {
	api := newFakeAPI(t)
	client := NewAPIClient(api.config(), nil, nil)

	token, err := client.Login(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "tok-123", client.Token())
}

func TestAPIClient_LoginFailureIsAuthError(t *testing.T) {
	api := newFakeAPI(t)
	client := NewAPIClient(api.config(), nil, nil)

	_, err := client.Login(context.Background(), "me@example.com", "wrong")
	require.Error(t, err)

	var authErr *domain.AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Empty(t, client.Token())
}

func TestAPIClient_LoginWithoutTokenIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{}}`))
	}))
	defer server.Close()

	config := domain.DefaultConfig().API
	config.BaseURL = server.URL
	_, err := NewAPIClient(config, nil, nil).Login(context.Background(), "a", "b")

	var authErr *domain.AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestAPIClient_LoginTransportFailureIsAuthError(t *testing.T) {
	config := domain.DefaultConfig().API
	config.BaseURL = "http://127.0.0.1:1"
	config.Timeout = time.Second
	_, err := NewAPIClient(config, nil, nil).Login(context.Background(), "a", "b")

	var authErr *domain.AuthError
	require.True(t, errors.As(err, &authErr))
	var transportErr *domain.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestAPIClient_ListVideos(t *testing.T) {
	api := newFakeAPI(t)
	thumb := 3
	api.addVideo("abc", map[string]interface{}{
		"title":       "First",
		"fileUrl":     api.server.URL + "/file/f1?expires=1700000000&hash=x",
		"file":        map[string]interface{}{"id": "f1"},
		"thumbnail":   thumb,
		"user":        map[string]interface{}{"name": "alice"},
		"numComments": 4,
		"numLikes":    5,
		"numViews":    6,
		"tags":        []map[string]interface{}{{"id": "dance"}, {"id": "mmd"}},
		"createdAt":   "2024-01-02T03:04:05.000Z",
	})

	client := NewAPIClient(api.config(), nil, nil)
	client.SetToken("tok-123")

	params := domain.DefaultListParams()
	params.Rating = domain.RatingEcchi
	params.Page = 2
	videos, err := client.ListVideos(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, videos, 1)

	video := videos[0]
	assert.Equal(t, "abc", video.ID)
	assert.Equal(t, "First", video.Title)
	assert.Equal(t, "alice", video.AuthorName)
	assert.Equal(t, 4, video.NumComments)
	assert.Equal(t, 5, video.NumLikes)
	assert.Equal(t, 6, video.NumViews)
	assert.Equal(t, []string{"dance", "mmd"}, video.TagIDs)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", video.CreatedAt)
	assert.Equal(t, "f1", video.FileID)
	require.NotNil(t, video.ThumbnailIndex)
	assert.Equal(t, 3, *video.ThumbnailIndex)

	reqs := api.requestsTo("/videos")
	require.Len(t, reqs, 1)
	query := reqs[0].URL.Query()
	assert.Equal(t, "date", query.Get("sort"))
	assert.Equal(t, "ecchi", query.Get("rating"))
	assert.Equal(t, "2", query.Get("page"))
	assert.Equal(t, "32", query.Get("limit"))
	assert.Equal(t, "false", query.Get("subscribed"))
	assert.Equal(t, "Bearer tok-123", reqs[0].Header.Get("Authorization"))
}

func TestAPIClient_ListVideosUnauthenticated(t *testing.T) {
	api := newFakeAPI(t)
	client := NewAPIClient(api.config(), nil, nil)

	_, err := client.ListVideos(context.Background(), domain.DefaultListParams())
	require.NoError(t, err)

	reqs := api.requestsTo("/videos")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Header.Get("Authorization"))
}

func TestAPIClient_ListVideosRejectsInvalidParams(t *testing.T) {
	api := newFakeAPI(t)
	client := NewAPIClient(api.config(), nil, nil)

	params := domain.DefaultListParams()
	params.Sort = "random"
	_, err := client.ListVideos(context.Background(), params)
	assert.Error(t, err)
	assert.Empty(t, api.requestsTo("/videos"))
}

func TestAPIClient_ServerErrorIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	config := domain.DefaultConfig().API
	config.BaseURL = server.URL
	_, err := NewAPIClient(config, nil, nil).ListVideos(context.Background(), domain.DefaultListParams())

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.True(t, domain.IsTransient(err))
}
