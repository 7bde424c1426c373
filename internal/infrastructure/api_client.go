package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of an error response body is kept in HTTPError
const maxErrorBody = 512

// APIClient talks to the platform API. It holds the session credential obtained by Login
// and attaches it to every call made through it.
type APIClient struct {
	config     domain.APIConfig
	httpClient *http.Client
	logger     *logger.LoggerAdapter
	metrics    *Metrics

	mu    sync.RWMutex
	token string
}

// videoPayload is the platform's video object
type videoPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	FileURL     string `json:"fileUrl"`
	NumComments int    `json:"numComments"`
	NumLikes    int    `json:"numLikes"`
	NumViews    int    `json:"numViews"`
	CreatedAt   string `json:"createdAt"`
	Thumbnail   *int   `json:"thumbnail"`
	File        *struct {
		ID string `json:"id"`
	} `json:"file"`
	User *struct {
		Name string `json:"name"`
	} `json:"user"`
	Tags []struct {
		ID string `json:"id"`
	} `json:"tags"`
}

type listPayload struct {
	Results []videoPayload `json:"results"`
}

type loginPayload struct {
	Token string `json:"token"`
}

// toDescriptor converts the wire object into the domain snapshot
func (p *videoPayload) toDescriptor() *domain.VideoDescriptor {
	desc := &domain.VideoDescriptor{
		ID:             p.ID,
		Title:          p.Title,
		NumComments:    p.NumComments,
		NumLikes:       p.NumLikes,
		NumViews:       p.NumViews,
		CreatedAt:      p.CreatedAt,
		FileURL:        p.FileURL,
		ThumbnailIndex: p.Thumbnail,
		TagIDs:         make([]string, 0, len(p.Tags)),
	}
	if p.File != nil {
		desc.FileID = p.File.ID
	}
	if p.User != nil {
		desc.AuthorName = p.User.Name
	}
	for _, tag := range p.Tags {
		desc.TagIDs = append(desc.TagIDs, tag.ID)
	}
	return desc
}

// NewAPIClient creates a new API client. Every call is bounded by config.Timeout.
func NewAPIClient(config domain.APIConfig, log *logger.LoggerAdapter, metrics *Metrics) *APIClient {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &APIClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log,
		metrics:    metrics,
	}
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
// Every failure is an *domain.AuthError.
func (c *APIClient) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", &domain.AuthError{Err: err}
	}

	endpoint := c.config.BaseURL + "/user/login"
	var payload loginPayload
	if err := c.doJSON(ctx, http.MethodPost, "login", endpoint, bytes.NewReader(body), nil, &payload); err != nil {
		c.logger.LogError("API login failed", zap.Error(err))
		return "", &domain.AuthError{Err: err}
	}
	if payload.Token == "" {
		err := errors.New("response carries no token")
		c.logger.LogError("API login failed", zap.Error(err))
		return "", &domain.AuthError{Err: err}
	}

	c.SetToken(payload.Token)
	c.logger.Base().Info("API login succeeded")
	return payload.Token, nil
}

// Token returns the held credential, empty when not logged in
func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the held credential
func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ListVideos fetches one page of the video listing
func (c *APIClient) ListVideos(ctx context.Context, params domain.ListParams) ([]domain.VideoDescriptor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if c.Token() == "" {
		c.logger.Base().Warn("Listing videos without a session token")
	}

	query := url.Values{}
	query.Set("sort", string(params.Sort))
	query.Set("rating", string(params.Rating))
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("limit", strconv.Itoa(params.Limit))
	query.Set("subscribed", strconv.FormatBool(params.Subscribed))
	endpoint := c.config.BaseURL + "/videos?" + query.Encode()

	var payload listPayload
	if err := c.doJSON(ctx, http.MethodGet, "videos", endpoint, nil, nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	videos := make([]domain.VideoDescriptor, 0, len(payload.Results))
	for i := range payload.Results {
		videos = append(videos, *payload.Results[i].toDescriptor())
	}

	c.logger.Base().Debug("Listed videos",
		zap.String("sort", string(params.Sort)),
		zap.Int("page", params.Page),
		zap.Int("count", len(videos)))
	return videos, nil
}

// getVideo fetches a single video object. A 404 maps to domain.ErrNotFound.
func (c *APIClient) getVideo(ctx context.Context, videoID string) (*videoPayload, error) {
	endpoint := c.config.BaseURL + "/video/" + url.PathEscape(videoID)

	var payload videoPayload
	if err := c.doJSON(ctx, http.MethodGet, "video", endpoint, nil, nil, &payload); err != nil {
		var httpErr *domain.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &payload, nil
}

// doJSON performs one authenticated API call and decodes a JSON response into out
func (c *APIClient) doJSON(ctx context.Context, method, endpointName, endpoint string, body io.Reader, headers map[string]string, out interface{}) error {
	started := time.Now()
	status := "error"
	defer func() { c.metrics.ObserveAPIRequest(endpointName, status, started) }()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &domain.TransportError{Op: method, URL: endpoint, Err: err}
		}
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// authorize attaches the bearer credential when one is held
func (c *APIClient) authorize(req *http.Request) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// newHTTPError builds an HTTPError keeping a short prefix of the body for diagnostics
func newHTTPError(resp *http.Response) *domain.HTTPError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.HTTPError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       strings.TrimSpace(string(snippet)),
	}
}
