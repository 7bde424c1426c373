package infrastructure

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	sourceVariantName = "Source"
	defaultFormat     = "mp4"
)

// variantPayload is one downloadable rendition of a video file
type variantPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Src  struct {
		Download string `json:"download"`
	} `json:"src"`
}

// VideoResolver turns video ids into metadata snapshots and signed download locations
type VideoResolver struct {
	client     *APIClient
	filesURL   string
	signSuffix string
	logger     *logger.LoggerAdapter
}

// NewVideoResolver creates a resolver that calls the API through client
func NewVideoResolver(client *APIClient, config domain.APIConfig, log *logger.LoggerAdapter) *VideoResolver {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &VideoResolver{
		client:     client,
		filesURL:   strings.TrimRight(config.FilesURL, "/"),
		signSuffix: config.SignSuffix,
		logger:     log,
	}
}

// SigningDigest returns the lowercase hex SHA-1 of fileID + "_" + expires + suffix
func SigningDigest(fileID, expires, suffix string) string {
	sum := sha1.Sum([]byte(fileID + "_" + expires + suffix))
	return hex.EncodeToString(sum[:])
}

// FetchMetadata fetches the metadata snapshot of a video
func (r *VideoResolver) FetchMetadata(ctx context.Context, videoID string) (*domain.VideoDescriptor, error) {
	payload, err := r.client.getVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata of video %s: %w", videoID, err)
	}
	return payload.toDescriptor(), nil
}

// ResolveSource computes a fresh signed download link for the best available variant
func (r *VideoResolver) ResolveSource(ctx context.Context, videoID string) (*domain.ResolvedSource, error) {
	video, err := r.FetchMetadata(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.FileURL == "" || video.FileID == "" {
		return nil, fmt.Errorf("video %s lacks fileUrl or file.id: %w", videoID, domain.ErrIncompleteMetadata)
	}

	expires, err := expiresParam(video.FileURL)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}

	digest := SigningDigest(video.FileID, expires, r.signSuffix)
	var variants []variantPayload
	headers := map[string]string{"X-Version": digest}
	if err := r.client.doJSON(ctx, http.MethodGet, "variants", video.FileURL, nil, headers, &variants); err != nil {
		return nil, fmt.Errorf("failed to list variants of video %s: %w", videoID, err)
	}

	variant := selectVariant(variants)
	if variant == nil {
		return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrNoDownloadLink)
	}
	if variant.Name != sourceVariantName {
		r.logger.Base().Warn("Source variant unavailable, downloading lower quality",
			zap.String("video_id", videoID),
			zap.String("variant", variant.Name))
	}

	source := &domain.ResolvedSource{
		DownloadURL: normalizeDownloadURL(variant.Src.Download),
		Format:      formatFromMIME(variant.Type),
		VariantName: variant.Name,
	}
	r.logger.Base().Debug("Resolved download link",
		zap.String("video_id", videoID),
		zap.String("variant", source.VariantName),
		zap.String("format", source.Format))
	return source, nil
}

// ResolveThumbnail computes the thumbnail image URL of a video
func (r *VideoResolver) ResolveThumbnail(ctx context.Context, videoID string) (*domain.ThumbnailTarget, error) {
	video, err := r.FetchMetadata(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return ThumbnailTargetFor(r.filesURL, video)
}

// ThumbnailTargetFor builds the thumbnail location from a metadata snapshot
func ThumbnailTargetFor(filesURL string, video *domain.VideoDescriptor) (*domain.ThumbnailTarget, error) {
	if video.FileID == "" || video.ThumbnailIndex == nil {
		return nil, fmt.Errorf("video %s lacks file.id or thumbnail: %w", video.ID, domain.ErrIncompleteMetadata)
	}
	index := *video.ThumbnailIndex
	return &domain.ThumbnailTarget{
		URL:    fmt.Sprintf("%s/image/original/%s/thumbnail-%02d.jpg", strings.TrimRight(filesURL, "/"), video.FileID, index),
		FileID: video.FileID,
		Index:  index,
	}, nil
}

// expiresParam extracts the expires query parameter of a signed file URL
func expiresParam(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedLink, err)
	}
	expires := parsed.Query().Get("expires")
	if expires == "" {
		return "", fmt.Errorf("%w: no expires parameter", domain.ErrMalformedLink)
	}
	return expires, nil
}

// selectVariant prefers the Source rendition, falling back to the first one with a download URL
func selectVariant(variants []variantPayload) *variantPayload {
	for i := range variants {
		if variants[i].Name == sourceVariantName && variants[i].Src.Download != "" {
			return &variants[i]
		}
	}
	for i := range variants {
		if variants[i].Src.Download != "" {
			return &variants[i]
		}
	}
	return nil
}

// formatFromMIME returns the subtype of a MIME type such as video/mp4
func formatFromMIME(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i >= 0 && i < len(mimeType)-1 {
		return mimeType[i+1:]
	}
	return defaultFormat
}

// normalizeDownloadURL turns protocol-relative links into https ones
func normalizeDownloadURL(link string) string {
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}
