package domain

import "context"

// Downloader fetches one remote file to a local path with resume support
type Downloader interface {
	// Fetch streams url into path, resuming from whatever the local file already holds
	Fetch(ctx context.Context, videoID, url, path string) (*TransferResult, error)
}

// TransferResult is the final state of a completed transfer
type TransferResult struct {
	Path     string
	Size     int64
	Attempts int
}

// Resolver turns a video identifier into metadata and signed download locations
type Resolver interface {
	FetchMetadata(ctx context.Context, videoID string) (*VideoDescriptor, error)
	ResolveSource(ctx context.Context, videoID string) (*ResolvedSource, error)
	ResolveThumbnail(ctx context.Context, videoID string) (*ThumbnailTarget, error)
}

// Lister enumerates one page of videos
type Lister interface {
	ListVideos(ctx context.Context, params ListParams) ([]VideoDescriptor, error)
}

// ThumbnailFetcher downloads a thumbnail image, best effort
type ThumbnailFetcher interface {
	FetchThumbnail(ctx context.Context, videoID string, target *ThumbnailTarget) (string, error)
}
