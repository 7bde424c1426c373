package domain

import "fmt"

// VideoDescriptor is the metadata snapshot of a video taken at listing time
type VideoDescriptor struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	AuthorName     string   `json:"author_name"`
	NumComments    int      `json:"num_comments"`
	NumLikes       int      `json:"num_likes"`
	NumViews       int      `json:"num_views"`
	TagIDs         []string `json:"tag_ids"`
	CreatedAt      string   `json:"created_at"`
	FileURL        string   `json:"file_url,omitempty"`
	FileID         string   `json:"file_id,omitempty"`
	ThumbnailIndex *int     `json:"thumbnail_index,omitempty"`
}

// ResolvedSource is a signed, short-lived download link for one video.
// It is produced fresh per download attempt and never cached.
type ResolvedSource struct {
	DownloadURL  string
	Format       string // file extension, e.g. "mp4"
	VariantName  string
	ExpectedSize int64 // 0 when unknown
}

// ThumbnailTarget is the computed thumbnail image location for a video
type ThumbnailTarget struct {
	URL    string
	FileID string
	Index  int
}

// ListSort is a listing sort order
type ListSort string

const (
	SortDate       ListSort = "date"
	SortTrending   ListSort = "trending"
	SortPopularity ListSort = "popularity"
	SortViews      ListSort = "views"
	SortLikes      ListSort = "likes"
)

// ListRating is a listing content rating filter
type ListRating string

const (
	RatingAll     ListRating = "all"
	RatingGeneral ListRating = "general"
	RatingEcchi   ListRating = "ecchi"
)

// ListParams are the query parameters of one listing page
type ListParams struct {
	Sort       ListSort
	Rating     ListRating
	Page       int
	Limit      int
	Subscribed bool
}

// DefaultListParams returns the listing defaults used by the platform
func DefaultListParams() ListParams {
	return ListParams{
		Sort:   SortDate,
		Rating: RatingAll,
		Page:   0,
		Limit:  32,
	}
}

// Validate checks the listing parameters
func (p ListParams) Validate() error {
	switch p.Sort {
	case SortDate, SortTrending, SortPopularity, SortViews, SortLikes:
	default:
		return fmt.Errorf("invalid sort: %q", p.Sort)
	}
	switch p.Rating {
	case RatingAll, RatingGeneral, RatingEcchi:
	default:
		return fmt.Errorf("invalid rating: %q", p.Rating)
	}
	if p.Page < 0 {
		return fmt.Errorf("page cannot be negative")
	}
	if p.Limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}
	return nil
}
