package models

// AudiobookshelfItem is a library item as returned by /api/libraries/{id}/items
type AudiobookshelfItem struct {
	ID        string `json:"id"`
	LibraryID string `json:"libraryId"`
	MediaType string `json:"mediaType"`
	Media     struct {
		Metadata struct {
			Title      string `json:"title"`
			Subtitle   string `json:"subtitle"`
			AuthorName string `json:"authorName"`
			Authors    []struct {
				Name string `json:"name"`
			} `json:"authors"`
			ISBN string `json:"isbn"`
			ASIN string `json:"asin"`
		} `json:"metadata"`
		Duration float64 `json:"duration"`
	} `json:"media"`
}

// Author returns the display author, preferring the flat authorName field.
func (i AudiobookshelfItem) Author() string {
	if i.Media.Metadata.AuthorName != "" {
		return i.Media.Metadata.AuthorName
	}
	if len(i.Media.Metadata.Authors) > 0 {
		return i.Media.Metadata.Authors[0].Name
	}
	return ""
}

// AudiobookshelfLibraryResponse is one page of library items.
type AudiobookshelfLibraryResponse struct {
	Results []AudiobookshelfItem `json:"results"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Page    int                  `json:"page"`
}

// AudiobookshelfLibrary is an entry of /api/libraries
type AudiobookshelfLibrary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

// AudiobookshelfMediaProgress is one entry of the mediaProgress list on /api/me
type AudiobookshelfMediaProgress struct {
	ID            string  `json:"id"`
	LibraryItemID string  `json:"libraryItemId"`
	EpisodeID     string  `json:"episodeId,omitempty"`
	Duration      float64 `json:"duration"`
	Progress      float64 `json:"progress"` // 0..1
	CurrentTime   float64 `json:"currentTime"`
	IsFinished    bool    `json:"isFinished"`
	LastUpdate    int64   `json:"lastUpdate"`
}

// SourceBook is one book with listening progress, the input to a sync run.
type SourceBook struct {
	LibraryItemID string
	Title         string
	Author        string
	ISBN          string
	ASIN          string
	// ProgressPercent is in the range 0..100
	ProgressPercent float64
	// CurrentTime is the elapsed playback position in seconds, when known
	CurrentTime *float64
	IsFinished  bool
	// Duration is the total length in seconds, 0 when unknown
	Duration float64
}
