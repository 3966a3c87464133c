package models

// SearchResult represents a single hit. Distance is the squared L2 distance of the photo
// embedding to the query (lower is more similar).
type SearchResult struct {
	PhotoID      int64    `json:"photo_id"`
	Filename     string   `json:"filename"`
	ImageURL     string   `json:"image_url"`
	Tags         []string `json:"tags"`
	Caption      string   `json:"caption"`
	Distance     float32  `json:"distance"`
	Score        float64  `json:"score,omitempty"`
	KeywordScore float64  `json:"keyword_score,omitempty"`
	Rank         int      `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query        string          `json:"query"`
	Results      []*SearchResult `json:"results"`
	TotalResults int             `json:"total_results"`
	QueryTime    int64           `json:"query_time_ms"`
}

// Album is one cluster of photos. Distances are measured from the first photo of the album.
type Album struct {
	Summary string          `json:"album_summary"`
	Photos  []*SearchResult `json:"album"`
}

// AlbumsResponse is the response for an albums request.
type AlbumsResponse struct {
	Strategy string   `json:"strategy"`
	Albums   []*Album `json:"albums"`
}

// Stats summarizes the catalog and its vector store.
type Stats struct {
	TotalPhotos     int64  `json:"total_photos"`
	TotalEmbeddings int    `json:"total_embeddings"`
	Dimension       int    `json:"dimension"`
	IndexType       string `json:"index_type"`
	DiskUsageBytes  int64  `json:"disk_usage_bytes"`
}
