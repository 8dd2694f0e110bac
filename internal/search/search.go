package search

// ResultType identifies the kind of listing in a search result.
type ResultType string

const (
	ResultItem    ResultType = "item"
	ResultRequest ResultType = "request"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = both kinds
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a listing search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push listings into a search index.
type Indexer interface {
	IndexListing(rec ListingRecord) error
	DeleteListing(rtyp ResultType, id string) error
}

// ListingRecord is the data we index for an item or request.
type ListingRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	Status      string `json:"status"`
}
