package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       string // FT pre-filter; empty means "*"
	VectorField  string // defaults to "vector"
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string   // raw user text, escaped by the store
	Fields       []string // TEXT fields to match; empty means all
	Filter       string
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
