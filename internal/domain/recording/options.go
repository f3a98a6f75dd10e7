package recording

// ListOptions provides paging for recording listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// SearchOptions provides filtering options for annotation search.
type SearchOptions struct {
	RecordingID string
	Types       []string
	Limit       int
	Offset      int
}

const defaultLimit = 50
