// Package domain holds the types shared between discovery, monitoring and
// the store.
package domain

// Resolution is the outcome of canonicalizing one seed jobs URL.
type Resolution struct {
	SeedURL          string
	CanonicalJobsURL string
	JobsSourceType   string
	Adapter          string
	Confidence       float64
	DiscoveredVia    string
	Notes            string
	ManualReview     bool
}

// Observation is one validated posting as seen on a board during a
// monitor run, before it is reconciled against history.
type Observation struct {
	BoardURL    string
	ExternalID  string
	Title       string
	PostingURL  string
	Location    string
	PostingDate string
	ClosingDate string
	Summary     string
	RawText     string
}

// PostingRecord is a posting row read back from the store, org links
// already joined in.
type PostingRecord struct {
	PostingUID  string
	BoardURL    string
	Title       string
	PostingURL  string
	Location    string
	PostingDate string
	ClosingDate string
	Summary     string
	FirstSeenAt string
	LastSeenAt  string
	IsActive    bool
	SourceType  string
	Adapter     string
	OrgIDs      []string
}
