package model

import "time"

// Record is one business entity as returned by or sent to the API.
type Record map[string]any

// Page is a single page response from a data endpoint.
type Page struct {
	Headers map[string]any `json:"headers"`
	Data    []Record       `json:"data"`
}

// PageQuery identifies one page request. Paginated is false for endpoints
// fetched in a single request; PageNo and PageSize are then not sent.
// Revalidate forces a round-trip even when a fresh cached response exists.
type PageQuery struct {
	APIName    string
	Paginated  bool
	PageNo     int
	PageSize   int
	Period     string
	Revalidate bool
}

// FetchBudgets bounds a paginated fetch. Zero fields fall back to configured defaults.
type FetchBudgets struct {
	PageSize         int           `json:"pageSize,omitempty"`
	MaxPages         int           `json:"maxPages,omitempty"`
	MemoryLimit      int           `json:"memoryLimit,omitempty"`
	BatchSize        int           `json:"batchSize,omitempty"`
	MaxExecutionTime time.Duration `json:"maxExecutionTime,omitempty"`
}

// StopReason explains why a fetch stopped requesting pages.
type StopReason string

const (
	StopEndOfData     StopReason = "end_of_data"
	StopMaxPages      StopReason = "max_pages"
	StopMemoryLimit   StopReason = "memory_limit"
	StopTimeBudget    StopReason = "time_budget"
	StopSingleRequest StopReason = "single_request"
)

// FetchResult holds the records assembled by a fetch in page order. A fetch
// cut short by its time budget is still a successful result.
type FetchResult struct {
	Records        []Record      `json:"data"`
	RecordCount    int           `json:"recordCount"`
	PagesProcessed int           `json:"pagesProcessed"`
	ExecutionTime  time.Duration `json:"-"`
	StopReason     StopReason    `json:"stopReason"`
}

// PostResult is the adapter-level outcome of a successful entity POST. Body
// is nil when the server replied with an empty or non-JSON body.
type PostResult struct {
	StatusCode int
	Body       map[string]any
}

// UploadResult is the outcome of an entity upload.
type UploadResult struct {
	Data          map[string]any `json:"data"`
	Message       string         `json:"message"`
	Attempts      int            `json:"attempts"`
	ExecutionTime time.Duration  `json:"-"`
}
