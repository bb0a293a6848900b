package model

// Pagination limits for issue listing.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100

	DefaultEventLimit = 50
	MaxEventLimit     = 200
)

// ListFilter narrows and pages an issue listing.
type ListFilter struct {
	Status   Status
	Severity string
	Page     int
	PageSize int
}

// Offset returns the row offset of the requested page.
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ListIssuesQuery binds the query string of GET /api/issues.
type ListIssuesQuery struct {
	Page     int    `form:"page,default=1"                     binding:"min=1"`
	PageSize int    `form:"page_size,default=50"               binding:"min=1,max=100"`
	Status   string `form:"status"`
	Severity string `form:"severity"`
}

// RecentEventsQuery binds the query string of GET /api/events/recent.
type RecentEventsQuery struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=200"`
}

// IssueListResponse is a page of issues.
type IssueListResponse struct {
	Items      []Issue `json:"items"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}

// TotalPages returns the page count for total rows at pageSize rows per page.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// RecordCIRequest is the body of POST /api/issues/:id/ci.
type RecordCIRequest struct {
	Passed  *bool  `json:"passed"  binding:"required"`
	Details string `json:"details"`
}
