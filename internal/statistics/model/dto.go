// Package model provides data transfer objects for statistics module.
package model

// IssueCounts holds raw aggregate counts over the issues table.
type IssueCounts struct {
	Total       int64 `gorm:"column:total_issues"`
	New         int64 `gorm:"column:new_issues"`
	Fixing      int64 `gorm:"column:fixing_issues"`
	PROpen      int64 `gorm:"column:pr_open_issues"`
	CIPassed    int64 `gorm:"column:ci_passed_issues"`
	CIFailed    int64 `gorm:"column:ci_failed_issues"`
	Closed      int64 `gorm:"column:closed_issues"`
	PRsCreated  int64 `gorm:"column:total_prs_created"`
	MergedPRs   int64 `gorm:"column:merged_prs"`
	RejectedPRs int64 `gorm:"column:rejected_prs"`
}

// MetricsSummary represents response for GET /api/metrics/summary.
type MetricsSummary struct {
	TotalIssues    int64   `json:"total_issues"`
	NewIssues      int64   `json:"new_issues"`
	FixingIssues   int64   `json:"fixing_issues"`
	PROpenIssues   int64   `json:"pr_open_issues"`
	CIPassedIssues int64   `json:"ci_passed_issues"`
	CIFailedIssues int64   `json:"ci_failed_issues"`
	ClosedIssues   int64   `json:"closed_issues"`
	TotalPRs       int64   `json:"total_prs_created"`
	MergedPRs      int64   `json:"merged_prs"`
	RejectedPRs    int64   `json:"rejected_prs"`
	SuccessRate    float64 `json:"success_rate"`
}

// SuccessRate returns merged as a percentage of total, or 0 when total is 0.
func SuccessRate(merged, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(merged) / float64(total) * 100
}
