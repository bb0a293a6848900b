package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusNew:      {StatusFixing},
		StatusFixing:   {StatusNew, StatusPROpen},
		StatusPROpen:   {StatusCIPassed, StatusCIFailed, StatusClosed},
		StatusCIPassed: {StatusCIFailed, StatusClosed},
		StatusCIFailed: {StatusCIPassed, StatusClosed},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		assert.Equal(t, s == StatusClosed, s.IsTerminal(), s)
	}
	assert.False(t, Status("BOGUS").IsTerminal())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "NEW", want: StatusNew},
		{raw: "pr_open", want: StatusPROpen},
		{raw: " closed ", want: StatusClosed},
		{raw: "MERGED", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidStatus))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusFixing)
	require.Len(t, next, 2)
	next[0] = StatusClosed
	assert.True(t, CanTransition(StatusFixing, StatusNew))
	assert.Empty(t, NextStatuses(StatusClosed))
}

func TestIssue_TransitionTo(t *testing.T) {
	issue := &Issue{Status: StatusNew}
	require.NoError(t, issue.TransitionTo(StatusFixing))
	assert.Equal(t, StatusFixing, issue.Status)

	err := issue.TransitionTo(StatusClosed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusFixing, issue.Status, "status unchanged on rejected transition")
}

func TestIssue_BeforeCreate(t *testing.T) {
	issue := &Issue{}
	require.NoError(t, issue.BeforeCreate(nil))
	assert.Len(t, issue.ID, 36)
	assert.Equal(t, StatusNew, issue.Status)
	assert.Equal(t, MergeStateUnknown, issue.PRMergeState)

	kept := &Issue{ID: "fixed-id", Status: StatusFixing}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed-id", kept.ID)
	assert.Equal(t, StatusFixing, kept.Status)
}

func TestIssue_HasPullRequest(t *testing.T) {
	assert.False(t, (&Issue{}).HasPullRequest())
	assert.False(t, (&Issue{PRURL: StringPtr("")}).HasPullRequest())
	assert.True(t, (&Issue{PRURL: StringPtr("https://github.com/acme/widgets/pull/7")}).HasPullRequest())
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 50))
	assert.Equal(t, 1, TotalPages(1, 50))
	assert.Equal(t, 1, TotalPages(50, 50))
	assert.Equal(t, 2, TotalPages(51, 50))
	assert.Equal(t, 0, TotalPages(10, 0))
}

func TestListFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, ListFilter{Page: 1, PageSize: 50}.Offset())
	assert.Equal(t, 100, ListFilter{Page: 3, PageSize: 50}.Offset())
	assert.Equal(t, 0, ListFilter{Page: 0, PageSize: 50}.Offset())
}
