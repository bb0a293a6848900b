package model

import "errors"

var (
	// ErrInvalidScanRequest indicates that only one of repo_owner and repo_name was given.
	ErrInvalidScanRequest = errors.New("repo_owner and repo_name must be provided together")
	// ErrScannerDisabled indicates that no scan script is configured.
	ErrScannerDisabled = errors.New("scanner is not configured")
)
