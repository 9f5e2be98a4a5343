package app

import (
	"errors"

	"github.com/khrees2412/jobportal/internal/apperr"
)

// Sentinel errors for common application errors
var (
	ErrNotFound        = apperr.ErrNotFound
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoHandoff       = errors.New("no qualified application for this job; run 'jobportal apply' first")
	ErrSignInRequired  = errors.New("sign in required: run 'jobportal login --cookie <value>'")
)
