package services

import "errors"

// Task errors
var (
	ErrTaskNotFound     = errors.New("task: not found")
	ErrTaskGone         = errors.New("task: evicted")
	ErrTaskInvalidInput = errors.New("task: invalid input")
	ErrTaskConflict     = errors.New("task: conflicting operation already running")
	ErrTaskNotRunning   = errors.New("task: not running")
)

// Executor errors
var (
	ErrOperationUnknown = errors.New("executor: unknown operation")
	ErrOperationFailed  = errors.New("executor: operation failed")
)

// Auth errors
var (
	ErrTokenInvalid = errors.New("auth: invalid capability token")
	ErrTokenExpired = errors.New("auth: capability token expired")
)
