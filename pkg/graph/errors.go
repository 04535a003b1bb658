package graph

import "errors"

var (
	ErrMissingThreadID   = errors.New("thread id is required")
	ErrStepLimitExceeded = errors.New("graph step limit exceeded")
	ErrToolLoopExceeded  = errors.New("tool loop exceeded")
	ErrThreadBusy        = errors.New("thread is busy")
	ErrUnknownMode       = errors.New("unknown graph mode")
)
