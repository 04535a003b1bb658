package service

import "errors"

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrThreadForbidden = errors.New("thread belongs to another user")
	ErrPointNotFound   = errors.New("conversation point not found or not active")
	ErrJourneyNotFound = errors.New("journey not found or not active")
)
