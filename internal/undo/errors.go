package undo

import "errors"

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNotFound            = errors.New("undo action not found")
	ErrForbidden           = errors.New("forbidden")
	ErrExpired             = errors.New("undo action expired")
	ErrUnreversible        = errors.New("undo action cannot be reversed")
	ErrUnsupportedResource = errors.New("resource no longer exists")
)
