package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid note path")

	// Project registry rejections.
	ErrRootProject    = errors.New("root project cannot be changed")
	ErrAlreadyTracked = errors.New("project already tracked")
	ErrNotTracked     = errors.New("project not tracked")
	ErrInvalidProject = errors.New("no notes under project path")
)
