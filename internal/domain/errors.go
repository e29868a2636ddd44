package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidBlockType  = errors.New("invalid block type")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrDuplicateID       = errors.New("duplicate id")
)
