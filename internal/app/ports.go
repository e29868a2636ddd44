package app

import (
	"context"

	"github.com/hylla/ritning/internal/domain"
)

// Repository persists whole boards. The flat block sequence is the single
// source of within-column order, so persistence is all-or-nothing: a save
// replaces every phase, column, and block row in one transaction.
type Repository interface {
	SaveBoard(context.Context, domain.Board) error
	LoadBoard(context.Context) (domain.Board, error)
}
