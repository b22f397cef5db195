package economy

import (
	"errors"
	"fmt"

	"github.com/sahilm/fuzzy"
)

// Recoverable errors returned to trading, quest, and analytics callers.
var (
	ErrUnknownCommodity   = errors.New("unknown commodity")
	ErrInsufficientSupply = errors.New("insufficient supply")
	ErrInvalidSector      = errors.New("sector has no economy")
	ErrInvalidQuantity    = errors.New("trade quantity must be positive")
	ErrUnknownEventKind   = errors.New("unknown economic event kind")
)

// UnknownCommodityError reports a lookup by a name the market does not trade,
// with the closest known name when one is similar enough.
type UnknownCommodityError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommodityError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown commodity %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown commodity %q", e.Name)
}

func (e *UnknownCommodityError) Is(target error) bool {
	return target == ErrUnknownCommodity
}

// NewUnknownCommodityError builds an UnknownCommodityError, fuzzy-matching
// name against the known commodity names.
func NewUnknownCommodityError(name string, known []string) error {
	err := &UnknownCommodityError{Name: name}
	if matches := fuzzy.Find(name, known); len(matches) > 0 {
		err.Suggestion = matches[0].Str
	}
	return err
}

// InsufficientSupplyError carries the requested and available quantities.
type InsufficientSupplyError struct {
	Commodity string
	Requested int64
	Available int64
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("not enough %s: requested %d, available %d", e.Commodity, e.Requested, e.Available)
}

func (e *InsufficientSupplyError) Is(target error) bool {
	return target == ErrInsufficientSupply
}
