package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects input before any mutation. Fields maps an input
// field to a human-readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// EmptyCartError rejects an order with no lines.
type EmptyCartError struct{}

func (EmptyCartError) Error() string { return "no items in order" }

// LineFailure describes the cart line that stopped an order.
type LineFailure struct {
	Line        int    `json:"line"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// SizeNotFoundError means the product has no stock row for the size.
type SizeNotFoundError struct{ LineFailure }

func (e *SizeNotFoundError) Error() string {
	return fmt.Sprintf("size info not found for %s (%s)", e.ProductName, e.Size)
}

// InsufficientStockError means fewer units remain than were requested.
type InsufficientStockError struct{ LineFailure }

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (size %s): requested %d, available %d",
		e.ProductName, e.Size, e.Requested, e.Available)
}

// ReferentialIntegrityError means a write referenced a missing record.
// Line is -1 when the reference is not tied to a cart line.
type ReferentialIntegrityError struct {
	Entity string
	ID     string
	Line   int
}

func (e *ReferentialIntegrityError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("line %d references missing %s %s", e.Line, e.Entity, e.ID)
	}
	return fmt.Sprintf("missing %s %s", e.Entity, e.ID)
}

// UpstreamStorageError wraps an unexpected storage failure. Callers show a
// generic message and log the wrapped cause.
type UpstreamStorageError struct {
	Op  string
	Err error
}

func (e *UpstreamStorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *UpstreamStorageError) Unwrap() error { return e.Err }

func upstream(op string, err error) error {
	return &UpstreamStorageError{Op: op, Err: err}
}

// AsLineFailure extracts the failing line from a stock error.
func AsLineFailure(err error) (LineFailure, bool) {
	var snf *SizeNotFoundError
	if errors.As(err, &snf) {
		return snf.LineFailure, true
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise.LineFailure, true
	}
	return LineFailure{}, false
}
