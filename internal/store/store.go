// Package store is the persistence boundary: a generic document store over
// typed collections and a blob store for uploaded files.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("store: document not found")
	ErrConflict = errors.New("store: document changed concurrently")
)

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// DocumentList is one page of documents plus the number of documents that
// match the filters ignoring limit and offset.
type DocumentList[T any] struct {
	Documents []T
	Total     int64
}

// Collection is the document store interface for a single collection.
type Collection[T any] interface {
	Create(ctx context.Context, doc *T) error
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, queries ...Query) (*DocumentList[T], error)
	Update(ctx context.Context, id string, fields map[string]any) (*T, error)
	// UpdateIf applies fields only while every column in expect still holds
	// the expected value; otherwise it returns ErrConflict.
	UpdateIf(ctx context.Context, id string, expect, fields map[string]any) (*T, error)
	Delete(ctx context.Context, id string) error
}

type queryKind int

const (
	queryEqual queryKind = iota
	queryOrderDesc
	querySearch
	queryLimit
	queryOffset
)

// Query is a composable list predicate.
type Query struct {
	kind  queryKind
	field string
	value any
	n     int
}

func Equal(field string, value any) Query {
	return Query{kind: queryEqual, field: field, value: value}
}

func OrderDesc(field string) Query {
	return Query{kind: queryOrderDesc, field: field}
}

// Search matches documents whose field contains term.
func Search(field, term string) Query {
	return Query{kind: querySearch, field: field, value: term}
}

func Limit(n int) Query {
	return Query{kind: queryLimit, n: n}
}

func Offset(n int) Query {
	return Query{kind: queryOffset, n: n}
}
