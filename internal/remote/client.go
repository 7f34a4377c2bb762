// Package remote defines the document-store contract the sync core
// uploads to and pulls from: per-document set-with-merge, get, delete
// and collection listing, addressable by collection path. Timestamps
// on written documents are assigned by the store, giving last-write-
// wins comparisons a single authoritative clock regardless of device
// clock skew.
package remote

import (
	"context"
	"errors"
)

// Doc is a document's field set.
type Doc map[string]any

// Document pairs a doc with its full path.
type Document struct {
	Path string
	Data Doc
}

// ErrDocNotFound marks reads of documents that do not exist.
var ErrDocNotFound = errors.New("document not found")

// Client is the abstract remote store.
type Client interface {
	// Set writes doc at path with merge semantics and returns the
	// server-assigned timestamp, which is also stamped into the stored
	// doc's updated_at field.
	Set(ctx context.Context, path string, doc Doc) (serverTime int64, err error)

	// Get returns the doc at path or ErrDocNotFound.
	Get(ctx context.Context, path string) (Doc, error)

	// Delete removes the doc at path. Deleting an absent document is a
	// no-op success, never an error: a create collapsed into a delete
	// before its first upload targets a doc that was never written.
	Delete(ctx context.Context, path string) error

	// List returns the documents directly inside a collection path.
	List(ctx context.Context, collection string) ([]Document, error)

	// QueryCollectionGroup returns documents from every collection
	// named name (at any nesting) whose field equals value.
	QueryCollectionGroup(ctx context.Context, name, field string, value any) ([]Document, error)
}
