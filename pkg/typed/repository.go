// Package typed provides type-safe access to JSON documents held in a
// core.RemoteStore.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/sitecost/pkg/core"
)

// Document is a typed view of a remote document together with the
// conflict token of the revision it was read from.
type Document[T any] struct {
	Path  string
	Token string   // empty when the document does not exist yet
	Data  T        // The decoded document body
	Saver Saver[T] // Active Record reference interface
}

// Saver interface avoids tight coupling between documents and repositories.
type Saver[T any] interface {
	Save(ctx context.Context, doc *Document[T], message string) error
}

// Save persists the document using the attached saver.
func (d *Document[T]) Save(ctx context.Context, message string) error {
	if d.Saver == nil {
		return fmt.Errorf("document is detached (missing Saver)")
	}
	return d.Saver.Save(ctx, d, message)
}

// Handle returns the revision this document was read from or written as.
func (d *Document[T]) Handle() core.RemoteFileHandle {
	return core.RemoteFileHandle{Path: d.Path, Token: d.Token}
}

// Repository wraps a core.RemoteStore to provide type-safe access.
type Repository[T any] struct {
	store core.RemoteStore
}

// NewRepository creates a new type-safe wrapper around an existing store.
func NewRepository[T any](store core.RemoteStore) *Repository[T] {
	return &Repository[T]{store: store}
}

// Get fetches and decodes a document. A missing document is reported
// with an error matching core.ErrNotFound; an undecodable one with
// core.ErrMalformed.
func (r *Repository[T]) Get(ctx context.Context, path string) (*Document[T], error) {
	file, err := r.store.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	var data T
	if err := json.Unmarshal(file.Content, &data); err != nil {
		return nil, core.NewSyncError("decode", path, core.ErrMalformed, err)
	}

	return &Document[T]{
		Path:  path,
		Token: file.Token,
		Data:  data,
		Saver: r,
	}, nil
}

// Head fetches the raw current revision of a document without decoding
// it. found is false when the document does not exist.
func (r *Repository[T]) Head(ctx context.Context, path string) (file core.RemoteFile, found bool, err error) {
	file, err = r.store.Fetch(ctx, path)
	if err != nil {
		if core.KindOf(err) == core.ErrNotFound {
			return core.RemoteFile{}, false, nil
		}
		return core.RemoteFile{}, false, err
	}
	return file, true, nil
}

// Token returns the current token of a document, or "" if it does not exist.
func (r *Repository[T]) Token(ctx context.Context, path string) (string, error) {
	file, _, err := r.Head(ctx, path)
	return file.Token, err
}

// Save writes doc presenting doc.Token and stores the new token on success.
func (r *Repository[T]) Save(ctx context.Context, doc *Document[T], message string) error {
	content, err := Encode(&doc.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal typed data: %w", err)
	}

	token, err := r.store.Put(ctx, doc.Path, content, doc.Token, message)
	if err != nil {
		return err
	}

	if doc.Saver == nil {
		doc.Saver = r
	}
	doc.Token = token
	return nil
}

// Encode renders a document body in its canonical text form.
func Encode[T any](v *T) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
