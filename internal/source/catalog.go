package source

import (
	"context"
	"errors"
	"fmt"

	"imgcat/internal/catalog"
)

// CatalogAdapter answers from a completed version of a catalog store. It
// walks links from the version record, so the view is the snapshot of that
// version even after later versions retired its entities.
type CatalogAdapter struct {
	name    string
	store   *catalog.Store
	version int
}

// NewCatalogAdapter reads snapshot version from store.
func NewCatalogAdapter(name string, store *catalog.Store, version int) *CatalogAdapter {
	return &CatalogAdapter{name: name, store: store, version: version}
}

// Name returns the configured source name.
func (a *CatalogAdapter) Name() string { return a.name }

func (a *CatalogAdapter) resolve(ctx context.Context, scope Scope) (*catalog.Entity, error) {
	node, err := a.store.Version(ctx, a.version)
	if err != nil {
		return nil, err
	}
	for _, id := range scope.Path {
		children, err := a.store.Children(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		var next *catalog.Entity
		for _, c := range children {
			if c.Identifier == id && a.visible(c) {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s at version %d: %w", scope, a.version, catalog.ErrNotFound)
		}
		node = next
	}
	return node, nil
}

// ListChildren lists the children of scope as of the snapshot version.
func (a *CatalogAdapter) ListChildren(ctx context.Context, scope Scope) ([]Child, error) {
	node, err := a.resolve(ctx, scope)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	children, err := a.store.Children(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Child, 0, len(children))
	for _, c := range children {
		if !a.visible(c) {
			continue
		}
		out = append(out, Child{Identifier: c.Identifier, Hash: c.CombinedHash(), URI: c.ContentURI})
	}
	return out, nil
}

// FetchHash returns the combined digest stored for scope.
func (a *CatalogAdapter) FetchHash(ctx context.Context, scope Scope) (string, bool, error) {
	node, err := a.resolve(ctx, scope)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return node.CombinedHash(), true, nil
}

// visible reports whether e belonged to the snapshot version.
func (a *CatalogAdapter) visible(e *catalog.Entity) bool {
	if e.RevVersion > a.version {
		return false
	}
	return e.FinalVersion == 0 || e.FinalVersion > a.version
}
