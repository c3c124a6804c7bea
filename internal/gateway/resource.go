package gateway

import (
	"context"
	"net/http"
	"net/url"
	"path"
)

// Resource binds a Client to one collection endpoint such as
// /api/v1/hr/employees.
type Resource[T any] struct {
	client *Client
	path   string
	name   string
}

func NewResource[T any](client *Client, collectionPath string) *Resource[T] {
	return &Resource[T]{client: client, path: collectionPath, name: path.Base(collectionPath)}
}

func (r *Resource[T]) Name() string {
	return r.name
}

func (r *Resource[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	var items []T
	err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.path, Query: params, Resource: r.name}, &items)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// ListPage requests one page; params should carry page and/or limit so the
// API answers with pagination.
func (r *Resource[T]) ListPage(ctx context.Context, params url.Values) (Page[T], error) {
	var page Page[T]
	err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.path, Query: params, Resource: r.name}, &page)
	if err != nil {
		return Page[T]{}, err
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.itemPath(id), Resource: r.name}, &item)
	return item, err
}

func (r *Resource[T]) Create(ctx context.Context, record T) (T, error) {
	var created T
	err := r.client.Do(ctx, Request{Method: http.MethodPost, Path: r.path, Body: record, Resource: r.name}, &created)
	return created, err
}

// Update sends patch as a JSON merge patch and returns the stored record.
func (r *Resource[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var updated T
	err := r.client.Do(ctx, Request{Method: http.MethodPatch, Path: r.itemPath(id), Body: patch, Resource: r.name}, &updated)
	return updated, err
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, Request{Method: http.MethodDelete, Path: r.itemPath(id), Resource: r.name}, nil)
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}
