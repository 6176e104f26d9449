package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// API is the subset of the remote service the reconciliation worker uses.
// *Client implements it.
type API interface {
	Find(ctx context.Context) ([]*schema.Record, error)
	Read(ctx context.Context, id string) (*schema.Record, error)
	Create(ctx context.Context, rec *schema.Record) (*schema.Record, error)
	Update(ctx context.Context, id string, rec *schema.Record) (*schema.Record, error)
	Delete(ctx context.Context, id string) error
}

var _ API = (*Client)(nil)

// Find lists every record visible to the current credential.
func (c *Client) Find(ctx context.Context) ([]*schema.Record, error) {
	var out []*schema.Record
	if err := c.do(ctx, "find", http.MethodGet, collectionPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Read fetches one record by canonical id.
func (c *Client) Read(ctx context.Context, id string) (*schema.Record, error) {
	var out schema.Record
	if err := c.do(ctx, "read", http.MethodGet, itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new record. The local id is not sent; the server assigns
// the canonical one and returns the stored record.
func (c *Client) Create(ctx context.Context, rec *schema.Record) (*schema.Record, error) {
	payload := rec.Clone()
	payload.ID = ""

	var out schema.Record
	if err := c.do(ctx, "create", http.MethodPost, collectionPath, payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &APIError{Op: "create", Status: http.StatusOK, Err: ErrDecode,
			cause: fmt.Errorf("response has no _id")}
	}
	return &out, nil
}

// Update replaces the record stored under id.
func (c *Client) Update(ctx context.Context, id string, rec *schema.Record) (*schema.Record, error) {
	var out schema.Record
	if err := c.do(ctx, "update", http.MethodPut, itemPath(id), rec, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// Delete removes the record stored under id. A 404 is reported as
// ErrNotFound; callers treating deletion as idempotent can ignore it.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, itemPath(id), nil, nil)
}

func itemPath(id string) string {
	return collectionPath + "/" + url.PathEscape(id)
}
