package zymmr

import (
	"context"
)

// API defines the operations the CLI needs from a Zymmr client
type API interface {
	// Session
	Authenticate(ctx context.Context) (*AuthResult, error)
	Ping(ctx context.Context) (bool, error)
	UserInfo(ctx context.Context) (Document, error)
	Logout(ctx context.Context) error
	Close() error

	// Documents
	List(ctx context.Context, doctype string, opts ListOptions) (DocumentList, error)
	ListAll(ctx context.Context, doctype string, opts ListOptions) (DocumentList, error)
	Get(ctx context.Context, doctype, name string, fields ...string) (Document, error)
	GetByKey(ctx context.Context, doctype, key string, fields ...string) (Document, error)
	Insert(ctx context.Context, doctype string, data Document) (Document, error)
	Update(ctx context.Context, doctype, name string, data Document) (Document, error)
	Delete(ctx context.Context, doctype, name string) error

	// Batches
	BatchGet(ctx context.Context, doctype string, names []string, fields ...string) BatchSummary
	BatchDelete(ctx context.Context, doctype string, names []string) BatchSummary
}

var _ API = (*Client)(nil)
