package zymmr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Common DocTypes of a Zymmr instance
const (
	DocTypeProject  = "Project"
	DocTypeWorkItem = "Work Item"
	DocTypeTimeLog  = "Time Log"
	DocTypeSprint   = "Sprint"
	DocTypeUser     = "User"
)

const getValuePath = "/api/method/frappe.client.get_value"

func resourcePath(doctype string) string {
	return "/api/resource/" + url.PathEscape(doctype)
}

func documentPath(doctype, name string) string {
	return resourcePath(doctype) + "/" + url.PathEscape(name)
}

func requireArg(value, what string) error {
	if value == "" {
		return &APIError{Kind: KindValidation, Message: what + " is required"}
	}
	return nil
}

// List returns the documents of a collection matching opts, in server order.
// No match yields an empty list, not an error.
func (c *Client) List(ctx context.Context, doctype string, opts ListOptions) (DocumentList, error) {
	if err := requireArg(doctype, "doctype"); err != nil {
		return nil, err
	}

	params, err := opts.values()
	if err != nil {
		return nil, err
	}

	var resp dataEnvelope[DocumentList]
	err = c.call(ctx, &request{method: http.MethodGet, path: resourcePath(doctype), query: params}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Data == nil {
		resp.Data = DocumentList{}
	}

	c.logger.Debug().
		Str("doctype", doctype).
		Int("count", len(resp.Data)).
		Msg("Retrieved documents from Zymmr")

	return resp.Data, nil
}

// ListAll pages through a collection with the client's page size. opts.Offset
// is the starting row; a positive opts.Limit caps the total returned.
func (c *Client) ListAll(ctx context.Context, doctype string, opts ListOptions) (DocumentList, error) {
	total := opts.Limit
	pageSize := c.opts.pageSize
	all := DocumentList{}
	page := 1

	for {
		pageOpts := opts
		pageOpts.Limit = pageSize
		if total > 0 {
			pageOpts.Limit = min(pageSize, total-len(all))
		}

		docs, err := c.List(ctx, doctype, pageOpts)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)

		c.logger.Debug().
			Str("doctype", doctype).
			Int("page", page).
			Int("count", len(docs)).
			Int("total", len(all)).
			Msg("Retrieved page from Zymmr")

		if len(docs) < pageOpts.Limit || (total > 0 && len(all) >= total) {
			break
		}
		opts.Offset += len(docs)
		page++
	}

	return all, nil
}

// Get fetches one document by name. A missing document is ErrNotFound.
func (c *Client) Get(ctx context.Context, doctype, name string, fields ...string) (Document, error) {
	if err := requireArg(doctype, "doctype"); err != nil {
		return nil, err
	}
	if err := requireArg(name, "document name"); err != nil {
		return nil, err
	}

	params, err := fieldsParam(fields)
	if err != nil {
		return nil, err
	}

	var resp dataEnvelope[Document]
	if err := c.call(ctx, &request{method: http.MethodGet, path: documentPath(doctype, name), query: params}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetByKey fetches the first document whose "key" field equals key, the
// user-facing identifier of projects and work items.
func (c *Client) GetByKey(ctx context.Context, doctype, key string, fields ...string) (Document, error) {
	if err := requireArg(key, "document key"); err != nil {
		return nil, err
	}

	docs, err := c.List(ctx, doctype, ListOptions{
		Fields:  fields,
		Filters: Filters{"key": key},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}

	doc, ok := docs.First()
	if !ok {
		return nil, &APIError{
			Kind:    KindNotFound,
			Message: doctype + " with key " + key + " not found",
		}
	}
	return doc, nil
}

// Insert creates a document and returns the server's version of it,
// including the assigned name.
func (c *Client) Insert(ctx context.Context, doctype string, data Document) (Document, error) {
	if err := requireArg(doctype, "doctype"); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &APIError{Kind: KindValidation, Message: "document data is required"}
	}

	var resp dataEnvelope[Document]
	if err := c.call(ctx, &request{method: http.MethodPost, path: resourcePath(doctype), json: data}, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("doctype", doctype).Str("name", resp.Data.Name()).Msg("Inserted document")
	return resp.Data, nil
}

// Update changes the given fields of a document; other fields keep their values.
func (c *Client) Update(ctx context.Context, doctype, name string, data Document) (Document, error) {
	if err := requireArg(doctype, "doctype"); err != nil {
		return nil, err
	}
	if err := requireArg(name, "document name"); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &APIError{Kind: KindValidation, Message: "document data is required"}
	}

	var resp dataEnvelope[Document]
	if err := c.call(ctx, &request{method: http.MethodPut, path: documentPath(doctype, name), json: data}, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("doctype", doctype).Str("name", name).Msg("Updated document")
	return resp.Data, nil
}

// Delete removes a document. A missing document is ErrNotFound.
func (c *Client) Delete(ctx context.Context, doctype, name string) error {
	if err := requireArg(doctype, "doctype"); err != nil {
		return err
	}
	if err := requireArg(name, "document name"); err != nil {
		return err
	}

	if err := c.call(ctx, &request{method: http.MethodDelete, path: documentPath(doctype, name)}, nil); err != nil {
		return err
	}

	c.logger.Info().Str("doctype", doctype).Str("name", name).Msg("Deleted document")
	return nil
}

// GetValue reads one field of the first document matching filters through
// frappe.client.get_value. No match is ErrNotFound.
func (c *Client) GetValue(ctx context.Context, doctype, fieldname string, filters Filters) (Document, error) {
	if err := requireArg(doctype, "doctype"); err != nil {
		return nil, err
	}
	if err := requireArg(fieldname, "fieldname"); err != nil {
		return nil, err
	}

	params := url.Values{
		"doctype":   {doctype},
		"fieldname": {fieldname},
	}
	if len(filters) > 0 {
		data, err := json.Marshal(filters)
		if err != nil {
			return nil, &APIError{Kind: KindValidation, Message: "failed to encode filters", Err: err}
		}
		params.Set("filters", string(data))
	}

	var resp messageEnvelope[Document]
	if err := c.call(ctx, &request{method: http.MethodGet, path: getValuePath, query: params}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Message) == 0 || resp.Message[fieldname] == nil {
		return nil, &APIError{
			Kind:    KindNotFound,
			Message: "no " + doctype + " matches the given filters",
		}
	}
	return resp.Message, nil
}

// Resource is a client bound to one DocType.
type Resource struct {
	client  *Client
	doctype string
}

// Resource returns a handle for CRUD calls on doctype
func (c *Client) Resource(doctype string) *Resource {
	return &Resource{client: c, doctype: doctype}
}

// DocType returns the DocType the resource is bound to
func (r *Resource) DocType() string {
	return r.doctype
}

// List lists documents of the resource
func (r *Resource) List(ctx context.Context, opts ListOptions) (DocumentList, error) {
	return r.client.List(ctx, r.doctype, opts)
}

// ListAll pages through all documents of the resource
func (r *Resource) ListAll(ctx context.Context, opts ListOptions) (DocumentList, error) {
	return r.client.ListAll(ctx, r.doctype, opts)
}

// Get fetches a document by name
func (r *Resource) Get(ctx context.Context, name string, fields ...string) (Document, error) {
	return r.client.Get(ctx, r.doctype, name, fields...)
}

// GetByKey fetches a document by its key field
func (r *Resource) GetByKey(ctx context.Context, key string, fields ...string) (Document, error) {
	return r.client.GetByKey(ctx, r.doctype, key, fields...)
}

// Insert creates a document
func (r *Resource) Insert(ctx context.Context, data Document) (Document, error) {
	return r.client.Insert(ctx, r.doctype, data)
}

// Update changes fields of a document
func (r *Resource) Update(ctx context.Context, name string, data Document) (Document, error) {
	return r.client.Update(ctx, r.doctype, name, data)
}

// Delete removes a document
func (r *Resource) Delete(ctx context.Context, name string) error {
	return r.client.Delete(ctx, r.doctype, name)
}
