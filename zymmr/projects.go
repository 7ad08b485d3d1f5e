package zymmr

import (
	"context"
	"strings"
)

// ProjectsClient provides project-specific queries on top of the Project resource
type ProjectsClient struct {
	*Resource
}

// Projects returns the client for Project documents
func (c *Client) Projects() *ProjectsClient {
	return &ProjectsClient{Resource: c.Resource(DocTypeProject)}
}

// Active lists projects with status Active, ordered by title
func (p *ProjectsClient) Active(ctx context.Context, fields ...string) (DocumentList, error) {
	return p.List(ctx, ListOptions{
		Fields:  fields,
		Filters: Filters{"status": "Active"},
		OrderBy: "title",
	})
}

// ByLead lists the projects led by the user with the given email, newest first
func (p *ProjectsClient) ByLead(ctx context.Context, leadEmail string, fields ...string) (DocumentList, error) {
	if leadEmail == "" || !strings.Contains(leadEmail, "@") {
		return nil, &APIError{Kind: KindValidation, Message: "valid email address is required"}
	}

	user, err := p.client.GetValue(ctx, DocTypeUser, "name", Filters{"email": leadEmail})
	if err != nil {
		return nil, err
	}

	return p.List(ctx, ListOptions{
		Fields:  fields,
		Filters: Filters{"lead": user.Name()},
		OrderBy: "creation desc",
	})
}

// ByKey fetches a project by its key
func (p *ProjectsClient) ByKey(ctx context.Context, key string, fields ...string) (Project, error) {
	doc, err := p.GetByKey(ctx, key, fields...)
	if err != nil {
		return Project{}, err
	}
	return Project{Document: doc}, nil
}

// WorkItemsClient provides work-item-specific queries on top of the Work Item resource
type WorkItemsClient struct {
	*Resource
}

// WorkItems returns the client for Work Item documents
func (c *Client) WorkItems() *WorkItemsClient {
	return &WorkItemsClient{Resource: c.Resource(DocTypeWorkItem)}
}

// ByProject lists the work items of the project with the given key,
// highest priority first
func (w *WorkItemsClient) ByProject(ctx context.Context, projectKey string, fields ...string) (DocumentList, error) {
	if err := requireArg(projectKey, "project key"); err != nil {
		return nil, err
	}

	project, err := w.client.GetValue(ctx, DocTypeProject, "name", Filters{"key": projectKey})
	if err != nil {
		return nil, err
	}

	return w.List(ctx, ListOptions{
		Fields:  fields,
		Filters: Filters{"project": project.Name()},
		OrderBy: "priority desc, creation desc",
	})
}

// ByKey fetches a work item by its key
func (w *WorkItemsClient) ByKey(ctx context.Context, key string, fields ...string) (WorkItem, error) {
	doc, err := w.GetByKey(ctx, key, fields...)
	if err != nil {
		return WorkItem{}, err
	}
	return WorkItem{Document: doc}, nil
}
