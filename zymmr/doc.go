// Package zymmr provides a client for the Zymmr project management REST API.
//
// Zymmr is built on the Frappe Framework, so every record type (Project,
// Work Item, Time Log, ...) is a DocType served under /api/resource. This
// package implements a small, idiomatic Go client for reading and writing
// those documents.
//
// # Usage
//
// Create a client from a Config and close it when done:
//
//	cfg := zymmr.DefaultConfig()
//	cfg.BaseURL = "https://zymmr.example.com"
//	cfg.Username = "me@example.com"
//	cfg.Password = os.Getenv("ZYMMR_PASSWORD")
//
//	client, err := zymmr.Open(ctx, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	projects, err := client.List(ctx, zymmr.DocTypeProject, zymmr.ListOptions{
//		Fields:  []string{"name", "title", "status"},
//		Filters: zymmr.Filters{"status": "Active"},
//	})
//
// # Sessions
//
// The client logs in through /api/method/login and keeps Frappe's sid
// cookie. With Config.AutoLogin the first data call logs in on demand. When
// the server reports an expired session the client logs in again once and
// replays the call.
//
// # Retries
//
// Transport failures and 5xx responses are retried with exponential backoff
// up to Config.MaxAttempts. Inserts are retried too, so an insert whose
// response was lost after the server committed it can create a duplicate.
//
// # Error Handling
//
// Every failure is an *APIError whose Kind matches one sentinel:
//
//   - ErrAuthentication: invalid credentials or rejected session
//   - ErrPermission: authenticated but forbidden (403)
//   - ErrNotFound: document or collection absent (404)
//   - ErrValidation: request data rejected (400, 409, 417, ...)
//   - ErrServer: 5xx after retries
//   - ErrConnection: transport failure after retries (ErrTimeout for timeouts)
//
//	if errors.Is(err, zymmr.ErrNotFound) {
//		// Handle missing document
//	}
package zymmr
