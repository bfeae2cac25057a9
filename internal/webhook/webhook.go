// Package webhook issues outbound HTTP notifications with secret
// substitution applied to the URL and headers.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minicd/minicd/internal/secrets"
)

// Notifier shares one HTTP client across every webhook dispatch.
type Notifier struct {
	client *http.Client
}

// New builds a Notifier with a sane request timeout. The client is safe
// for concurrent use by multiple in-flight jobs.
func New() *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error classifies a webhook delivery failure.
type Error struct {
	Kind   string // "invalid_method", "invalid_header", "transport", "status"
	Detail string
	Status int
}

func (e *Error) Error() string {
	if e.Kind == "status" {
		return fmt.Sprintf("webhook: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("webhook: %s: %s", e.Kind, e.Detail)
}

// Send issues an HTTP request to url with the given method (defaulting
// to GET when empty) and headers, after passing url and every header
// value through store's secret substitution. A 2xx response is
// success; anything else is a failure.
func (n *Notifier) Send(ctx context.Context, store *secrets.Store, url, method string, headers map[string]string) error {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	if !validMethod(method) {
		return &Error{Kind: "invalid_method", Detail: method}
	}

	resolvedURL := store.Replace(url)

	req, err := http.NewRequestWithContext(ctx, method, resolvedURL, nil)
	if err != nil {
		return &Error{Kind: "transport", Detail: err.Error()}
	}
	for k, v := range headers {
		if k == "" {
			return &Error{Kind: "invalid_header", Detail: "empty header name"}
		}
		req.Header.Set(k, store.Replace(v))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return &Error{Kind: "transport", Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: "status", Status: resp.StatusCode}
	}
	return nil
}

func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
