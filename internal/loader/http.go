package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Request describes one remote fetch.
type Request struct {
	URL     string
	Method  string
	Headers http.Header
	Timeout time.Duration
	Limit   int64
}

// HTTP fetches a document. Backends describe the accepted payload of a
// resource in the body of an OPTIONS response, so any 2xx status with a body
// is accepted.
func HTTP(ctx context.Context, client *http.Client, req Request) ([]byte, error) {
	if client == nil {
		return nil, errors.New("loader: http client is not configured")
	}
	if req.URL == "" {
		return nil, errors.New("loader: url is required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodOptions
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/schema+json, application/json;q=0.9, application/yaml;q=0.8")
	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("loader: %s %s: unexpected status %s", method, req.URL, resp.Status)
	}
	return readLimited(resp.Body, req.Limit)
}
