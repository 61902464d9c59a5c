package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxDownloadBytes bounds GetBytes so a misbehaving upstream cannot exhaust memory.
const MaxDownloadBytes = 32 << 20

// StatusError is returned by GetBytes for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// GetBytes downloads url with the given client, honouring ctx.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxDownloadBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, MaxDownloadBytes)
	}
	return body, nil
}
