package backendstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	mapping "axis-studio/internal/mapping/domain"
)

// Client is a minimal REST client for the device mapping backend. It
// implements mapping.Store; the local editor model stays authoritative
// and every call here is treated as fallible.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a backend client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backendstore: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type mappingsPage struct {
	Data []mapping.Snapshot `json:"data"`
}

// ListMappings fetches the mapping set of one profile scope. A scope the
// backend has never seen lists as empty rather than failing the load.
func (c *Client) ListMappings(ctx context.Context, profileID, subProfileID string) ([]mapping.BackendRecord, error) {
	if profileID == "" || subProfileID == "" {
		return nil, errors.New("backendstore: empty scope")
	}
	var resp mappingsPage
	if err := c.doJSON(ctx, http.MethodGet, c.scopePath(profileID, subProfileID), nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	records := make([]mapping.BackendRecord, 0, len(resp.Data))
	for i, snapshot := range resp.Data {
		records = append(records, mapping.BackendRecord{Record: snapshot, BackendIndex: i})
	}
	return records, nil
}

// UpsertMapping writes one mapping, keyed by its source key.
func (c *Client) UpsertMapping(ctx context.Context, profileID, subProfileID string, snapshot mapping.Snapshot) error {
	if profileID == "" || subProfileID == "" {
		return errors.New("backendstore: empty scope")
	}
	if snapshot.SourceKey == "" {
		return errors.New("backendstore: empty source key")
	}
	path := c.scopePath(profileID, subProfileID) + "/" + url.PathEscape(snapshot.SourceKey)
	return c.doJSON(ctx, http.MethodPut, path, snapshot, nil)
}

// RemoveMapping deletes one mapping by source key. Removing a key the
// backend no longer has is not an error.
func (c *Client) RemoveMapping(ctx context.Context, profileID, subProfileID, sourceKey string) error {
	if profileID == "" || subProfileID == "" {
		return errors.New("backendstore: empty scope")
	}
	if sourceKey == "" {
		return errors.New("backendstore: empty source key")
	}
	path := c.scopePath(profileID, subProfileID) + "/" + url.PathEscape(sourceKey)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) scopePath(profileID, subProfileID string) string {
	return fmt.Sprintf("/api/profiles/%s/subprofiles/%s/mappings",
		url.PathEscape(profileID), url.PathEscape(subProfileID))
}

var errNotFound = errors.New("backendstore: not found")

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backendstore: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
