// Package es wraps the official Elasticsearch client with the handful of
// calls the loader needs: ping, create-if-absent, bulk and count
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	perr "moviesync/internal/platform/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Config configures the client
type Config struct {
	Addresses []string
	Username  string
	Password  string
	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
}

// Client is a narrow Elasticsearch client
type Client struct {
	es *elasticsearch.Client
	hc *http.Transport
}

// Open builds a client; no request is made until the first call
func Open(cfg Config) (*Client, error) {
	c := &Client{}
	rt := cfg.Transport
	if rt == nil {
		c.hc = http.DefaultTransport.(*http.Transport).Clone()
		rt = c.hc
	}
	cl, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: rt,
		// backoff is owned by the caller's probe, not the transport
		DisableRetry: true,
	})
	if err != nil {
		return nil, err
	}
	c.es = cl
	return c, nil
}

// Ping reports whether the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "es ping")
	}
	defer drain(res)
	if res.IsError() {
		return perr.Newf(perr.ErrorCodeUnavailable, "es ping: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates name with the given settings/mappings body when it does
// not exist yet. created is false when the index was already there, including
// when another process created it between our check and our create
func (c *Client) EnsureIndex(ctx context.Context, name string, body []byte) (created bool, err error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "es index exists %s", name)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, statusErr(res, "index exists "+name)
	}

	res, err = c.es.Indices.Create(name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "es create index %s", name)
	}
	defer drain(res)
	if !res.IsError() {
		return true, nil
	}
	var e errorBody
	raw, _ := io.ReadAll(res.Body)
	if json.Unmarshal(raw, &e) == nil && e.Error.Type == "resource_already_exists_exception" {
		return false, nil
	}
	return false, perr.Newf(codeFor(res.StatusCode), "es create index %s: %s %s", name, res.Status(), strings.TrimSpace(string(raw)))
}

// Bulk submits an NDJSON body and decodes the per-item outcome
func (c *Client) Bulk(ctx context.Context, body []byte) (*BulkResponse, error) {
	res, err := c.es.Bulk(bytes.NewReader(body), c.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "es bulk")
	}
	defer drain(res)
	if res.IsError() {
		return nil, statusErr(res, "bulk")
	}
	var out BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "es bulk response")
	}
	return &out, nil
}

// Refresh makes recent writes visible to search; used by tooling and tests
func (c *Client) Refresh(ctx context.Context, indices ...string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(indices...),
	)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "es refresh")
	}
	defer drain(res)
	if res.IsError() {
		return statusErr(res, "refresh")
	}
	return nil
}

// Count returns the number of documents in index
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	res, err := c.es.Count(c.es.Count.WithContext(ctx), c.es.Count.WithIndex(index))
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnavailable, "es count")
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return 0, perr.NotFoundf("index %s not found", index)
	}
	if res.IsError() {
		return 0, statusErr(res, "count "+index)
	}
	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeJSON, "es count response")
	}
	return out.Count, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	if c != nil && c.hc != nil {
		c.hc.CloseIdleConnections()
	}
	return nil
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// codeFor maps cluster-side trouble to Unavailable so probes and ticks retry later
func codeFor(status int) perr.ErrorCode {
	if status == http.StatusTooManyRequests || status >= 500 {
		return perr.ErrorCodeUnavailable
	}
	return perr.ErrorCodeSink
}

func statusErr(res *esapi.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return perr.Newf(codeFor(res.StatusCode), "es %s: %s %s", op, res.Status(), strings.TrimSpace(string(raw)))
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
