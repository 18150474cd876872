package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/royalcat/listingmap/listing"
	"github.com/valyala/fasthttp"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

const DefaultTimeout = 10 * time.Second

// Client talks to the remote listings API:
//
//	GET <base>/<resource>?page=&limit=&offset=[&minLat=&maxLat=&minLng=&maxLng=]
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration
	log     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client, tests use it to dial
// an in-memory listener.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:                "listingmap",
			MaxIdleConnDuration: time.Minute,
			ReadTimeout:         DefaultTimeout,
			WriteTimeout:        DefaultTimeout,
		},
		timeout: DefaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "apiclient")
	return c
}

func (c *Client) Resource(name string) *Resource {
	return &Resource{client: c, name: strings.Trim(name, "/")}
}

// Resource is a single paginated endpoint.
type Resource struct {
	client *Client
	name   string
}

func (r *Resource) Name() string {
	return r.name
}

func (r *Resource) FetchPage(ctx context.Context, q listing.Query) (listing.Page, error) {
	return r.client.fetchPage(ctx, r.name, q)
}

// Ping requests the smallest possible page to check the resource answers.
func (r *Resource) Ping(ctx context.Context) error {
	_, err := r.client.fetchPage(ctx, r.name, listing.Query{Page: 1, Limit: 1})
	return err
}

func (c *Client) fetchPage(ctx context.Context, resource string, q listing.Query) (listing.Page, error) {
	if err := ctx.Err(); err != nil {
		return listing.Page{}, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.SetRequestURI(c.base + "/" + resource)
	args := req.URI().QueryArgs()
	for _, p := range q.Params() {
		args.Add(p[0], p[1])
	}

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return listing.Page{}, fmt.Errorf("request %s page %d: %w", resource, q.Page, err)
	}

	status := resp.StatusCode()
	c.log.Debug("page received",
		"resource", resource,
		"page", q.Page,
		"status", status,
		"elapsed", time.Since(start),
	)
	if status < 200 || status >= 300 {
		return listing.Page{}, fmt.Errorf("%s page %d: %w %d", resource, q.Page, ErrUnexpectedStatus, status)
	}

	var page listing.Page
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return listing.Page{}, fmt.Errorf("decode %s page %d: %w", resource, q.Page, err)
	}
	return page, nil
}
