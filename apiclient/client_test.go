package apiclient_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/royalcat/listingmap/apiclient"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, handler fasthttp.RequestHandler) *apiclient.Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		ln.Close()
	})

	hc := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	return apiclient.New("http://listings.test/", apiclient.WithHTTPClient(hc))
}

func TestFetchPageSendsViewport(t *testing.T) {
	var gotPath string
	var gotArgs map[string]string

	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotArgs = map[string]string{}
		ctx.QueryArgs().VisitAll(func(k, v []byte) {
			gotArgs[string(k)] = string(v)
		})
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"projects":[{"rera":"R1","name":"One","coordinates":"1,2"}],"total":7,"has_more":true,"page":2,"limit":500}`)
	})

	page, err := client.Resource("residential_projects_viewport").FetchPage(context.Background(), listing.Query{
		Page:   2,
		Limit:  500,
		Bounds: &georect.Rect{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, "/residential_projects_viewport", gotPath)
	assert.Equal(t, map[string]string{
		"minLat": "1", "maxLat": "2", "minLng": "3", "maxLng": "4",
		"page": "2", "limit": "500", "offset": "500",
	}, gotArgs)

	assert.Equal(t, 7, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Projects, 1)
	assert.Equal(t, "R1", page.Projects[0].Rera)
}

func TestFetchPageNon2xx(t *testing.T) {
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})

	_, err := client.Resource("projects").FetchPage(context.Background(), listing.Query{Page: 1, Limit: 6})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiclient.ErrUnexpectedStatus))
}

func TestFetchPageMalformedBody(t *testing.T) {
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"projects": [`)
	})

	_, err := client.Resource("projects").FetchPage(context.Background(), listing.Query{Page: 1, Limit: 6})
	require.Error(t, err)
	assert.False(t, errors.Is(err, apiclient.ErrUnexpectedStatus))
}

func TestFetchPageCancelledContext(t *testing.T) {
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		t.Error("request should not be sent")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Resource("projects").FetchPage(ctx, listing.Query{Page: 1, Limit: 6})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPing(t *testing.T) {
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.QueryArgs().Peek("limit")) != "1" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetBodyString(`{"projects":[],"total":0,"has_more":false,"page":1,"limit":1}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, client.Resource("projects").Ping(ctx))
}

func TestFetchPageKeepsValidProjects(t *testing.T) {
	client := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"projects":[` +
			`{"rera":"A1","coordinates":"1,2","price":{"value":"50L"}},` +
			`{"rera":"A2","coordinates":12.5},` +
			`{"rera":"A3","coordinates":"3,4"}` +
			`],"total":3,"has_more":false,"page":1,"limit":6}`)
	})

	page, err := client.Resource("commercial_projects_viewport").FetchPage(context.Background(), listing.Query{Page: 1, Limit: 6})
	require.NoError(t, err)

	require.Len(t, page.Projects, 2)
	assert.Equal(t, "A1", page.Projects[0].Rera)
	assert.Equal(t, "50L", page.Projects[0].Price.Value)
	assert.Equal(t, "A3", page.Projects[1].Rera)

	require.Len(t, page.Rejected, 1)
	assert.Equal(t, "A2", page.Rejected[0].ID)
	assert.Equal(t, 3, page.Total)
}
