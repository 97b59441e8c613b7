package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

var getThing = Operation{Name: "GetThing", Document: "query GetThing($id: ID!) { thing(id: $id) { id name } }", Kind: Query}

var renameThing = Operation{Name: "RenameThing", Document: "mutation RenameThing($id: ID!) { renameThing(id: $id) { ok } }", Kind: Mutation}

type thingData struct {
	Thing struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"thing"`
}

func TestClient_QuerySendsRequestShape(t *testing.T) {
	var got Request
	var auth, requestID, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"thing":{"id":"7","name":"lamp"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenSource(staticToken("abc")))

	var out thingData
	err := c.Query(context.Background(), getThing, map[string]any{"id": "7"}, &out, NetworkOnly)
	require.NoError(t, err)

	assert.Equal(t, "lamp", out.Thing.Name)
	assert.Equal(t, "GetThing", got.OperationName)
	assert.Equal(t, getThing.Document, got.Query)
	assert.Equal(t, "7", got.Variables["id"])
	assert.Equal(t, "Bearer abc", auth)
	assert.Equal(t, "application/json", contentType)
	assert.NotEmpty(t, requestID)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"thing":{"id":"1","name":"x"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenSource(staticToken("")))
	require.NoError(t, c.Query(context.Background(), getThing, nil, &thingData{}, NetworkOnly))
	assert.Empty(t, auth)
}

func TestClient_CacheFirstAvoidsSecondRoundTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"thing":{"id":"1","name":"cached"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()
	vars := map[string]any{"id": "1"}

	var first, second thingData
	require.NoError(t, c.Query(ctx, getThing, vars, &first, CacheFirst))
	require.NoError(t, c.Query(ctx, getThing, vars, &second, CacheFirst))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "cached", second.Thing.Name)

	require.NoError(t, c.Query(ctx, getThing, vars, &second, NetworkOnly))
	assert.Equal(t, int32(2), calls.Load())

	c.Invalidate("GetThing")
	require.NoError(t, c.Query(ctx, getThing, vars, &second, CacheFirst))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"You do not have permission"},{"message":"second"}]}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Mutate(context.Background(), renameThing, nil, &struct{}{})

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "You do not have permission", respErr.FirstMessage())
	assert.Equal(t, "RenameThing", respErr.Operation)
	assert.Contains(t, err.Error(), "second")
}

func TestClient_GraphQLErrorsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Syntax Error: Unexpected Name"}]}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Query(context.Background(), getThing, nil, &thingData{}, NetworkOnly)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "Syntax Error: Unexpected Name", respErr.FirstMessage())
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Query(context.Background(), getThing, nil, &thingData{}, NetworkOnly)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "bad gateway")
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(url).Query(context.Background(), getThing, nil, &thingData{}, NetworkOnly)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "GetThing", netErr.Operation)
}

func TestClient_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Query(context.Background(), getThing, nil, &thingData{}, NetworkOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errEmptyData))
}

func TestClient_MutateDoesNotCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"renameThing":{"ok":true}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.Mutate(context.Background(), renameThing, map[string]any{"id": "1"}, nil))
	assert.Equal(t, 0, c.Cache().Len())
}

func TestClient_NetworkOnlyContextSkipsCacheRead(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		_, _ = fmt.Fprintf(w, `{"data":{"thing":{"id":"1","name":"v%d"}}}`, n)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	vars := map[string]any{"id": "1"}

	var out thingData
	require.NoError(t, c.Query(context.Background(), getThing, vars, &out, CacheFirst))
	require.NoError(t, c.Query(WithNetworkOnly(context.Background()), getThing, vars, &out, CacheFirst))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "v2", out.Thing.Name)

	// The fresh response replaced the cached one.
	require.NoError(t, c.Query(context.Background(), getThing, vars, &out, CacheFirst))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "v2", out.Thing.Name)
}

func TestClient_ResponseRacingInvalidateIsNotCached(t *testing.T) {
	var c *Client
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A mutation lands while this query is in flight.
		c.Invalidate("GetThing")
		_, _ = w.Write([]byte(`{"data":{"thing":{"id":"1","name":"before-mutation"}}}`))
	}))
	defer srv.Close()

	c = NewClient(srv.URL)
	var out thingData
	require.NoError(t, c.Query(context.Background(), getThing, map[string]any{"id": "1"}, &out, CacheFirst))
	assert.Equal(t, "before-mutation", out.Thing.Name)
	assert.Equal(t, 0, c.Cache().Len())
}
