package resourcegraph

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/model"
)

type fakeAPI struct {
	pages    []armresourcegraph.ClientResourcesResponse
	err      error
	requests []armresourcegraph.QueryRequest
}

func (f *fakeAPI) Resources(_ context.Context, q armresourcegraph.QueryRequest, _ *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error) {
	f.requests = append(f.requests, q)
	if f.err != nil {
		return armresourcegraph.ClientResourcesResponse{}, f.err
	}
	return f.pages[len(f.requests)-1], nil
}

func page(data any, skipToken *string) armresourcegraph.ClientResourcesResponse {
	return armresourcegraph.ClientResourcesResponse{
		QueryResponse: armresourcegraph.QueryResponse{Data: data, SkipToken: skipToken},
	}
}

func TestClientQueryPaging(t *testing.T) {
	api := &fakeAPI{pages: []armresourcegraph.ClientResourcesResponse{
		page([]any{map[string]any{"name": "vm1"}}, to.Ptr("next")),
		page([]any{map[string]any{"name": "vm2"}}, nil),
	}}
	c := newClient(api, config.AzureConfig{PageSize: 1000, MaxPages: 5})

	rows, err := c.Query(context.Background(), "sub-1", "Resources | project name")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	rec, ok := rows[1].AsRecord()
	require.True(t, ok)
	assert.Equal(t, "vm2", rec.Get("name").String())

	require.Len(t, api.requests, 2)
	first := api.requests[0]
	assert.Equal(t, "Resources | project name", *first.Query)
	assert.Equal(t, "sub-1", *first.Subscriptions[0])
	assert.Equal(t, armresourcegraph.ResultFormatObjectArray, *first.Options.ResultFormat)
	assert.Equal(t, int32(1000), *first.Options.Top)
	assert.Nil(t, first.Options.SkipToken)
	assert.Equal(t, "next", *api.requests[1].Options.SkipToken)
}

func TestClientQueryMaxPages(t *testing.T) {
	api := &fakeAPI{pages: []armresourcegraph.ClientResourcesResponse{
		page([]any{map[string]any{"name": "a"}}, to.Ptr("t1")),
		page([]any{map[string]any{"name": "b"}}, to.Ptr("t2")),
	}}
	rows, err := newClient(api, config.AzureConfig{MaxPages: 2}).Query(context.Background(), "sub", "q")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, api.requests, 2)
}

func TestClientQueryErrors(t *testing.T) {
	_, err := newClient(&fakeAPI{}, config.AzureConfig{}).Query(context.Background(), "", "q")
	assert.ErrorIs(t, err, ErrNoSubscription)

	boom := errors.New("authorization failed")
	_, err = newClient(&fakeAPI{err: boom}, config.AzureConfig{}).Query(context.Background(), "sub", "q")
	assert.ErrorIs(t, err, boom)

	api := &fakeAPI{pages: []armresourcegraph.ClientResourcesResponse{page("not a table", nil)}}
	_, err = newClient(api, config.AzureConfig{}).Query(context.Background(), "sub", "q")
	assert.ErrorContains(t, err, "unexpected resource graph data type")

	api = &fakeAPI{pages: []armresourcegraph.ClientResourcesResponse{page(nil, nil)}}
	rows, err := newClient(api, config.AzureConfig{}).Query(context.Background(), "sub", "q")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRowsKeepsKeyOrder(t *testing.T) {
	body := []byte(`{"totalRecords":2,"count":2,"data":[
		{"name":"st1","type":"microsoft.storage/storageaccounts","sku":{"tier":"Standard","name":"Standard_LRS"},"tags":null,"zones":["1","2"],"size":12345678901234567890,"https":true},
		"oops"
	]}`)

	rows, ok := decodeRows(body)
	require.True(t, ok)
	require.Len(t, rows, 2)

	rec, ok := rows[0].AsRecord()
	require.True(t, ok)
	assert.Equal(t, []string{"name", "type", "sku", "tags", "zones", "size", "https"}, rec.Keys())
	assert.Equal(t, `{"tier":"Standard","name":"Standard_LRS"}`, rec.Get("sku").JSON())
	assert.True(t, rec.Has("tags"))
	assert.True(t, rec.Get("tags").IsAbsent())
	assert.Equal(t, model.KindList, rec.Get("zones").Kind())
	assert.Equal(t, "12345678901234567890", rec.Get("size").String())
	assert.Equal(t, "true", rec.Get("https").String())

	_, ok = rows[1].AsRecord()
	assert.False(t, ok)

	_, ok = decodeRows([]byte(`{"data":{}}`))
	assert.False(t, ok)
	_, ok = decodeRows([]byte(`not json`))
	assert.False(t, ok)
}

func TestPrettyBody(t *testing.T) {
	assert.Equal(t, "{\n  \"error\": {\n    \"code\": \"BadRequest\"\n  }\n}", prettyBody([]byte(`{"error":{"code":"BadRequest"}}`)))
	assert.Equal(t, "plain text", prettyBody([]byte("plain text")))
}
