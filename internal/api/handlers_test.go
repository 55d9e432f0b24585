package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntua-el20059/Chordify/internal/chord"
	"github.com/ntua-el20059/Chordify/internal/client"
	"github.com/ntua-el20059/Chordify/internal/store"
	"github.com/ntua-el20059/Chordify/internal/transport"
)

// startRing boots a singleton ring node with a live transport listener
// and returns it; the admin surface under test fronts this node.
func startRing(t *testing.T) *chord.Node {
	t.Helper()

	shard, err := store.Open("")
	require.NoError(t, err)

	ln, port, err := transport.Listen(0, true)
	require.NoError(t, err)

	node := chord.New("127.0.0.1", port, shard)
	srv := transport.NewServer(ln, node.HandleFrame)
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	node.Bootstrap(chord.Policy{
		ConsistencyType:   chord.ConsistencyLinearizable,
		ReplicationFactor: 1,
	})
	return node
}

func startAPI(t *testing.T, node *chord.Node) *client.Client {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery())
	NewHandler(node).Register(router)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return client.New(ts.URL, 0)
}

func TestKeyValueRoundTrip(t *testing.T) {
	node := startRing(t)
	c := startAPI(t, node)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "song", "a"))
	value, err := c.Get(ctx, "song")
	require.NoError(t, err)
	assert.Equal(t, "a", value)

	require.NoError(t, c.Put(ctx, "song", "b"))
	value, err = c.Get(ctx, "song")
	require.NoError(t, err)
	assert.Equal(t, "ab", value)

	require.NoError(t, c.Delete(ctx, "song"))
	_, err = c.Get(ctx, "song")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestQueryAllEndpoint(t *testing.T) {
	node := startRing(t)
	c := startAPI(t, node)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "b", "2"))
	require.NoError(t, c.Put(ctx, "a", "1"))

	entries, err := c.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestOverlayEndpoint(t *testing.T) {
	node := startRing(t)
	c := startAPI(t, node)

	nodes, err := c.Overlay(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes[0].ID.Cmp(node.Self().ID))
}

func TestStatusEndpoint(t *testing.T) {
	node := startRing(t)
	c := startAPI(t, node)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, node.Self().Addr(), status.Self.Addr())
	assert.Equal(t, node.Self().Addr(), status.Successor.Addr())
	assert.Equal(t, chord.ConsistencyLinearizable, status.Policy.ConsistencyType)
	assert.Equal(t, 1, status.Policy.ReplicationFactor)
}
