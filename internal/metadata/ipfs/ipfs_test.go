package ipfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRewritesIPFSURIs(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Sword","description":"pointy","image":"ipfs://Qmimg"}`))
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL)
	md, err := g.Resolve(context.Background(), "ipfs://Qmdoc")
	require.NoError(t, err)

	assert.Equal(t, "/ipfs/Qmdoc", gotPath)
	assert.Equal(t, "Sword", md.Name)
	assert.Equal(t, srv.URL+"/ipfs/Qmimg", md.Image)
}

func TestResolvePassesThroughHTTPURIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Shield","image":"https://cdn.example/shield.png"}`))
	}))
	t.Cleanup(srv.Close)

	g := NewGateway("https://unused.invalid")
	md, err := g.Resolve(context.Background(), srv.URL+"/meta.json")
	require.NoError(t, err)
	assert.Equal(t, "Shield", md.Name)
	// Non-ipfs image URLs are left alone.
	assert.Equal(t, "https://cdn.example/shield.png", md.Image)
}

func TestResolveGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL)
	_, err := g.Resolve(context.Background(), "ipfs://Qmdoc")
	assert.Error(t, err)
}
