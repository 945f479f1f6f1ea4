package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTournaments_ParsesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/broadcast", r.URL.Path)
		_, _ = w.Write([]byte(`{"tour":{"id":"t1","name":"Candidates"},"rounds":[]}` + "\n" +
			`{"tour":{"id":"t2","name":"World Cup"},"rounds":[]}` + "\n"))
	}))
	defer srv.Close()

	c := catalog.New(srv.URL, nil)
	ts, err := c.ListTournaments(context.Background())
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "t1", ts[0].Tour.ID)
	assert.Equal(t, "World Cup", ts[1].Tour.Name)
}

func TestGetRoundBoards_ParsesGames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"round":{"id":"r1"},"tour":{"id":"t1"},"games":[{"id":"g1","name":"Board 1","status":"*","players":[{"name":"A"},{"name":"B"}]}]}`))
	}))
	defer srv.Close()

	c := catalog.New(srv.URL, nil)
	rb, err := c.GetRoundBoards(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, rb.Games, 1)
	assert.Equal(t, "*", rb.Games[0].Status)
}

func TestListTournaments_SurfacesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := catalog.New(srv.URL, nil)
	_, err := c.ListTournaments(context.Background())
	require.Error(t, err)
	var unavailable *catalog.ErrCatalogUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
