package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/storedesk/internal/apperr"
)

type product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok", time.Second)
}

func TestFetchAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stores/s%201/products", r.URL.EscapedPath())
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Cola","price":5},{"id":"p2","name":"Chips","price":3.5}]`))
	})

	got, err := FetchAll[product](context.Background(), c, "s 1", ResourceProducts)
	require.NoError(t, err)
	assert.Equal(t, []product{{ID: "p1", Name: "Cola", Price: 5}, {ID: "p2", Name: "Chips", Price: 3.5}}, got)
}

func TestFetchNullIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`null`)) })
	got, err := c.Fetch(context.Background(), "s1", ResourceSuppliers)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateAs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stores/s1/products", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p product
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		p.ID = "srv1"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	})

	saved, err := CreateAs(context.Background(), c, "s1", ResourceProducts, product{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, product{ID: "srv1", Name: "X"}, saved)
}

func TestCreateEmptyResponse(t *testing.T) {
	bodies := []string{``, `null`, `{}`, `{"id":""}`, `[]`, `not json`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(body)) })
			_, err := c.Create(context.Background(), "s1", ResourceProducts, product{Name: "X"})
			assert.True(t, apperr.IsKind(err, apperr.KindEmptyResponse), "err=%v", err)
		})
	}
}

func TestNon2xxIsNetworkFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	})

	_, err := c.Update(context.Background(), ResourceProducts, "p1", product{ID: "p1"})
	require.Error(t, err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindNetwork, ae.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.Status)
	assert.Contains(t, err.Error(), "bad")
}

func TestUpdateAndDelete(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPatch {
			b, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"id":"p1","name":"New","price":0}`, string(b))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	raw, err := c.Update(context.Background(), ResourceProducts, "p1", product{ID: "p1", Name: "New"})
	require.NoError(t, err)
	assert.Nil(t, raw)
	require.NoError(t, c.Delete(context.Background(), ResourceProducts, "p1"))
	assert.Equal(t, []string{"PATCH /products/p1", "DELETE /products/p1"}, calls)
}

func TestConnectionErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", time.Second)
	err := c.Delete(context.Background(), ResourceSuppliers, "s1")
	assert.True(t, apperr.IsKind(err, apperr.KindNetwork))
}
