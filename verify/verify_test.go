package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("test-key", slog.New(slog.DiscardHandler))
	c.baseURL = srv.URL
	return c
}

func TestCheckEmailValid(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate_single/reader@example.com/test-key", r.URL.Path)
		fmt.Fprint(w, `{"Status":"Valid","Free_Domain":1,"Disposable_Domain":0,"Role_Based":0,"Greylisted":0,"Diagnosis":"OK"}`)
	})

	result, err := c.CheckEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.Free)
	assert.False(t, result.Disposable)
	assert.Equal(t, "OK", result.Diagnosis)
}

func TestCheckEmailStatusMapping(t *testing.T) {
	tests := []struct {
		status string
		valid  bool
	}{
		{StatusValid, true},
		{StatusCatchAll, true},
		{StatusInvalid, false},
		{StatusUnknown, false},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprintf(w, `{"Status":%q,"Diagnosis":"detail"}`, tc.status)
			})

			result, err := c.CheckEmail(context.Background(), "reader@example.com")
			require.NoError(t, err)
			assert.Equal(t, tc.valid, result.Valid)
			assert.Equal(t, "detail", result.Diagnosis)
		})
	}
}

func TestCheckEmailRetriesOnServerError(t *testing.T) {
	requests := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"Status":"Valid"}`)
	})

	result, err := c.CheckEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, requests)
}

func TestCheckEmailBadJSON(t *testing.T) {
	requests := 0
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		fmt.Fprint(w, `not json`)
	})

	_, err := c.CheckEmail(context.Background(), "reader@example.com")
	require.Error(t, err)
	assert.Equal(t, 1, requests, "malformed body is not retried")
}
