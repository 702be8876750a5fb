package clubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"rooms": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "tok-1" })
	_, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestLoggedOutRequestsOmitAuthorization(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		json.NewEncoder(w).Encode(map[string]any{"rooms": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "" })
	_, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	require.False(t, sawAuth)
}

func TestSendMessageCarriesClientID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/rooms/r1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "cid-1", body["client_id"])
		require.Equal(t, "hello", body["content"])

		json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{
			"id": "m1", "client_id": body["client_id"], "room_id": "r1", "content": body["content"],
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "tok" })
	msg, err := c.SendMessage(context.Background(), "r1", "cid-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, "cid-1", msg.ClientID)
}

func TestListMessagesPagesBackwards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "25", r.URL.Query().Get("limit"))
		require.Equal(t, "m10", r.URL.Query().Get("before"))
		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]any{
			{"id": "m9", "room_id": "r1", "content": "older"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "tok" })
	msgs, err := c.ListMessages(context.Background(), "r1", 25, "m10")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m9", msgs[0].ID)
}

func TestNon2xxSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "room is archived", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "tok" })
	err := c.JoinRoom(context.Background(), "r1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	require.Contains(t, err.Error(), "room is archived")
}
