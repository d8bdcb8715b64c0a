package ckan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func setupMockCKAN(responseCode int, responseBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(responseCode)
		w.Write([]byte(responseBody))
	}))
}

func TestCallUnmarshalsResult(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Method, http.MethodPost)
		is.Equal(r.URL.Path, "/api/3/action/package_show")
		is.Equal(r.Header.Get("Authorization"), "secret-key")

		var payload map[string]string
		is.NoErr(json.NewDecoder(r.Body).Decode(&payload))
		is.Equal(payload["id"], "ocean-temps")

		w.Write([]byte(`{"success": true, "result": {"id": "abc123", "name": "ocean-temps"}}`))
	}))
	defer server.Close()

	c := New(server.URL, WithAPIKey("secret-key"))

	var result struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err := c.Call(context.Background(), "package_show", map[string]string{"id": "ocean-temps"}, &result)
	is.NoErr(err)
	is.Equal(result.ID, "abc123")
	is.Equal(result.Name, "ocean-temps")
}

func TestCallNotFoundError(t *testing.T) {
	is := is.New(t)

	server := setupMockCKAN(http.StatusNotFound,
		`{"success": false, "error": {"__type": "Not Found Error", "message": "Not found"}}`)
	defer server.Close()

	err := New(server.URL).Call(context.Background(), "package_show", map[string]string{"id": "ghost"}, nil)
	is.True(errors.Is(err, ErrActionNotFound))
}

func TestCallValidationError(t *testing.T) {
	is := is.New(t)

	server := setupMockCKAN(http.StatusConflict,
		`{"success": false, "error": {"__type": "Validation Error", "message": "That URL is already in use."}}`)
	defer server.Close()

	err := New(server.URL).Call(context.Background(), "package_create", map[string]string{"name": "dup"}, nil)
	is.True(errors.Is(err, ErrActionValidation))
}

func TestCallConflictWithoutType(t *testing.T) {
	is := is.New(t)

	server := setupMockCKAN(http.StatusConflict, `{"success": false}`)
	defer server.Close()

	err := New(server.URL).Call(context.Background(), "package_create", nil, nil)
	is.True(errors.Is(err, ErrActionConflict))
}

func TestCallUnreachable(t *testing.T) {
	is := is.New(t)

	server := setupMockCKAN(http.StatusOK, "{}")
	server.Close() // nothing listening anymore

	err := New(server.URL).Call(context.Background(), "status_show", nil, nil)
	is.True(errors.Is(err, ErrUnreachable))
}

func TestNewNormalizesBaseURL(t *testing.T) {
	is := is.New(t)
	is.Equal(New("localhost:5000").URL(), "http://localhost:5000")
	is.Equal(New("https://ckan.example.com/").URL(), "https://ckan.example.com")
}
