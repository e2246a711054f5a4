package audiobookshelf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

func item(id, title, author, isbn, asin string, duration float64) map[string]interface{} {
	return map[string]interface{}{
		"id": id,
		"media": map[string]interface{}{
			"metadata": map[string]interface{}{
				"title":      title,
				"authorName": author,
				"isbn":       isbn,
				"asin":       asin,
			},
			"duration": duration,
		},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://example.com/", Token: "test-token"}, nil)
	assert.NotNil(t, client)
	assert.Equal(t, "http://example.com", client.baseURL)
	assert.Equal(t, "test-token", client.token)
	assert.Equal(t, DefaultPageSize, client.pageSize)
	assert.Equal(t, DefaultMaxConcurrent, client.maxConcurrent)
	assert.Equal(t, DefaultTimeout, client.client.Timeout)
}

func TestGetLibraries(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedResult []models.AudiobookshelfLibrary
		expectError    bool
	}{
		{
			name: "successful response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/libraries", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				writeJSON(w, map[string]interface{}{
					"libraries": []map[string]string{
						{"id": "1", "name": "Library 1", "mediaType": "book"},
						{"id": "2", "name": "Library 2", "mediaType": "podcast"},
					},
				})
			},
			expectedResult: []models.AudiobookshelfLibrary{
				{ID: "1", Name: "Library 1", MediaType: "book"},
				{ID: "2", Name: "Library 2", MediaType: "podcast"},
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectError: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token"}, nil)
			libraries, err := client.GetLibraries(context.Background())

			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedResult, libraries)
			}
		})
	}
}

func TestGetLibraryItemsPaging(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/libraries/lib1/items", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		n, _ := strconv.Atoi(page)
		var results []map[string]interface{}
		for i := n * 2; i < 5 && i < n*2+2; i++ {
			results = append(results, item(fmt.Sprintf("item%d", i), "Book", "", "", "", 0))
		}
		writeJSON(w, map[string]interface{}{"results": results, "total": 5, "limit": 2, "page": n})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token", PageSize: 2}, nil)
	items, err := client.GetLibraryItems(context.Background(), "lib1")
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, []string{"0", "1", "2"}, pages)

	_, err = client.GetLibraryItems(context.Background(), "")
	assert.Error(t, err)
}

func snapshotServer(t *testing.T, failItems bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":       "user1",
			"username": "listener",
			"mediaProgress": []map[string]interface{}{
				{"id": "p1", "libraryItemId": "li-hobbit", "progress": 0.6, "currentTime": 21600, "duration": 36000},
				{"id": "p2", "libraryItemId": "li-dune", "progress": 0.99, "isFinished": true},
				{"id": "p3", "libraryItemId": "li-gone", "progress": 0.4},
				{"id": "p4", "libraryItemId": "li-pod", "episodeId": "ep1", "progress": 0.5},
			},
		})
	})
	mux.HandleFunc("/api/libraries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"libraries": []map[string]string{
				{"id": "books", "name": "Books", "mediaType": "book"},
				{"id": "pods", "name": "Podcasts", "mediaType": "podcast"},
			},
		})
	})
	mux.HandleFunc("/api/libraries/books/items", func(w http.ResponseWriter, r *http.Request) {
		if failItems {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]interface{}{
			"results": []map[string]interface{}{
				item("li-hobbit", "The Hobbit", "J.R.R. Tolkien", "", "B0099SNTPI", 37800),
				item("li-dune", "Dune", "Frank Herbert", "978-0-441-17271-9", "", 0),
				item("li-unread", "Unread", "Nobody", "", "", 100),
			},
			"total": 3,
		})
	})
	mux.HandleFunc("/api/libraries/pods/items", func(w http.ResponseWriter, r *http.Request) {
		t.Error("podcast libraries must not be fetched")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestListProgress(t *testing.T) {
	server := snapshotServer(t, false)
	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token"}, nil)

	books, err := client.ListProgress(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)

	byID := map[string]models.SourceBook{}
	for _, b := range books {
		byID[b.LibraryItemID] = b
	}

	hobbit := byID["li-hobbit"]
	assert.Equal(t, "The Hobbit", hobbit.Title)
	assert.Equal(t, "J.R.R. Tolkien", hobbit.Author)
	assert.Equal(t, "B0099SNTPI", hobbit.ASIN)
	assert.InDelta(t, 60.0, hobbit.ProgressPercent, 1e-9)
	require.NotNil(t, hobbit.CurrentTime)
	assert.Equal(t, 21600.0, *hobbit.CurrentTime)
	assert.Equal(t, 37800.0, hobbit.Duration)

	dune := byID["li-dune"]
	assert.Equal(t, 100.0, dune.ProgressPercent, "finished books report full progress")
	assert.True(t, dune.IsFinished)
	assert.Nil(t, dune.CurrentTime)
	assert.Equal(t, "978-0-441-17271-9", dune.ISBN)
}

func TestListProgressFailsWholeSnapshot(t *testing.T) {
	server := snapshotServer(t, true)
	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token"}, nil)

	books, err := client.ListProgress(context.Background())
	assert.Error(t, err)
	assert.Nil(t, books)
}
