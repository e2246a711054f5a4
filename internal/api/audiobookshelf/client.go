package audiobookshelf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

const (
	apiPath = "/api"

	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second
	// DefaultMaxConcurrent is the number of library pages fetched at once
	DefaultMaxConcurrent = 4
	// DefaultPageSize is the number of items requested per library page
	DefaultPageSize = 100
)

// ClientConfig holds the connection settings for an Audiobookshelf server.
type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	MaxConcurrent int
	PageSize      int
}

// Client is a client for the Audiobookshelf API
type Client struct {
	baseURL       string
	token         string
	client        *http.Client
	maxConcurrent int
	pageSize      int
	logger        *logger.Logger
}

// NewClient creates a new Audiobookshelf client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if log == nil {
		log = logger.Get()
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		client:        &http.Client{Timeout: cfg.Timeout},
		maxConcurrent: cfg.MaxConcurrent,
		pageSize:      cfg.PageSize,
		logger:        log.With(map[string]interface{}{"component": "audiobookshelf_client"}),
	}
}

// getJSON performs an authenticated GET against the API and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	u := c.baseURL + apiPath + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Request failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Error("Unexpected status code", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"response": string(body),
		})
		return fmt.Errorf("GET %s: unexpected status code: %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

// GetLibraries fetches all libraries from Audiobookshelf
func (c *Client) GetLibraries(ctx context.Context) ([]models.AudiobookshelfLibrary, error) {
	var result struct {
		Libraries []models.AudiobookshelfLibrary `json:"libraries"`
	}
	if err := c.getJSON(ctx, "/libraries", nil, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched libraries", map[string]interface{}{"count": len(result.Libraries)})
	return result.Libraries, nil
}

// GetLibraryItems returns all items of a library, following pages until a
// short page or the reported total is reached.
func (c *Client) GetLibraryItems(ctx context.Context, libraryID string) ([]models.AudiobookshelfItem, error) {
	if libraryID == "" {
		return nil, fmt.Errorf("library ID is required")
	}
	endpoint := "/libraries/" + url.PathEscape(libraryID) + "/items"

	var items []models.AudiobookshelfItem
	for page := 0; ; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("page", strconv.Itoa(page))

		var resp models.AudiobookshelfLibraryResponse
		if err := c.getJSON(ctx, endpoint, query, &resp); err != nil {
			return nil, fmt.Errorf("library %s page %d: %w", libraryID, page, err)
		}
		items = append(items, resp.Results...)

		if len(resp.Results) < c.pageSize || (resp.Total > 0 && len(items) >= resp.Total) {
			break
		}
	}

	c.logger.Debug("Fetched library items", map[string]interface{}{
		"library_id": libraryID,
		"count":      len(items),
	})
	return items, nil
}

// GetMediaProgress returns the current user's progress entries from /api/me.
func (c *Client) GetMediaProgress(ctx context.Context) ([]models.AudiobookshelfMediaProgress, error) {
	var me struct {
		ID            string                               `json:"id"`
		Username      string                               `json:"username"`
		MediaProgress []models.AudiobookshelfMediaProgress `json:"mediaProgress"`
	}
	if err := c.getJSON(ctx, "/me", nil, &me); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched media progress", map[string]interface{}{
		"user":  me.Username,
		"count": len(me.MediaProgress),
	})
	return me.MediaProgress, nil
}

// ListProgress returns every book item that has a progress entry. The user's
// progress and the library contents are fetched concurrently; the call fails
// as a whole if any request fails.
func (c *Client) ListProgress(ctx context.Context) ([]models.SourceBook, error) {
	var (
		progress  []models.AudiobookshelfMediaProgress
		libraries []models.AudiobookshelfLibrary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		progress, err = c.GetMediaProgress(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		libraries, err = c.GetLibraries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch audiobookshelf snapshot: %w", err)
	}

	var (
		mu    sync.Mutex
		items = make(map[string]models.AudiobookshelfItem)
	)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, lib := range libraries {
		if lib.MediaType != "" && lib.MediaType != "book" {
			continue
		}
		lib := lib
		g.Go(func() error {
			libItems, err := c.GetLibraryItems(gctx, lib.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, it := range libItems {
				items[it.ID] = it
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch audiobookshelf snapshot: %w", err)
	}

	books := make([]models.SourceBook, 0, len(progress))
	for _, p := range progress {
		if p.EpisodeID != "" {
			continue
		}
		item, ok := items[p.LibraryItemID]
		if !ok {
			c.logger.Debug("Progress entry without library item", map[string]interface{}{
				"library_item_id": p.LibraryItemID,
			})
			continue
		}
		books = append(books, toSourceBook(item, p))
	}

	c.logger.Info("Fetched Audiobookshelf progress", map[string]interface{}{
		"libraries": len(libraries),
		"items":     len(items),
		"books":     len(books),
	})
	return books, nil
}

func toSourceBook(item models.AudiobookshelfItem, p models.AudiobookshelfMediaProgress) models.SourceBook {
	pct := p.Progress * 100
	if p.IsFinished {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	book := models.SourceBook{
		LibraryItemID:   item.ID,
		Title:           item.Media.Metadata.Title,
		Author:          item.Author(),
		ISBN:            item.Media.Metadata.ISBN,
		ASIN:            item.Media.Metadata.ASIN,
		ProgressPercent: pct,
		IsFinished:      p.IsFinished,
		Duration:        item.Media.Duration,
	}
	if book.Duration == 0 {
		book.Duration = p.Duration
	}
	if p.CurrentTime > 0 {
		ct := p.CurrentTime
		book.CurrentTime = &ct
	}
	return book
}
