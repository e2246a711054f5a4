package audiobookshelf

import (
	"context"

	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

// AudiobookshelfClientInterface defines the interface for the Audiobookshelf API client
// This allows for mocking in tests
type AudiobookshelfClientInterface interface {
	ListProgress(ctx context.Context) ([]models.SourceBook, error)
}

// Ensure that the Client implements AudiobookshelfClientInterface
var _ AudiobookshelfClientInterface = (*Client)(nil)
