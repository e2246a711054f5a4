package hardcover

import (
	"context"

	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
)

// HardcoverClientInterface defines the interface for interacting with the Hardcover API
type HardcoverClientInterface interface {
	// CurrentUserID returns the id of the token's owner
	CurrentUserID(ctx context.Context) (int, error)

	// ListLibrary returns every book in the user's library with its editions
	ListLibrary(ctx context.Context) ([]models.UserBook, error)

	// FindByIdentifier searches the whole catalog, not just the user's library.
	// An empty result is not an error.
	FindByIdentifier(ctx context.Context, kind identifier.Kind, value string) ([]models.CatalogBook, error)

	// AddToLibrary creates a user_book and returns its id. editionID may be 0.
	AddToLibrary(ctx context.Context, bookID int, s status.Status, editionID int) (int, error)

	// SetStatus updates the status of a user_book
	SetStatus(ctx context.Context, userBookID int, s status.Status) error

	// GetCurrentProgress returns the status and newest read of a user_book.
	// found is false when the user_book does not exist.
	GetCurrentProgress(ctx context.Context, userBookID int) (progress models.ReadProgress, found bool, err error)

	// WriteProgress updates the newest read or starts one. value is seconds
	// when isDuration is set, pages otherwise.
	WriteProgress(ctx context.Context, userBookID, editionID, value int, isDuration bool) error
}

var _ HardcoverClientInterface = (*Client)(nil)
