package sync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/drallgood/abs-hardcover-progress/internal/api/audiobookshelf"
	"github.com/drallgood/abs-hardcover-progress/internal/api/hardcover"
	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
)

// MockHardcoverClient is a mock implementation of the hardcover.HardcoverClientInterface
type MockHardcoverClient struct {
	mock.Mock
}

var _ hardcover.HardcoverClientInterface = (*MockHardcoverClient)(nil)

func (m *MockHardcoverClient) CurrentUserID(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockHardcoverClient) ListLibrary(ctx context.Context) ([]models.UserBook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserBook), args.Error(1)
}

func (m *MockHardcoverClient) FindByIdentifier(ctx context.Context, kind identifier.Kind, value string) ([]models.CatalogBook, error) {
	args := m.Called(ctx, kind, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogBook), args.Error(1)
}

func (m *MockHardcoverClient) AddToLibrary(ctx context.Context, bookID int, s status.Status, editionID int) (int, error) {
	args := m.Called(ctx, bookID, s, editionID)
	return args.Int(0), args.Error(1)
}

func (m *MockHardcoverClient) SetStatus(ctx context.Context, userBookID int, s status.Status) error {
	args := m.Called(ctx, userBookID, s)
	return args.Error(0)
}

func (m *MockHardcoverClient) GetCurrentProgress(ctx context.Context, userBookID int) (models.ReadProgress, bool, error) {
	args := m.Called(ctx, userBookID)
	return args.Get(0).(models.ReadProgress), args.Bool(1), args.Error(2)
}

func (m *MockHardcoverClient) WriteProgress(ctx context.Context, userBookID, editionID, value int, isDuration bool) error {
	args := m.Called(ctx, userBookID, editionID, value, isDuration)
	return args.Error(0)
}

// MockAudiobookshelfClient is a mock implementation of the audiobookshelf.AudiobookshelfClientInterface
type MockAudiobookshelfClient struct {
	mock.Mock
}

var _ audiobookshelf.AudiobookshelfClientInterface = (*MockAudiobookshelfClient)(nil)

func (m *MockAudiobookshelfClient) ListProgress(ctx context.Context) ([]models.SourceBook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SourceBook), args.Error(1)
}
