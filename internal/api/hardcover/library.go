package hardcover

import (
	"context"
	"fmt"

	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
)

// CurrentUserID gets the current user's ID, cached for CurrentUserCacheTTL.
func (c *Client) CurrentUserID(ctx context.Context) (int, error) {
	if id, ok := c.userCache.Get("current_user_id"); ok {
		return id, nil
	}

	var resp meResponse
	if err := c.execute(ctx, "CurrentUser", currentUserQuery, nil, &resp); err != nil {
		return 0, err
	}
	me, err := decodeMe(resp.Me)
	if err != nil {
		return 0, err
	}
	if me.User.ID == nil {
		return 0, &ShapeError{Field: "me.id", Raw: string(resp.Me)}
	}

	c.userCache.Set("current_user_id", *me.User.ID, 0)
	c.logger.Debug("Resolved current Hardcover user", map[string]interface{}{
		"user_id":  *me.User.ID,
		"username": me.User.Username,
	})
	return *me.User.ID, nil
}

// ListLibrary pages through me.user_books until a short page is returned.
func (c *Client) ListLibrary(ctx context.Context) ([]models.UserBook, error) {
	var books []models.UserBook
	for offset := 0; ; offset += libraryPageSize {
		var resp meResponse
		vars := map[string]interface{}{"offset": offset, "limit": libraryPageSize}
		if err := c.execute(ctx, "ListLibrary", listLibraryQuery, vars, &resp); err != nil {
			return nil, fmt.Errorf("failed to list library at offset %d: %w", offset, err)
		}
		me, err := decodeMe(resp.Me)
		if err != nil {
			return nil, err
		}
		if me.User.UserBooks == nil {
			return nil, &ShapeError{Field: "me.user_books", Raw: string(resp.Me)}
		}

		page := *me.User.UserBooks
		for _, ub := range page {
			books = append(books, ub.toModel())
		}
		if len(page) < libraryPageSize {
			break
		}
	}

	c.logger.Info("Fetched Hardcover library", map[string]interface{}{"books": len(books)})
	return books, nil
}

type editionsResponse struct {
	Editions []struct {
		editionNode
		Book *bookNode `json:"book"`
	} `json:"editions"`
}

// FindByIdentifier searches the global catalog by ISBN (both printed forms)
// or ASIN and groups matching editions by book.
func (c *Client) FindByIdentifier(ctx context.Context, kind identifier.Kind, value string) ([]models.CatalogBook, error) {
	normalized, ok := identifier.Normalize(kind, value)
	if !ok {
		return nil, nil
	}
	cacheKey := string(kind) + ":" + normalized
	if books, ok := c.searchCache.Get(cacheKey); ok {
		return books, nil
	}

	var (
		resp editionsResponse
		err  error
	)
	switch kind {
	case identifier.KindISBN:
		vars := map[string]interface{}{"isbns": identifier.ISBNForms(normalized)}
		err = c.execute(ctx, "FindEditionsByISBN", findByISBNQuery, vars, &resp)
	case identifier.KindASIN:
		vars := map[string]interface{}{"asin": normalized}
		err = c.execute(ctx, "FindEditionsByASIN", findByASINQuery, vars, &resp)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog search for %s %s: %w", kind, normalized, err)
	}

	var books []models.CatalogBook
	seen := make(map[int]bool)
	for _, e := range resp.Editions {
		if e.Book == nil || seen[e.Book.ID] {
			continue
		}
		seen[e.Book.ID] = true
		matched := e.editionNode.toModel()
		book := models.CatalogBook{
			ID:       e.Book.ID,
			Title:    e.Book.Title,
			Authors:  e.Book.authors(),
			Editions: e.Book.editions(),
			Matched:  matched,
		}
		if !containsEdition(book.Editions, matched.ID) {
			book.Editions = append(book.Editions, matched)
		}
		books = append(books, book)
	}

	c.searchCache.Set(cacheKey, books, 0)
	c.logger.Debug("Catalog search finished", map[string]interface{}{
		"kind":       kind,
		"identifier": normalized,
		"books":      len(books),
	})
	return books, nil
}

func containsEdition(editions []models.Edition, id int) bool {
	for _, e := range editions {
		if e.ID == id {
			return true
		}
	}
	return false
}

type userBookIDResult struct {
	ID    *int    `json:"id"`
	Error *string `json:"error"`
}

// AddToLibrary inserts a user_book and returns its id.
func (c *Client) AddToLibrary(ctx context.Context, bookID int, s status.Status, editionID int) (int, error) {
	vars := map[string]interface{}{
		"bookId":    bookID,
		"statusId":  int(s),
		"editionId": nil,
	}
	if editionID != 0 {
		vars["editionId"] = editionID
	}
	var resp struct {
		InsertUserBook *userBookIDResult `json:"insert_user_book"`
	}
	if err := c.executeInsert(ctx, "InsertUserBook", insertUserBookMutation, vars, &resp); err != nil {
		return 0, WithBookID(err, bookID)
	}
	res := resp.InsertUserBook
	if res == nil {
		return 0, WithBookID(&ShapeError{Field: "insert_user_book", Raw: "null"}, bookID)
	}
	if res.Error != nil && *res.Error != "" {
		return 0, WithBookID(&MutationError{Operation: "insert_user_book", Message: *res.Error}, bookID)
	}
	if res.ID == nil || *res.ID == 0 {
		return 0, WithBookID(&ShapeError{Field: "insert_user_book.id", Raw: "null"}, bookID)
	}

	c.logger.Info("Added book to Hardcover library", map[string]interface{}{
		"book_id":      bookID,
		"user_book_id": *res.ID,
		"status":       s.String(),
		"edition_id":   editionID,
	})
	return *res.ID, nil
}

// SetStatus changes the status of a user_book.
func (c *Client) SetStatus(ctx context.Context, userBookID int, s status.Status) error {
	vars := map[string]interface{}{"id": userBookID, "statusId": int(s)}
	var resp struct {
		UpdateUserBook *userBookIDResult `json:"update_user_book"`
	}
	if err := c.execute(ctx, "UpdateUserBookStatus", updateUserBookStatusMutation, vars, &resp); err != nil {
		return WithBookID(err, userBookID)
	}
	res := resp.UpdateUserBook
	if res == nil {
		return WithBookID(&ShapeError{Field: "update_user_book", Raw: "null"}, userBookID)
	}
	if res.Error != nil && *res.Error != "" {
		return WithBookID(&MutationError{Operation: "update_user_book", Message: *res.Error}, userBookID)
	}
	c.logger.Info("Updated Hardcover status", map[string]interface{}{
		"user_book_id": userBookID,
		"status":       s.String(),
	})
	return nil
}
