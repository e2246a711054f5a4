package hardcover

import (
	"context"
	"fmt"

	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

type currentProgressResponse struct {
	UserBookReads []struct {
		ID              int  `json:"id"`
		ProgressPages   *int `json:"progress_pages"`
		ProgressSeconds *int `json:"progress_seconds"`
		EditionID       *int `json:"edition_id"`
	} `json:"user_book_reads"`
	UserBooks []struct {
		ID       int `json:"id"`
		StatusID int `json:"status_id"`
	} `json:"user_books"`
}

// GetCurrentProgress returns the remote status and the newest read of a user_book.
func (c *Client) GetCurrentProgress(ctx context.Context, userBookID int) (models.ReadProgress, bool, error) {
	var resp currentProgressResponse
	vars := map[string]interface{}{"userBookId": userBookID}
	if err := c.execute(ctx, "CurrentProgress", currentProgressQuery, vars, &resp); err != nil {
		return models.ReadProgress{}, false, WithBookID(err, userBookID)
	}
	if len(resp.UserBooks) == 0 {
		return models.ReadProgress{}, false, nil
	}

	out := models.ReadProgress{StatusID: resp.UserBooks[0].StatusID}
	if len(resp.UserBookReads) > 0 {
		read := resp.UserBookReads[0]
		out.ReadID = read.ID
		out.EditionID = num(read.EditionID)
		out.ProgressPages = num(read.ProgressPages)
		out.ProgressSeconds = num(read.ProgressSeconds)
	}
	return out, true, nil
}

type readMutationResult struct {
	Error        *string `json:"error"`
	UserBookRead *struct {
		ID int `json:"id"`
	} `json:"user_book_read"`
}

func (r *readMutationResult) check(op string) error {
	if r == nil {
		return &ShapeError{Field: op, Raw: "null"}
	}
	if r.Error != nil && *r.Error != "" {
		return &MutationError{Operation: op, Message: *r.Error}
	}
	if r.UserBookRead == nil || r.UserBookRead.ID == 0 {
		return &MutationError{Operation: op, Message: "no read returned"}
	}
	return nil
}

// WriteProgress updates the newest read of userBookID, or inserts one dated
// today when none exists. Existing start dates are never rewritten.
func (c *Client) WriteProgress(ctx context.Context, userBookID, editionID, value int, isDuration bool) error {
	current, found, err := c.GetCurrentProgress(ctx, userBookID)
	if err != nil {
		return err
	}
	if !found {
		return WithBookID(fmt.Errorf("user book not found"), userBookID)
	}

	unit := "pages"
	if isDuration {
		unit = "seconds"
	}
	fields := map[string]interface{}{
		"user_book_id": userBookID,
		"edition_id":   editionID,
		"value":        value,
		"unit":         unit,
	}

	if current.ReadID != 0 {
		mutation := updateReadPagesMutation
		if isDuration {
			mutation = updateReadSecondsMutation
		}
		var resp struct {
			Result *readMutationResult `json:"update_user_book_read"`
		}
		vars := map[string]interface{}{"id": current.ReadID, "value": value, "editionId": editionID}
		if err := c.execute(ctx, "UpdateUserBookRead", mutation, vars, &resp); err != nil {
			return WithBookID(err, userBookID)
		}
		if err := resp.Result.check("update_user_book_read"); err != nil {
			return WithBookID(err, userBookID)
		}
		fields["read_id"] = current.ReadID
		c.logger.Info("Updated reading progress", fields)
		return nil
	}

	mutation := insertReadPagesMutation
	if isDuration {
		mutation = insertReadSecondsMutation
	}
	var resp struct {
		Result *readMutationResult `json:"insert_user_book_read"`
	}
	vars := map[string]interface{}{
		"userBookId": userBookID,
		"value":      value,
		"editionId":  editionID,
		"startedAt":  c.now().Format("2006-01-02"),
	}
	if err := c.executeInsert(ctx, "InsertUserBookRead", mutation, vars, &resp); err != nil {
		return WithBookID(err, userBookID)
	}
	if err := resp.Result.check("insert_user_book_read"); err != nil {
		return WithBookID(err, userBookID)
	}
	fields["read_id"] = resp.Result.UserBookRead.ID
	c.logger.Info("Started reading progress", fields)
	return nil
}
