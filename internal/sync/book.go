package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/edition"
	"github.com/drallgood/abs-hardcover-progress/internal/identifier"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
)

// onceRead returns a function that runs fetch on first use and replays its
// results afterwards.
func onceRead(fetch func() (models.ReadProgress, bool, error)) func() (models.ReadProgress, bool, error) {
	var (
		once  sync.Once
		p     models.ReadProgress
		found bool
		err   error
	)
	return func() (models.ReadProgress, bool, error) {
		once.Do(func() { p, found, err = fetch() })
		return p, found, err
	}
}

// identifiers returns the valid identifiers of book, ASIN first.
func identifiers(book models.SourceBook) []identifier.ID {
	var ids []identifier.ID
	if v, ok := identifier.NormalizeASIN(book.ASIN); ok {
		ids = append(ids, identifier.ID{Kind: identifier.KindASIN, Value: v})
	}
	if v, ok := identifier.NormalizeISBN(book.ISBN); ok {
		ids = append(ids, identifier.ID{Kind: identifier.KindISBN, Value: v})
	}
	return ids
}

func cacheKeys(userID string, book models.SourceBook, ids []identifier.ID) []cache.Key {
	keys := make([]cache.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.Key{UserID: userID, Kind: id.Kind, Identifier: id.Value, Title: book.Title})
	}
	return keys
}

// target is a library book resolved for one source book.
type target struct {
	book    models.UserBook
	matched models.Edition
	added   bool
}

// reconcile runs the whole pipeline for one book. It never panics on remote
// failures; every error becomes a failed outcome.
func (s *Service) reconcile(ctx context.Context, r *run, book models.SourceBook) Outcome {
	ids := identifiers(book)
	if len(ids) == 0 {
		return skipped(book.Title, "no valid identifier")
	}
	keys := cacheKeys(r.userID, book, ids)
	log := s.log.With(map[string]interface{}{
		"title":      book.Title,
		"identifier": ids[0].Value,
		"kind":       ids[0].Kind,
	})

	if book.ProgressPercent <= 0 {
		if !s.cfg.DryRun {
			s.putProgress(ctx, log, keys, 0)
		}
		o := skipped(book.Title, "zero progress")
		o.Identifier = ids[0].String()
		o.DryRun = s.cfg.DryRun
		return o
	}

	out := s.reconcileBook(ctx, r, book, ids, keys, log)
	out.Title = book.Title
	out.Identifier = ids[0].String()
	out.DryRun = s.cfg.DryRun
	if out.Status == StatusFailed {
		log.Error("Book sync failed", map[string]interface{}{"reason": out.Reason})
	} else {
		log.Debug("Book reconciled", map[string]interface{}{
			"status": out.Status,
			"reason": out.Reason,
		})
	}
	return out
}

func (s *Service) reconcileBook(ctx context.Context, r *run, book models.SourceBook, ids []identifier.ID, keys []cache.Key, log *logger.Logger) Outcome {
	pct := book.ProgressPercent

	tgt, ok, err := s.resolve(ctx, r, book, ids)
	if err != nil {
		return failed(book.Title, err)
	}
	if !ok {
		return skipped(book.Title, "not found in Hardcover")
	}

	// memoized so the selector and the state machine share one lookup
	current := onceRead(func() (models.ReadProgress, bool, error) {
		return s.target.GetCurrentProgress(ctx, tgt.book.ID)
	})

	req := edition.Request{
		Title:    book.Title,
		Editions: tgt.book.Editions,
		CachedID: s.cachedVariant(ctx, log, keys),
		LinkedID: tgt.book.EditionID,
		Matched:  tgt.matched,
	}
	if !tgt.added {
		req.LatestRead = func(context.Context) (int, bool, error) {
			p, found, err := current()
			if err != nil || !found || p.ReadID == 0 || p.EditionID == 0 {
				return 0, false, err
			}
			return p.EditionID, true, nil
		}
	}
	choice, err := s.selector.Select(ctx, req)
	if errors.Is(err, edition.ErrNoEdition) {
		return skipped(book.Title, "no edition available")
	} else if err != nil {
		return failed(book.Title, err)
	}
	ed := choice.Edition
	log = log.With(map[string]interface{}{"edition_id": ed.ID, "edition_source": choice.Source})

	if !s.cfg.DryRun {
		author := edition.Author(tgt.book.Authors, book.Author)
		for _, key := range keys {
			if err := s.store.PutVariant(ctx, key, ed.ID, author); err != nil {
				log.Warn("Failed to cache edition", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	base := Outcome{EditionID: ed.ID, EditionSource: string(choice.Source)}

	if !tgt.added && !s.store.HasChanged(ctx, keys[0], pct) {
		if !s.cfg.DryRun {
			if err := s.store.Touch(ctx, keys...); err != nil {
				log.Warn("Failed to refresh cache timestamp", map[string]interface{}{"error": err.Error()})
			}
		}
		base.Status = StatusSkipped
		base.Reason = "progress unchanged"
		return base
	}

	value, isDuration, err := ProgressValue(ed, book)
	if err != nil {
		base.Status = StatusSkipped
		base.Reason = err.Error()
		return base
	}
	base.Method = method(isDuration)
	base.Value = value

	remote := status.Status(tgt.book.StatusID)
	if !tgt.added {
		// the latest read carries a fresher status than the library snapshot
		if p, found, err := current(); err == nil && found && p.StatusID != 0 {
			remote = status.Status(p.StatusID)
		}
	}
	next, change := s.cfg.Thresholds.Transition(pct, remote)

	base.Status = StatusSynced
	if tgt.added {
		base.Status = StatusAutoAdded
	} else if change && next == status.Read {
		base.Status = StatusCompleted
	}

	if s.cfg.DryRun {
		base.Reason = describe(true, tgt, remote, next, change, value, isDuration)
		return base
	}

	var statusErr error
	if change {
		if err := s.target.SetStatus(ctx, tgt.book.ID, next); err != nil {
			statusErr = fmt.Errorf("failed to set status %s: %w", next, err)
			log.Warn("Status update failed, still writing progress", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := s.target.WriteProgress(ctx, tgt.book.ID, ed.ID, value, isDuration); err != nil {
		if statusErr != nil {
			err = errors.Join(statusErr, err)
		}
		base.Status = StatusFailed
		base.Reason = fmt.Sprintf("failed to write progress: %v", err)
		return base
	}
	if statusErr != nil {
		// progress is written, but the cache is left stale so the status is retried next run
		base.Status = StatusFailed
		base.Reason = statusErr.Error()
		return base
	}

	s.putProgress(ctx, log, keys, pct)
	base.Reason = describe(false, tgt, remote, next, change, value, isDuration)
	return base
}

// resolve finds the library book for ids: first in the index, then through
// the global catalog, adding it to the library when it is not there yet.
func (s *Service) resolve(ctx context.Context, r *run, book models.SourceBook, ids []identifier.ID) (target, bool, error) {
	for _, id := range ids {
		if e, ok := r.index.Lookup(id); ok {
			return target{book: e.Book, matched: e.Edition}, true, nil
		}
	}

	for _, id := range ids {
		found, err := s.target.FindByIdentifier(ctx, id.Kind, id.Value)
		if err != nil {
			return target{}, false, fmt.Errorf("catalog search failed: %w", err)
		}
		if len(found) == 0 {
			continue
		}
		cat := found[0]

		if ub, ok := r.library[cat.ID]; ok {
			return target{book: ub, matched: cat.Matched}, true, nil
		}

		initial := s.cfg.Thresholds.Initial(book.ProgressPercent)
		ub := models.UserBook{
			BookID:    cat.ID,
			Title:     cat.Title,
			StatusID:  int(initial),
			EditionID: cat.Matched.ID,
			Authors:   cat.Authors,
			Editions:  cat.Editions,
		}
		if !s.cfg.DryRun {
			ub.ID, err = r.addOnce(cat.ID, func() (int, error) {
				return s.target.AddToLibrary(ctx, cat.ID, initial, cat.Matched.ID)
			})
			if err != nil {
				return target{}, false, fmt.Errorf("failed to add book to library: %w", err)
			}
		}
		s.log.Info("Added book to library", map[string]interface{}{
			"title":        book.Title,
			"book_id":      cat.ID,
			"user_book_id": ub.ID,
			"status":       initial.String(),
			"dry_run":      s.cfg.DryRun,
		})
		return target{book: ub, matched: cat.Matched, added: true}, true, nil
	}
	return target{}, false, nil
}

// addOnce runs add at most once per catalog book within a run, so two source
// items resolving to the same book do not create two library entries.
func (r *run) addOnce(bookID int, add func() (int, error)) (int, error) {
	r.mu.Lock()
	fn, ok := r.added[bookID]
	if !ok {
		fn = sync.OnceValues(add)
		r.added[bookID] = fn
	}
	r.mu.Unlock()
	return fn()
}

func (s *Service) cachedVariant(ctx context.Context, log *logger.Logger, keys []cache.Key) int {
	for _, key := range keys {
		id, ok, err := s.store.GetVariant(ctx, key)
		if err != nil {
			log.Warn("Failed to read cached edition", map[string]interface{}{"error": err.Error()})
			continue
		}
		if ok {
			return id
		}
	}
	return 0
}

func (s *Service) putProgress(ctx context.Context, log *logger.Logger, keys []cache.Key, pct float64) {
	for _, key := range keys {
		if err := s.store.PutProgress(ctx, key, pct); err != nil {
			log.Warn("Failed to cache progress", map[string]interface{}{
				"kind":  key.Kind,
				"error": err.Error(),
			})
		}
	}
}

func describe(dryRun bool, tgt target, from, to status.Status, change bool, value int, isDuration bool) string {
	var steps []string
	if tgt.added {
		steps = append(steps, "add to library as "+from.String())
	}
	if change {
		steps = append(steps, fmt.Sprintf("set status %s -> %s", from, to))
	}
	steps = append(steps, fmt.Sprintf("write %d %s", value, method(isDuration)))
	msg := strings.Join(steps, ", ")
	if dryRun {
		return "would " + msg
	}
	return msg
}
