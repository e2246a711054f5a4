// Package edition chooses the Hardcover edition progress is written against.
package edition

import (
	"context"
	"errors"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

// Source records which rule picked an edition.
type Source string

const (
	SourceCache    Source = "cache"
	SourceProgress Source = "progress"
	SourceLinked   Source = "linked"
	SourceMatched  Source = "matched"
)

// ErrNoEdition is returned when no candidate resolves to a known edition.
var ErrNoEdition = errors.New("no edition available")

// Request carries the candidates for one book. Zero ids mean "no candidate".
type Request struct {
	Title    string
	Editions []models.Edition
	CachedID int
	// LatestRead returns the edition of the newest existing read, if any.
	// It is only called when the cached candidate does not resolve.
	LatestRead func(ctx context.Context) (int, bool, error)
	LinkedID   int
	Matched    models.Edition
}

// Choice is the selected edition.
type Choice struct {
	Edition models.Edition
	Source  Source
}

// Selector applies the fixed priority cache > progress > linked > matched.
type Selector struct {
	log *logger.Logger
}

// NewSelector returns a Selector logging through log.
func NewSelector(log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Get()
	}
	return &Selector{log: log.With(map[string]interface{}{"component": "edition_selector"})}
}

func find(editions []models.Edition, id int) (models.Edition, bool) {
	if id == 0 {
		return models.Edition{}, false
	}
	for _, e := range editions {
		if e.ID == id {
			return e, true
		}
	}
	return models.Edition{}, false
}

// Select returns the first candidate that exists among req.Editions. The
// matched edition is accepted as-is since it came from an identifier lookup.
func (s *Selector) Select(ctx context.Context, req Request) (Choice, error) {
	fields := map[string]interface{}{"title": req.Title}

	if e, ok := find(req.Editions, req.CachedID); ok {
		return Choice{Edition: e, Source: SourceCache}, nil
	} else if req.CachedID != 0 {
		s.log.Debug("Cached edition no longer available", merge(fields, "edition_id", req.CachedID))
	}

	if req.LatestRead != nil {
		id, ok, err := req.LatestRead(ctx)
		switch {
		case err != nil:
			s.log.Warn("Failed to look up existing progress edition", merge(fields, "error", err.Error()))
		case ok:
			if e, found := find(req.Editions, id); found {
				return Choice{Edition: e, Source: SourceProgress}, nil
			}
			s.log.Debug("Existing progress edition not found", merge(fields, "edition_id", id))
		}
	}

	if e, ok := find(req.Editions, req.LinkedID); ok {
		return Choice{Edition: e, Source: SourceLinked}, nil
	}

	if req.Matched.ID != 0 {
		return Choice{Edition: req.Matched, Source: SourceMatched}, nil
	}
	return Choice{}, ErrNoEdition
}

func merge(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

// Author returns the first Hardcover author, falling back to the source author.
func Author(hardcoverAuthors []string, fallback string) string {
	for _, a := range hardcoverAuthors {
		if a != "" {
			return a
		}
	}
	return fallback
}
