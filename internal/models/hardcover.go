package models

import "strings"

// Edition is one published form of a Hardcover book.
type Edition struct {
	ID             int
	ISBN10         string
	ISBN13         string
	ASIN           string
	Pages          int
	AudioSeconds   int
	PhysicalFormat string
	ReadingFormat  string
}

// IsAudio reports whether progress for this edition is tracked in seconds.
func (e Edition) IsAudio() bool {
	if e.AudioSeconds > 0 {
		return true
	}
	physical := strings.ToLower(e.PhysicalFormat)
	for _, marker := range []string{"audio", "cd", "mp3", "aac"} {
		if strings.Contains(physical, marker) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(e.ReadingFormat), "audio")
}

// UserBook is a book in the user's Hardcover library.
type UserBook struct {
	ID       int
	BookID   int
	Title    string
	StatusID int
	// EditionID is the edition the library entry is linked to, 0 when unset
	EditionID int
	Authors   []string
	Editions  []Edition
}

// CatalogBook is a Hardcover book found through a global search.
type CatalogBook struct {
	ID       int
	Title    string
	Authors  []string
	Editions []Edition
	// Matched is the edition that carried the searched identifier
	Matched Edition
}

// ReadProgress is the latest user_book_read of a library entry.
type ReadProgress struct {
	ReadID          int
	EditionID       int
	ProgressPages   int
	ProgressSeconds int
	StatusID        int
}
