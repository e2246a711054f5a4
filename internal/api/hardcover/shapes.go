package hardcover

import (
	"bytes"
	"encoding/json"

	"github.com/drallgood/abs-hardcover-progress/internal/models"
)

type editionNode struct {
	ID             int     `json:"id"`
	ISBN10         *string `json:"isbn_10"`
	ISBN13         *string `json:"isbn_13"`
	ASIN           *string `json:"asin"`
	Pages          *int    `json:"pages"`
	AudioSeconds   *int    `json:"audio_seconds"`
	PhysicalFormat *string `json:"physical_format"`
	ReadingFormat  *struct {
		Format string `json:"format"`
	} `json:"reading_format"`
}

func (e editionNode) toModel() models.Edition {
	out := models.Edition{
		ID:             e.ID,
		ISBN10:         str(e.ISBN10),
		ISBN13:         str(e.ISBN13),
		ASIN:           str(e.ASIN),
		Pages:          num(e.Pages),
		AudioSeconds:   num(e.AudioSeconds),
		PhysicalFormat: str(e.PhysicalFormat),
	}
	if e.ReadingFormat != nil {
		out.ReadingFormat = e.ReadingFormat.Format
	}
	return out
}

type bookNode struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Contributions []struct {
		Author *struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"contributions"`
	Editions []editionNode `json:"editions"`
}

func (b bookNode) authors() []string {
	var out []string
	for _, c := range b.Contributions {
		if c.Author != nil && c.Author.Name != "" {
			out = append(out, c.Author.Name)
		}
	}
	return out
}

func (b bookNode) editions() []models.Edition {
	out := make([]models.Edition, 0, len(b.Editions))
	for _, e := range b.Editions {
		out = append(out, e.toModel())
	}
	return out
}

type userBookNode struct {
	ID        int       `json:"id"`
	StatusID  int       `json:"status_id"`
	EditionID *int      `json:"edition_id"`
	Book      *bookNode `json:"book"`
}

func (u userBookNode) toModel() models.UserBook {
	out := models.UserBook{
		ID:        u.ID,
		StatusID:  u.StatusID,
		EditionID: num(u.EditionID),
	}
	if u.Book != nil {
		out.BookID = u.Book.ID
		out.Title = u.Book.Title
		out.Authors = u.Book.authors()
		out.Editions = u.Book.editions()
	}
	return out
}

// meUser is the payload of the `me` field
type meUser struct {
	ID        *int            `json:"id"`
	Username  string          `json:"username"`
	UserBooks *[]userBookNode `json:"user_books"`
}

type meKind int

const (
	meKindObject meKind = iota + 1
	meKindList
)

// meResult is the decoded `me` field. Hardcover has served it both as an
// object and as a single-element list; anything else is rejected.
type meResult struct {
	Kind meKind
	User meUser
}

func decodeMe(raw json.RawMessage) (meResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return meResult{}, &ShapeError{Field: "me", Raw: "<missing>"}
	}

	switch trimmed[0] {
	case '{':
		var u meUser
		if err := json.Unmarshal(trimmed, &u); err != nil {
			return meResult{}, &ShapeError{Field: "me", Raw: string(trimmed)}
		}
		return meResult{Kind: meKindObject, User: u}, nil
	case '[':
		var us []meUser
		if err := json.Unmarshal(trimmed, &us); err != nil || len(us) == 0 {
			return meResult{}, &ShapeError{Field: "me", Raw: string(trimmed)}
		}
		return meResult{Kind: meKindList, User: us[0]}, nil
	default:
		return meResult{}, &ShapeError{Field: "me", Raw: string(trimmed)}
	}
}

type meResponse struct {
	Me json.RawMessage `json:"me"`
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
