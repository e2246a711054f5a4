package identifier

import (
	"strconv"
	"strings"
)

// ValidISBN checks the checksum of a normalized ISBN-10 or ISBN-13.
func ValidISBN(s string) bool {
	switch len(s) {
	case 10:
		sum := 0
		for i := 0; i < 10; i++ {
			c := s[i]
			var d int
			switch {
			case c >= '0' && c <= '9':
				d = int(c - '0')
			case c == 'X' && i == 9:
				d = 10
			default:
				return false
			}
			sum += d * (10 - i)
		}
		return sum%11 == 0
	case 13:
		sum := 0
		for i := 0; i < 13; i++ {
			c := s[i]
			if c < '0' || c > '9' {
				return false
			}
			d := int(c - '0')
			if i%2 == 1 {
				d *= 3
			}
			sum += d
		}
		return sum%10 == 0
	default:
		return false
	}
}

// ISBN10To13 converts an ISBN-10 to its 978-prefixed ISBN-13 form.
// Returns an empty string if the input is not a 10 character ISBN.
func ISBN10To13(isbn10 string) string {
	if len(isbn10) != 10 {
		return ""
	}
	base := "978" + isbn10[:9]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return base + strconv.Itoa(check)
}

// ISBN13To10 converts a 978-prefixed ISBN-13 to ISBN-10.
// Returns an empty string if the input has no ISBN-10 form.
func ISBN13To10(isbn13 string) string {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") {
		return ""
	}
	base := isbn13[3:12]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		sum += d * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return base + "X"
	}
	return base + strconv.Itoa(check)
}

// ISBNForms returns the normalized ISBN followed by its other printed form, if
// any. An ISBN with a bad checksum is not converted.
func ISBNForms(isbn string) []string {
	forms := []string{isbn}
	if !ValidISBN(isbn) {
		return forms
	}
	var alt string
	switch len(isbn) {
	case 10:
		alt = ISBN10To13(isbn)
	case 13:
		alt = ISBN13To10(isbn)
	}
	if alt != "" && alt != isbn {
		forms = append(forms, alt)
	}
	return forms
}
