// utils/text.go
package utils

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

// CleanDisplayName trims and NFC-normalizes a user supplied name so that
// visually identical names compare equal.
func CleanDisplayName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// SearchKey folds a name into the form stored in user_profiles.search_name:
// lower case ASCII with accents transliterated ("José Ñúñez" -> "jose nunez").
func SearchKey(name string) string {
	folded := unidecode.Unidecode(CleanDisplayName(name))
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// EscapeLike escapes LIKE wildcards so user input is matched literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// EventSlug builds the public URL slug of an event from its title and day.
func EventSlug(title string, date time.Time) string {
	return slug.Make(title + " " + date.Format("2006-01-02"))
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n < 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
