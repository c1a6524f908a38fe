package persona

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName turns a student slug such as "asha-kumar" into "Asha Kumar".
func DisplayName(slug string) string {
	s := strings.Join(strings.Fields(strings.ReplaceAll(slug, "-", " ")), " ")
	return cases.Title(language.English).String(s)
}

// FirstName is the first word of the display name.
func FirstName(slug string) string {
	name := DisplayName(slug)
	if i := strings.IndexByte(name, ' '); i >= 0 {
		return name[:i]
	}
	return name
}
