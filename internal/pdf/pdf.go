// Package pdf renders the membership confirmation letter and membership card.
// Documents use the core Helvetica font, so Serbian diacritics are folded to
// ASCII before drawing (č→c, đ→dj, š→s, ž→z).
package pdf

import "strings"

// asciiFolder maps Serbian Latin diacritics onto the WinAnsi-safe ASCII forms
// used throughout the printed documents.
var asciiFolder = strings.NewReplacer(
	"č", "c", "ć", "c", "ž", "z", "š", "s", "đ", "dj",
	"Č", "C", "Ć", "C", "Ž", "Z", "Š", "S", "Đ", "DJ",
)

func toASCII(s string) string {
	return asciiFolder.Replace(s)
}
