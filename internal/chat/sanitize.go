package chat

import (
	"crypto/rand"
	"html"
	"math/big"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxNameLen = 24

var (
	// Nicknames carry no markup at all.
	namePolicy = bluemonday.StrictPolicy()

	// Message text allows a small set of safe inline formatting tags.
	textPolicy = bluemonday.UGCPolicy().
			AllowElements("b", "i", "em", "strong", "u", "s", "del", "code", "pre", "br").
			AllowURLSchemes("http", "https").
			RequireNoFollowOnLinks(true)
)

// SanitizeName strips markup from a display name, clamps it, and substitutes
// a generated placeholder when nothing usable remains.
func SanitizeName(name string) string {
	clean := cleanName(name)
	if clean == "" {
		clean = anonName()
	}
	return clean
}

// cleanName strips markup and clamps without substituting a placeholder.
// The clamp counts runes so multi-byte names are never cut mid-character.
func cleanName(name string) string {
	clean := strings.TrimSpace(namePolicy.Sanitize(html.UnescapeString(name)))
	if r := []rune(clean); len(r) > maxNameLen {
		clean = string(r[:maxNameLen])
	}
	return clean
}

// SanitizeText removes unsafe markup from message text.
func SanitizeText(text string) string {
	return strings.TrimSpace(textPolicy.Sanitize(text))
}

// anonName generates a placeholder display name such as "anon-4821".
func anonName() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "anon"
	}
	return "anon-" + n.Add(n, big.NewInt(1000)).String()
}
