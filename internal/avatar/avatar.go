// Package avatar renders user pictures: a server picture when there is one,
// a legacy locally stored image otherwise, and colored initials as the
// last resort. Prepare turns an uploaded file into the data URL sent with
// UpdateProfile.
package avatar

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Palette is the fixed set of background colors for initials.
var Palette = [8]string{
	"#1DA1F2", // default
	"#17BF63",
	"#F45D22",
	"#794BC4",
	"#E0245E",
	"#FFAD1F",
	"#14171A",
	"#00A2B8",
}

// Color picks a palette entry from the username. Equal names always get the
// same color; the empty name gets the first one.
func Color(username string) string {
	if username == "" {
		return Palette[0]
	}
	var hash int32
	for _, unit := range utf16.Encode([]rune(username)) {
		hash = int32(unit) + ((hash << 5) - hash)
	}
	idx := int64(hash)
	if idx < 0 {
		idx = -idx
	}
	return Palette[idx%int64(len(Palette))]
}

// Initials returns up to two uppercase initials, or "?" for an empty name.
func Initials(username string) string {
	parts := strings.FieldsFunc(username, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '.' || r == '-'
	})
	if len(parts) == 0 {
		return "?"
	}

	var out []rune
	for _, p := range parts {
		out = append(out, []rune(p)[0])
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 1 {
		if r := []rune(parts[0]); len(r) > 1 {
			out = append(out, r[1])
		}
	}
	return strings.ToUpper(string(out))
}

// LegacySource looks up pictures saved locally by older clients.
type LegacySource interface {
	LegacyAvatar(ctx context.Context, username string) string
}

// Resolve returns the picture to show: the server's, else the legacy local
// one, else "".
func Resolve(ctx context.Context, serverPicture, username string, legacy LegacySource) string {
	if serverPicture != "" {
		return serverPicture
	}
	if legacy == nil {
		return ""
	}
	return legacy.LegacyAvatar(ctx, username)
}

// Avatar is everything a template needs to draw one user picture.
type Avatar struct {
	Picture  string
	Initials string
	Color    string
}

func For(ctx context.Context, username, serverPicture string, legacy LegacySource) Avatar {
	return Avatar{
		Picture:  Resolve(ctx, serverPicture, username, legacy),
		Initials: Initials(username),
		Color:    Color(username),
	}
}
