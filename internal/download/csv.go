package download

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// csvHeader is the first row of a CSV export.
var csvHeader = []string{"#", "Title", "Artist", "Album", "Duration", "URL"}

// csvErrorMarker prefixes the URL column of tracks that failed to resolve.
const csvErrorMarker = "ERROR: "

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// EscapeCSV renders one field. Line breaks collapse to a single space;
// fields with a comma or a double quote are quoted with inner quotes
// doubled.
func EscapeCSV(field string) string {
	field = lineBreaks.ReplaceAllString(field, " ")
	if strings.ContainsAny(field, `,"`) {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

func csvRow(fields ...string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeCSV(f)
	}
	return strings.Join(escaped, ",") + "\n"
}

func csvTrackRow(index int, track *model.Track, urlOrError string) string {
	return csvRow(
		strconv.Itoa(index),
		track.FullTitle(),
		track.ArtistNames(),
		track.AlbumTitle(),
		track.FormattedDuration(),
		urlOrError,
	)
}
