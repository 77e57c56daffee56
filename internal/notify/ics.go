package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/example/campus-booking/internal/application"
)

const (
	icsTimeLayout = "20060102T150405Z"
	// maxLineOctets excludes the trailing CRLF.
	maxLineOctets = 75
)

// ICS renders an approved booking as an iCalendar document with a single
// VEVENT, suitable as a calendar attachment.
func ICS(booking application.Booking, room application.Room, stamp time.Time) string {
	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(foldLine(fmt.Sprintf(format, args...)))
		sb.WriteString("\r\n")
	}

	summary := "Room booking"
	if room.Name != "" {
		summary = "Room booking: " + room.Name
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//campus-booking//EN")
	line("METHOD:PUBLISH")
	line("BEGIN:VEVENT")
	line("UID:%s@campus-booking", booking.ID)
	line("DTSTAMP:%s", stamp.UTC().Format(icsTimeLayout))
	line("DTSTART:%s", booking.Start.UTC().Format(icsTimeLayout))
	line("DTEND:%s", booking.End.UTC().Format(icsTimeLayout))
	line("SUMMARY:%s", escapeText(summary))
	if room.Location != "" {
		line("LOCATION:%s", escapeText(room.Location))
	}
	if booking.Reason != "" {
		line("DESCRIPTION:%s", escapeText(booking.Reason))
	}
	if email := sanitizeAddress(booking.RequesterEmail); email != "" {
		line("ATTENDEE;CN=%s:mailto:%s", escapeParam(booking.RequesterName), email)
	}
	line("STATUS:CONFIRMED")
	line("END:VEVENT")
	line("END:VCALENDAR")
	return sb.String()
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", "",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeParam(s string) string {
	s = strings.NewReplacer(`"`, "", "\r", "", "\n", " ").Replace(s)
	if strings.ContainsAny(s, ";:,") {
		return `"` + s + `"`
	}
	return s
}

// sanitizeAddress drops control characters and whitespace so an address can
// never start a new content line.
func sanitizeAddress(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// foldLine splits a content line into chunks of at most 75 octets joined by
// CRLF and a single space. Multi-byte characters are never split.
func foldLine(s string) string {
	if len(s) <= maxLineOctets {
		return s
	}
	var sb strings.Builder
	limit := maxLineOctets
	width := 0
	for _, r := range s {
		size := utf8.RuneLen(r)
		if width+size > limit {
			sb.WriteString("\r\n ")
			// The leading space counts toward the continuation line.
			limit = maxLineOctets - 1
			width = 0
		}
		sb.WriteRune(r)
		width += size
	}
	return sb.String()
}
