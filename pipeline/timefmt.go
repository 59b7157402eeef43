package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Single-letter standard formats, expanded with invariant-culture patterns.
var standardFormats = map[string]string{
	"d": "MM/dd/yyyy",
	"D": "dddd, dd MMMM yyyy",
	"f": "dddd, dd MMMM yyyy HH:mm",
	"F": "dddd, dd MMMM yyyy HH:mm:ss",
	"g": "MM/dd/yyyy HH:mm",
	"G": "MM/dd/yyyy HH:mm:ss",
	"m": "MMMM dd",
	"M": "MMMM dd",
	"o": "yyyy'-'MM'-'dd'T'HH':'mm':'ss'.'fffffffK",
	"O": "yyyy'-'MM'-'dd'T'HH':'mm':'ss'.'fffffffK",
	"r": "ddd, dd MMM yyyy HH':'mm':'ss 'GMT'",
	"R": "ddd, dd MMM yyyy HH':'mm':'ss 'GMT'",
	"s": "yyyy'-'MM'-'dd'T'HH':'mm':'ss",
	"t": "HH:mm",
	"T": "HH:mm:ss",
	"u": "yyyy'-'MM'-'dd HH':'mm':'ss'Z'",
	"U": "dddd, dd MMMM yyyy HH:mm:ss",
	"y": "yyyy MMMM",
	"Y": "yyyy MMMM",
}

const maxFractionDigits = 7

// FormatTimestamp formats t with a custom date/time pattern of the kind
// used in path templates (yyyy, MM, dd, HH, mm, ss, ffff ...). Output is
// locale-invariant. Characters that are not pattern letters are copied
// verbatim; 'quoted' text and \-escaped characters are literal.
func FormatTimestamp(t time.Time, format string) string {
	if format == "" {
		format = "G"
	}

	if len(format) == 1 {
		if std, ok := standardFormats[format]; ok {
			switch format {
			case "r", "R", "u", "U":
				t = t.UTC()
			}
			format = std
		}
	}

	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); {
		c := runes[i]

		switch c {
		case '\'', '"':
			end := i + 1
			for end < len(runes) && runes[end] != c {
				end++
			}
			b.WriteString(string(runes[i+1 : end]))
			i = end + 1
			continue
		case '\\':
			if i+1 < len(runes) {
				b.WriteRune(runes[i+1])
			}
			i += 2
			continue
		case '%':
			// "%d" forces a single letter to be read as a custom pattern
			i++
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}

		if !writeField(&b, t, c, n) {
			b.WriteString(string(runes[i : i+n]))
		}
		i += n
	}

	return b.String()
}

// writeField renders a run of n identical pattern letters. It reports
// false when c is not a pattern letter.
func writeField(b *strings.Builder, t time.Time, c rune, n int) bool {
	switch c {
	case 'y':
		year := t.Year()
		switch n {
		case 1:
			b.WriteString(strconv.Itoa(year % 100))
		case 2:
			fmt.Fprintf(b, "%02d", year%100)
		default:
			fmt.Fprintf(b, "%0*d", n, year)
		}
	case 'M':
		switch n {
		case 1, 2:
			pad(b, int(t.Month()), n)
		case 3:
			b.WriteString(t.Month().String()[:3])
		default:
			b.WriteString(t.Month().String())
		}
	case 'd':
		switch n {
		case 1, 2:
			pad(b, t.Day(), n)
		case 3:
			b.WriteString(t.Weekday().String()[:3])
		default:
			b.WriteString(t.Weekday().String())
		}
	case 'H':
		pad(b, t.Hour(), min(n, 2))
	case 'h':
		hour := t.Hour() % 12
		if hour == 0 {
			hour = 12
		}
		pad(b, hour, min(n, 2))
	case 'm':
		pad(b, t.Minute(), min(n, 2))
	case 's':
		pad(b, t.Second(), min(n, 2))
	case 'f', 'F':
		// Longer runs are not a valid fraction field and stay literal
		if n > maxFractionDigits {
			return false
		}
		frac := fmt.Sprintf("%09d", t.Nanosecond())[:n]
		if c == 'F' {
			frac = strings.TrimRight(frac, "0")
		}
		b.WriteString(frac)
	case 't':
		designator := "AM"
		if t.Hour() >= 12 {
			designator = "PM"
		}
		if n == 1 {
			designator = designator[:1]
		}
		b.WriteString(designator)
	case 'z':
		_, offset := t.Zone()
		sign := '+'
		if offset < 0 {
			sign = '-'
			offset = -offset
		}
		hours, minutes := offset/3600, (offset%3600)/60
		switch n {
		case 1:
			fmt.Fprintf(b, "%c%d", sign, hours)
		case 2:
			fmt.Fprintf(b, "%c%02d", sign, hours)
		default:
			fmt.Fprintf(b, "%c%02d:%02d", sign, hours, minutes)
		}
	case 'K':
		for range n {
			if t.Location() == time.UTC {
				b.WriteString("Z")
				continue
			}
			writeField(b, t, 'z', 3)
		}
	case 'g':
		b.WriteString("A.D.")
	default:
		return false
	}
	return true
}

func pad(b *strings.Builder, v, width int) {
	if width <= 1 {
		b.WriteString(strconv.Itoa(v))
		return
	}
	fmt.Fprintf(b, "%0*d", width, v)
}
