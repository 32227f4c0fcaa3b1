// Package extract pulls appointment slots out of free chat text.
//
// Every function is pure and returns "" when nothing matches. The patterns
// cover Mongolian Cyrillic, its Latin transliteration and English.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Tuvshee555/Auto-reception/internal/booking"
)

const letters = `[\p{Latin}\p{Cyrillic}]`

// caseSuffix is the set of Mongolian case endings that may follow a day word
// ("маргаашийн", "Баасанд", "гарагт").
const caseSuffix = `(?:ийн|ын|ний|ны|гийн|н|д|т|ад|ид|од|өд|аас|ээс|оос|өөс|гаас|гээс)?`

var (
	phoneRE   = regexp.MustCompile(`\+?\d(?:[ \t-]?\d){6,15}`)
	isoDateRE = regexp.MustCompile(`\b(?:19|20)\d{2}-(?:0?[1-9]|1[0-2])-(?:0?[1-9]|[12]\d|3[01])\b`)

	clockRE = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	hourRE  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(([01]?\d|2[0-3])\s*(?:цаг\p{Cyrillic}*|tsag\p{Latin}*|o'?clock))`)

	dayWordRE = wordRE(`өнөөдөр|маргааш|нөгөөдөр|даваа|мягмар|лхагва|пүрэв|баасан|бямба|ням|` +
		`today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
		`unuudur|margaash|nuguudur`)
	numericDateRE = regexp.MustCompile(`\b\d{4}[/.]\d{1,2}[/.]\d{1,2}\b|\b\d{1,2}[/.]\d{1,2}(?:[/.]\d{2,4})?\b`)
	// dateFillerRE matches words that only qualify a date ("Баасан гарагт").
	dateFillerRE = wordRE(`гараг|гариг|өдөр|орой|өглөө`)

	labeledNameRE = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:my name is|name is|name|ner|нэр(?:ээ|ийг)?(?:\s+нь)?)(?:\s*[:\-]\s*|\s+)(` + letters + `+)`)
	nameWordRE    = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:нэр\p{Cyrillic}*(?:\s+нь)?|my\s+name(?:\s+is)?|name(?:\s+is)?|ner)(?:[^\p{L}\p{N}]|$)`)

	intentRE = regexp.MustCompile(`(?i)(?:захиал\p{Cyrillic}*|цаг\s+(?:ав|захиал)\p{Cyrillic}*|бүртгүүл\p{Cyrillic}*|` +
		`\bza(?:kh|h)ial\p{Latin}*|\btsag\s+(?:avah?\b|za(?:kh|h)ial\p{Latin}*)|\bbook(?:ing|ed)?\b|\bappointments?\b|\breserv(?:e|ation)\b)`)

	// gluedSuffixRE is a short case ending stuck to a removed match
	// ("14:00-д", "99112233-аас").
	gluedSuffixRE = regexp.MustCompile(`^-?\p{Cyrillic}{1,4}(?:[^\p{L}\p{N}]|$)`)

	tokenRE = regexp.MustCompile(letters + `+`)
)

// wordRE matches one of alts as a whole word in any script, optionally
// followed by a case ending. Group 1 is the full word, group 2 the bare
// keyword. RE2's \b only knows ASCII, hence the explicit boundaries.
func wordRE(alts string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])((` + alts + `)` + caseSuffix + `)(?:[^\p{L}\p{N}]|$)`)
}

// Phone returns the first phone-like run of 7-16 digits with its spaces and
// hyphens removed. A leading + is kept. ISO dates are never phones.
func Phone(text string) string {
	loc := findPhone(text)
	if loc == nil {
		return ""
	}
	return strings.NewReplacer(" ", "", "\t", "", "-", "").Replace(text[loc[0]:loc[1]])
}

func findPhone(text string) []int {
	masked := isoDateRE.ReplaceAllStringFunc(text, func(d string) string {
		return strings.Repeat(" ", len(d))
	})
	return phoneRE.FindStringIndex(masked)
}

// Time returns the first HH:MM, else "<hour> o'clock" as HH:00.
func Time(text string) string {
	t, _ := findTime(text)
	return t
}

// findTime also returns the byte span of the match.
func findTime(text string) (string, []int) {
	if m := clockRE.FindStringSubmatchIndex(text); m != nil {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		return fmt.Sprintf("%02d:%s", h, text[m[4]:m[5]]), m[0:2]
	}
	if m := hourRE.FindStringSubmatchIndex(text); m != nil {
		h, _ := strconv.Atoi(text[m[4]:m[5]])
		return fmt.Sprintf("%02d:00", h), m[2:4]
	}
	return "", nil
}

// Date returns the first relative-day or weekday word as written (without
// its case ending), else the first D/M, D/M/Y or YYYY-MM-DD token. No
// calendar resolution is done.
func Date(text string) string {
	d, _ := findDate(text)
	return d
}

func findDate(text string) (string, []int) {
	if m := dayWordRE.FindStringSubmatchIndex(text); m != nil {
		return text[m[4]:m[5]], m[2:4]
	}
	if loc := isoDateRE.FindStringIndex(text); loc != nil {
		return text[loc[0]:loc[1]], loc
	}
	if loc := numericDateRE.FindStringIndex(text); loc != nil {
		return text[loc[0]:loc[1]], loc
	}
	return "", nil
}

// Name tries, in order: a labeled name ("нэр: Бат", "my name is Bat"); the
// only word left once phone, date, time and keywords are removed; the first
// of several remaining words when a name keyword was used. Single letters
// are never names.
func Name(text string) string {
	if m := labeledNameRE.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	rest := text
	if loc := findPhone(rest); loc != nil {
		rest = cut(rest, loc)
	}
	if _, loc := findDate(rest); loc != nil {
		rest = cut(rest, loc)
	}
	if _, loc := findTime(rest); loc != nil {
		rest = cut(rest, loc)
	}
	rest = dateFillerRE.ReplaceAllString(rest, " ")
	rest = intentRE.ReplaceAllString(rest, " ")

	hasKeyword := nameWordRE.MatchString(rest)
	rest = nameWordRE.ReplaceAllString(rest, " ")

	var tokens []string
	for _, tok := range tokenRE.FindAllString(rest, -1) {
		if utf8.RuneCountInString(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	switch {
	case len(tokens) == 1:
		return tokens[0]
	case hasKeyword && len(tokens) >= 2:
		return tokens[0]
	}
	return ""
}

// cut blanks text[loc[0]:loc[1]] together with a case ending glued to it.
func cut(text string, loc []int) string {
	end := loc[1]
	if m := gluedSuffixRE.FindStringIndex(text[end:]); m != nil {
		end += m[1]
	}
	return text[:loc[0]] + " " + text[end:]
}

// HasBookingIntent reports whether text asks for an appointment.
func HasBookingIntent(text string) bool {
	return intentRE.MatchString(text)
}

// Fields runs every extractor over text.
func Fields(text string) booking.Slots {
	return booking.Slots{
		Name:  Name(text),
		Phone: Phone(text),
		Date:  Date(text),
		Time:  Time(text),
	}
}
