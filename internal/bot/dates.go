package bot

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"birthdaybot/internal/domain"
)

// ParseDayMonth reads "dd.mm". Slashes and dashes work as separators and
// leading zeros are optional: "5/11", "05-11" and "05.11" are the same day.
func ParseDayMonth(s string) (domain.DayMonth, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "./-")
	if sep <= 0 || sep == len(s)-1 {
		return domain.DayMonth{}, domain.ErrInvalidDate
	}
	day, err1 := strconv.Atoi(s[:sep])
	month, err2 := strconv.Atoi(s[sep+1:])
	if err1 != nil || err2 != nil {
		return domain.DayMonth{}, domain.ErrInvalidDate
	}
	d := domain.DayMonth{Day: day, Month: month}
	if !d.Valid() {
		return domain.DayMonth{}, domain.ErrInvalidDate
	}
	return d, nil
}

// cleanLabel trims whitespace and wrapping quotes and caps the length.
func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxLabelRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxLabelRunes]))
	}
	return s
}
