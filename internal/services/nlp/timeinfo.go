package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const weekdayNames = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`

var (
	dottedMeridiemRe = regexp.MustCompile(`(?i)\b([ap])\.m\.`)

	// "from 2 to 4pm", "from 9:30am until 11"
	timeRangeRe = regexp.MustCompile(`(?i)\bfrom\s+(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm))?\s*(?:to|until|till|-)\s*(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm))?\b`)

	// "at 5", "by 10:30", "until 6pm"
	clockTimeRe = regexp.MustCompile(`(?i)\b(?:at|by|from|until)\s+(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm))?\b`)

	// "3pm", "10:15 am" without a preposition
	meridiemTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

	namedTimeRe = regexp.MustCompile(`(?i)\b(noon|midday|midnight)\b`)

	relativeDateRe = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|next\s+(?:` + weekdayNames + `)|(?:this|next)\s+(?:week|month))\b`)

	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	monthDayRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)

	weekdayRe = regexp.MustCompile(`(?i)\b(` + weekdayNames + `)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// ExtractTimeInfo finds clock times, ranges and dates in text. Relative
// weekdays and month-day dates resolve against now.
//
// Hours without an am/pm marker are read as PM when they fall in 0-6 and as
// written otherwise.
func ExtractTimeInfo(text string, now time.Time) TimeInfo {
	text = normalizeMeridiem(text)
	var ti TimeInfo

	if m := timeRangeRe.FindStringSubmatch(text); m != nil {
		endMarker := strings.ToLower(m[6])
		startMarker := strings.ToLower(m[3])
		startHour, _ := strconv.Atoi(m[1])
		endHour, _ := strconv.Atoi(m[4])
		if startMarker == "" && endMarker != "" && startHour <= endHour {
			startMarker = endMarker
		}
		ti.StartTime = formatClock(startHour, atoiOrZero(m[2]), startMarker)
		ti.EndTime = formatClock(endHour, atoiOrZero(m[5]), endMarker)
		ti.Time = ti.StartTime
	}
	if ti.Time == "" {
		ti.Time = firstClock(clockTimeRe, text)
	}
	if ti.Time == "" {
		ti.Time = firstClock(meridiemTimeRe, text)
	}
	if ti.Time == "" {
		if m := namedTimeRe.FindStringSubmatch(text); m != nil {
			if strings.EqualFold(m[1], "midnight") {
				ti.Time = "12:00 AM"
			} else {
				ti.Time = "12:00 PM"
			}
		}
	}

	ti.Date = extractDate(text, now)
	ti.IsSpecific = ti.Time != "" || ti.StartTime != "" || ti.Date != ""
	return ti
}

func extractDate(text string, now time.Time) string {
	if m := relativeDateRe.FindString(text); m != "" {
		return strings.ToLower(collapseSpace(m))
	}
	if m := isoDateRe.FindString(text); m != "" {
		if _, err := time.Parse(dateLayout, m); err == nil {
			return m
		}
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		if d, ok := nextMonthDay(m[1], atoiOrZero(m[2]), now); ok {
			return d
		}
	}
	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		return nextWeekday(weekdays[strings.ToLower(m[1])], now).Format(dateLayout)
	}
	return ""
}

// nextWeekday returns the next day after now falling on wd. A reference to
// today's weekday means a week from today.
func nextWeekday(wd time.Weekday, now time.Time) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

func nextMonthDay(month string, day int, now time.Time) (string, bool) {
	t, err := time.Parse("Jan 2", titleWord(month[:3])+" "+strconv.Itoa(day))
	if err != nil {
		return "", false
	}
	candidate := time.Date(now.Year(), t.Month(), day, 0, 0, 0, 0, now.Location())
	if candidate.Day() != day {
		return "", false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate.Format(dateLayout), true
}

func firstClock(re *regexp.Regexp, text string) string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		if t := formatClock(hour, atoiOrZero(m[2]), strings.ToLower(m[3])); t != "" {
			return t
		}
	}
	return ""
}

// formatClock renders a time as "HH:MM AM/PM", or "" when it is not a valid
// time of day.
func formatClock(hour, minute int, marker string) string {
	if hour > 23 || minute > 59 {
		return ""
	}
	switch {
	case hour > 12:
		// 24-hour input; a marker adds nothing.
	case marker == "am":
		if hour == 12 {
			hour = 0
		}
	case marker == "pm":
		if hour < 12 {
			hour += 12
		}
	case hour <= 6:
		hour += 12
	}

	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h12, minute, suffix)
}

func normalizeMeridiem(text string) string {
	return dottedMeridiemRe.ReplaceAllString(text, "${1}m")
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// timePhrase returns the raw clock-time expression in text, if any.
func timePhrase(text string) string {
	text = normalizeMeridiem(text)
	for _, re := range []*regexp.Regexp{timeRangeRe, clockTimeRe, meridiemTimeRe, namedTimeRe} {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// datePhrase returns the raw date expression in text, if any.
func datePhrase(text string) string {
	for _, re := range []*regexp.Regexp{relativeDateRe, isoDateRe, monthDayRe, weekdayRe} {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
