package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	hintAnchor   = regexp.MustCompile(`(?i)(try again in|retry after|retry in|retrydelay|wait for|please wait)`)
	hintFallback = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ms|milliseconds?|seconds?|secs?|s)\b`)
)

// ParseWaitHint extracts a wait duration from provider error text such as
// "Please try again in 250ms", "retry after 2 seconds", "try again in
// 2m59.56s" or `"retryDelay": "23s"`. A bare number after an anchor phrase is
// read as seconds.
func ParseWaitHint(text string) (time.Duration, bool) {
	if loc := hintAnchor.FindStringIndex(text); loc != nil {
		if d, ok := parseCompound(text[loc[1]:]); ok {
			return d, true
		}
	}
	m := hintFallback.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return scale(m[1], m[2])
}

// parseCompound reads one or more number+unit pairs ("2m59.56s") after
// skipping separators.
func parseCompound(s string) (time.Duration, bool) {
	s = strings.TrimLeft(s, " \t:=\"'")
	var (
		total time.Duration
		found bool
	)
	for {
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 {
			break
		}
		num := s[:i]
		s = strings.TrimLeft(s[i:], " ")
		j := 0
		for j < len(s) && unicode.IsLetter(rune(s[j])) {
			j++
		}
		d, ok := scale(num, s[:j])
		if !ok {
			break
		}
		total += d
		found = true
		s = s[j:]
		if len(s) == 0 || s[0] < '0' || s[0] > '9' {
			break
		}
	}
	return total, found
}

func scale(num, unit string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	var base time.Duration
	switch strings.ToLower(unit) {
	case "ms", "msec", "msecs", "millisecond", "milliseconds":
		base = time.Millisecond
	case "", "s", "sec", "secs", "second", "seconds":
		base = time.Second
	case "m", "min", "mins", "minute", "minutes":
		base = time.Minute
	case "h", "hour", "hours":
		base = time.Hour
	default:
		return 0, false
	}
	return time.Duration(v * float64(base)), true
}
