package extractor

import (
	"strconv"
	"strings"
	"unicode"
)

// freeLabel is the upstream marker for a zero-price course.
const freeLabel = "무료"

// containsPrice reports whether a text fragment carries a price.
func containsPrice(text string) bool {
	return strings.Contains(text, "₩") || strings.Contains(text, freeLabel)
}

// looksNumeric reports whether a text fragment is predominantly digits,
// such as counts or ratings.
func looksNumeric(text string) bool {
	digits := 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits > 0 && digits*2 >= len([]rune(text))
}

// ParseKRW parses a KRW price text like "₩99,000" or "무료" into an integer
// amount. Returns false when no usable amount is present.
func ParseKRW(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	if strings.Contains(text, freeLabel) {
		return 0, true
	}

	cleaned := strings.NewReplacer("₩", "", ",", "", " ", "").Replace(text)
	start := strings.IndexFunc(cleaned, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}

	v, err := strconv.ParseInt(cleaned[start:end], 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseCount extracts a non-negative integer from text with thousands
// separators and surrounding labels, e.g. "(1,234)" or "수강생 12,345명".
func ParseCount(text string) (int64, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	start := strings.IndexFunc(cleaned, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}

	v, err := strconv.ParseInt(cleaned[start:end], 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseFloat parses a decimal rating text like "4.8". Returns false for
// anything that is not a plain decimal number.
func ParseFloat(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
