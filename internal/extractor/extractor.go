// Package extractor parses raw listing pages into course candidates.
//
// The upstream markup is not under our control and changes without notice,
// so every field is extracted with fallbacks and a malformed card never
// aborts extraction of its siblings.
package extractor

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coursepulse/ingest/internal/domain"
)

// courseLinkSelector matches one listing card. Cards are anchors pointing at
// a course detail page; this has survived several upstream redesigns while
// class names have not.
const courseLinkSelector = `li a[href*="/course/"]`

// minTitleLength filters out badges and labels when picking the title text.
const minTitleLength = 6

// maxInstructorLength filters out long paragraphs when picking the instructor.
const maxInstructorLength = 20

// Extractor parses course listing HTML into candidates.
type Extractor struct {
	category string
}

// New creates an extractor that stamps candidates with the run's category.
func New(category string) *Extractor {
	return &Extractor{category: category}
}

// Result holds the candidates extracted from one page plus the contained
// per-fragment failures.
type Result struct {
	Candidates []domain.CourseCandidate
	Errors     []*domain.ExtractionError
}

// ExtractPage parses one raw page payload and returns all course candidates
// found on it, in document order. Unparseable cards are skipped individually
// and reported in Result.Errors.
func (e *Extractor) ExtractPage(pageURL string, body []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ExtractionError{PageURL: pageURL, Err: err}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &domain.ExtractionError{PageURL: pageURL, Err: err}
	}

	result := &Result{}
	doc.Find(courseLinkSelector).Each(func(i int, card *goquery.Selection) {
		candidate, cardErr := e.extractCard(base, card)
		if cardErr != nil {
			result.Errors = append(result.Errors, &domain.ExtractionError{
				PageURL:  pageURL,
				Fragment: i,
				Err:      cardErr,
			})
			return
		}
		result.Candidates = append(result.Candidates, *candidate)
	})

	return result, nil
}

// CountListings reports how many listing cards a page payload contains.
// The fetcher uses a zero count as the end-of-pagination signal.
func (e *Extractor) CountListings(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	return doc.Find(courseLinkSelector).Length()
}

// extractCard parses a single listing card into a candidate.
func (e *Extractor) extractCard(base *url.URL, card *goquery.Selection) (*domain.CourseCandidate, error) {
	href, ok := card.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, errors.New("card has no href")
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	courseURL := base.ResolveReference(ref)
	courseURL.Fragment = ""
	courseURL.RawQuery = ""

	texts := cardTexts(card)

	title := extractTitle(card, texts)
	if title == "" {
		return nil, errors.New("card has no recognizable title")
	}

	candidate := &domain.CourseCandidate{
		Title:        title,
		Instructor:   extractInstructor(texts, title),
		URL:          courseURL.String(),
		ThumbnailURL: extractThumbnail(card),
		Category:     e.category,
	}

	original, sale := extractPrices(texts)
	candidate.OriginalPrice = original
	candidate.SalePrice = sale

	candidate.Rating = extractRating(card, texts)
	candidate.ReviewCount = extractReviewCount(texts)
	candidate.StudentCount = extractStudentCount(texts)

	return candidate, nil
}

// cardTexts collects the trimmed text of every paragraph and span in the
// card, in document order.
func cardTexts(card *goquery.Selection) []string {
	var texts []string
	card.Find("p, span").Each(func(_ int, s *goquery.Selection) {
		// Skip elements that only wrap other text elements.
		if s.Children().Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// extractTitle picks the course title: an explicit title element when
// present, otherwise the longest non-price text on the card, otherwise the
// thumbnail alt text.
func extractTitle(card *goquery.Selection, texts []string) string {
	if title := strings.TrimSpace(card.Find(`[class*="title"]`).First().Text()); title != "" {
		return title
	}

	best := ""
	for _, text := range texts {
		if len([]rune(text)) < minTitleLength || containsPrice(text) {
			continue
		}
		if len(text) > len(best) {
			best = text
		}
	}
	if best != "" {
		return best
	}

	if alt, ok := card.Find("img").First().Attr("alt"); ok {
		return strings.TrimSpace(alt)
	}
	return ""
}

// extractInstructor picks the shortest plausible non-price, non-title text.
// Instructor names are short; category labels and titles are not.
func extractInstructor(texts []string, title string) string {
	best := ""
	for _, text := range texts {
		if text == title || containsPrice(text) || looksNumeric(text) {
			continue
		}
		n := len([]rune(text))
		if n < 2 || n > maxInstructorLength {
			continue
		}
		if best == "" || n < len([]rune(best)) {
			best = text
		}
	}
	return best
}

// extractThumbnail returns the card's image source, if any.
func extractThumbnail(card *goquery.Selection) string {
	if src, ok := card.Find("picture img").First().Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	if src, ok := card.Find("img").First().Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

// extractPrices finds price texts on the card. Two or more prices mean the
// higher is the original and the lower the sale price; a single price is the
// original. Absent or unparseable prices stay nil.
func extractPrices(texts []string) (original, sale *int64) {
	var prices []int64
	for _, text := range texts {
		if !containsPrice(text) {
			continue
		}
		if v, ok := ParseKRW(text); ok {
			prices = append(prices, v)
		}
	}

	switch {
	case len(prices) == 0:
		return nil, nil
	case len(prices) == 1:
		return domain.Int64Ptr(prices[0]), nil
	default:
		hi, lo := prices[0], prices[1]
		if lo > hi {
			hi, lo = lo, hi
		}
		return domain.Int64Ptr(hi), domain.Int64Ptr(lo)
	}
}

// extractRating finds the star rating: a data attribute when present,
// otherwise the first short decimal text that parses into [0, 10).
// Out-of-range values are kept; the normalizer clamps and flags them.
func extractRating(card *goquery.Selection, texts []string) *float64 {
	if attr, ok := card.Find("[data-rating]").First().Attr("data-rating"); ok {
		if v, parsed := ParseFloat(attr); parsed {
			return domain.Float64Ptr(v)
		}
	}

	for _, text := range texts {
		if len(text) > 4 || !strings.Contains(text, ".") {
			continue
		}
		if v, ok := ParseFloat(text); ok {
			return domain.Float64Ptr(v)
		}
	}
	return nil
}

// extractReviewCount finds a parenthesized count like "(1,234)".
func extractReviewCount(texts []string) int64 {
	for _, text := range texts {
		if !strings.HasPrefix(text, "(") || !strings.HasSuffix(text, ")") {
			continue
		}
		if v, ok := ParseCount(text); ok {
			return v
		}
	}
	return 0
}

// extractStudentCount finds a student count like "수강생 1,234" or "1,234명".
func extractStudentCount(texts []string) int64 {
	for _, text := range texts {
		if !strings.Contains(text, "수강생") && !strings.Contains(text, "명") {
			continue
		}
		if v, ok := ParseCount(text); ok {
			return v
		}
	}
	return 0
}
