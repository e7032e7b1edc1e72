package domain

import (
	"regexp"
	"strings"
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
	trailingWSRe = regexp.MustCompile(`[ \t]+\n`)

	numberedHeaderRe = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)

	// A dosing core: drug-like token, then an amount with a clinical unit.
	// The span is later extended to the enclosing sentence so qualifiers
	// like "every 3-5 minutes" are covered too.
	dosingRe = regexp.MustCompile(`(?i)\b[a-z][a-z/()-]{2,}\s+\d+(\.\d+)?\s*(mg/kg|mcg/kg|mg|mcg|gm|g|ml|l|meq|units?)\b`)
)

// NormalizeText canonicalizes whitespace while preserving paragraph
// structure: CRLF to LF, space runs collapsed, blank-line runs collapsed to
// one paragraph break, trailing spaces stripped.
func NormalizeText(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// sentenceEndOffsets returns byte positions just past each sentence
// terminator and its following whitespace. Every offset is a valid cut: the
// text before it ends a sentence and the text after it starts a new one.
func sentenceEndOffsets(text string) []int {
	var offsets []int
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 >= len(text) {
			offsets = append(offsets, len(text))
			break
		}
		next := text[i+1]
		if next == ' ' || next == '\n' {
			// Consume the single whitespace byte so the next chunk
			// starts on a word.
			offsets = append(offsets, i+2)
		}
	}
	if len(offsets) == 0 || offsets[len(offsets)-1] != len(text) {
		offsets = append(offsets, len(text))
	}
	return offsets
}

// paragraphBreakOffsets returns byte positions just past each blank line.
func paragraphBreakOffsets(text string) []int {
	var offsets []int
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			offsets = append(offsets, i+2)
		}
	}
	return offsets
}

// headerLine is a detected section header and its position in the text.
type headerLine struct {
	start int
	title string
}

// isHeaderLine reports whether a trimmed line reads as a section header:
// short and either numbered ("3.2 Airway"), colon-terminated, or all caps.
func isHeaderLine(line string) bool {
	if line == "" || len(line) >= 80 {
		return false
	}
	if numberedHeaderRe.MatchString(line) {
		return true
	}
	if strings.HasSuffix(line, ":") {
		return true
	}
	letters := 0
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 3
}

// headerLines scans the text for section headers, in order of appearance.
func headerLines(text string) []headerLine {
	var headers []headerLine
	start := 0
	for start <= len(text) {
		end := strings.IndexByte(text[start:], '\n')
		var line string
		if end < 0 {
			line = text[start:]
			end = len(text)
		} else {
			line = text[start : start+end]
			end = start + end
		}
		trimmed := strings.TrimSpace(line)
		if isHeaderLine(trimmed) {
			headers = append(headers, headerLine{start: start, title: strings.TrimSuffix(trimmed, ":")})
		}
		if end >= len(text) {
			break
		}
		start = end + 1
	}
	return headers
}

// sectionAt returns the most recently seen header title at or before pos.
func sectionAt(headers []headerLine, pos int) string {
	section := ""
	for _, h := range headers {
		if h.start > pos {
			break
		}
		section = h.title
	}
	return section
}

// dosingSpans returns byte ranges that must never contain a chunk boundary.
// Each detected dose statement is extended to its enclosing sentence so a
// drug name is never separated from its dose or schedule.
func dosingSpans(text string, sentenceEnds []int) [][2]int {
	matches := dosingRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	spans := make([][2]int, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		// Snap to sentence bounds.
		prevEnd := 0
		for _, se := range sentenceEnds {
			if se <= start {
				prevEnd = se
				continue
			}
			if se >= end {
				end = se
				break
			}
		}
		spans = append(spans, [2]int{prevEnd, end})
	}
	return spans
}

// insideSpan reports whether pos falls strictly inside any span.
func insideSpan(spans [][2]int, pos int) bool {
	for _, s := range spans {
		if pos > s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

// spanStartBefore returns the start of the span containing pos, or pos.
func spanStartBefore(spans [][2]int, pos int) int {
	for _, s := range spans {
		if pos > s[0] && pos < s[1] {
			return s[0]
		}
	}
	return pos
}
