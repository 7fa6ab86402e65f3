package graph

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stratagraph/strata/pkg/common"

	"github.com/pkoukk/tiktoken-go"
)

// sentence is one boundary-respecting slice of the document. Start and end
// are rune offsets of the covered range in the original text; text holds the
// cleaned form with line breaks folded to spaces (tables keep theirs).
type sentence struct {
	text  string
	start int
	end   int
}

// lineSentence is a sentence cut from a single line, with rune offsets
// relative to that line.
type lineSentence struct {
	text  string
	start int
	end   int
}

// tile produces the two tilings of a document: Large spans for the
// intermediate fill and Small spans for drill-down, both cut on sentence
// boundaries from the same sentence sequence. Tiling is deterministic and
// span ids are ordinals within each kind, so identical input yields
// identical provenance.
func (b *Builder) tile(text string) ([]*common.Span, []*common.Span, error) {
	enc, err := tiktoken.GetEncoding(b.tokenEncoder)
	if err != nil {
		return nil, nil, err
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil, nil
	}

	large := tileSpans(sentences, common.SpanLarge, enc, b.largeSpanTokens, b.overlapPercent)
	small := tileSpans(sentences, common.SpanSmall, enc, b.smallSpanTokens, b.overlapPercent)
	return large, small, nil
}

// tileSpans accumulates sentences greedily until the token budget overflows,
// then flushes the span and restarts at the overlap boundary. A single
// sentence over the budget becomes its own oversized span rather than being
// cut mid-sentence.
func tileSpans(
	sentences []sentence,
	kind common.SpanKind,
	enc *tiktoken.Tiktoken,
	maxTokens int,
	overlapPercent int,
) []*common.Span {
	var spans []*common.Span
	chunkStart := -1
	chunkEnd := -1

	flushChunk := func() {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return
		}

		var chunkText strings.Builder
		for i := chunkStart; i < chunkEnd; i++ {
			if i > chunkStart {
				chunkText.WriteString(" ")
			}
			chunkText.WriteString(sentences[i].text)
		}

		spans = append(spans, &common.Span{
			ID:    fmt.Sprintf("%s-%d", kind, len(spans)+1),
			Kind:  kind,
			Start: sentences[chunkStart].start,
			End:   sentences[chunkEnd-1].end,
			Text:  strings.TrimSpace(chunkText.String()),
		})
	}

	overlapTokens := maxTokens * overlapPercent / 100

	for i := range sentences {
		if chunkStart < 0 {
			chunkStart = i
			chunkEnd = i + 1
			continue
		}

		var testText strings.Builder
		for j := chunkStart; j <= i; j++ {
			if j > chunkStart {
				testText.WriteString(" ")
			}
			testText.WriteString(sentences[j].text)
		}

		testTokens := len(enc.Encode(testText.String(), nil, nil))

		if testTokens <= maxTokens {
			chunkEnd = i + 1
		} else {
			prevStart := chunkStart
			flushChunk()
			chunkStart = overlapStart(sentences, enc, i, prevStart, overlapTokens)
			chunkEnd = i + 1
		}
	}

	flushChunk()

	return spans
}

// overlapStart walks back from the sentence that overflowed the previous
// span, re-including trailing sentences worth up to overlapTokens. It never
// reaches back to the previous span's first sentence, so tiling always
// advances.
func overlapStart(sentences []sentence, enc *tiktoken.Tiktoken, i, prevStart, overlapTokens int) int {
	start := i
	used := 0
	for start-1 > prevStart {
		tokens := len(enc.Encode(sentences[start-1].text, nil, nil))
		if used+tokens > overlapTokens {
			break
		}
		used += tokens
		start--
	}
	return start
}

func splitIntoSentences(text string) []sentence {
	lines := strings.Split(text, "\n")
	var sentences []sentence
	var current strings.Builder
	curStart := 0
	curEnd := 0

	tableDelimRe := regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

	isTableRow := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return false
		}
		return strings.Contains(trimmed, "|")
	}

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			sentences = append(sentences, sentence{text: trimmed, start: curStart, end: curEnd})
		}
		current.Reset()
	}

	appendPiece := func(piece string, start, end int) {
		if current.Len() > 0 {
			current.WriteString(" ")
		} else {
			curStart = start
		}
		current.WriteString(piece)
		curEnd = end
	}

	inTable := false
	lineStart := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		trimmedStart := lineStart
		if trimmed != "" {
			trimmedStart = lineStart + utf8.RuneCountInString(line[:strings.Index(line, trimmed)])
		}
		trimmedEnd := trimmedStart + utf8.RuneCountInString(trimmed)

		switch {
		case !inTable && isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])):
			flush()

			inTable = true
			current.WriteString(line)
			curStart = trimmedStart
			curEnd = trimmedEnd

		case !inTable && isTableRow(line):
			flush()
			sentences = append(sentences, sentence{text: trimmed, start: trimmedStart, end: trimmedEnd})

		case inTable:
			if trimmed == "" || !isTableRow(line) {
				inTable = false
				flush()

				if trimmed != "" {
					for _, ls := range splitLineIntoSentences(trimmed) {
						appendPiece(ls.text, trimmedStart+ls.start, trimmedStart+ls.end)

						if strings.HasSuffix(ls.text, ".") ||
							strings.HasSuffix(ls.text, "!") ||
							strings.HasSuffix(ls.text, "?") {
							flush()
						}
					}
				}
			} else {
				current.WriteString("\n")
				current.WriteString(line)
				curEnd = trimmedEnd
			}

		case trimmed == "":
			flush()

		default:
			for _, ls := range splitLineIntoSentences(trimmed) {
				appendPiece(ls.text, trimmedStart+ls.start, trimmedStart+ls.end)

				if strings.HasSuffix(ls.text, ".") ||
					strings.HasSuffix(ls.text, "!") ||
					strings.HasSuffix(ls.text, "?") {
					flush()
				}
			}
		}

		lineStart += utf8.RuneCountInString(line) + 1
	}

	flush()

	return sentences
}

func splitLineIntoSentences(line string) []lineSentence {
	var sentences []lineSentence
	segStart := 0

	emit := func(segEnd int) {
		seg := strings.TrimSpace(line[segStart:segEnd])
		if seg == "" {
			segStart = segEnd
			return
		}
		idx := segStart + strings.Index(line[segStart:segEnd], seg)
		start := utf8.RuneCountInString(line[:idx])
		sentences = append(sentences, lineSentence{
			text:  seg,
			start: start,
			end:   start + utf8.RuneCountInString(seg),
		})
		segStart = segEnd
	}

	for i := 0; i < len(line); i++ {
		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			isNumericListing := false

			if i > 0 && unicode.IsDigit(rune(line[i-1])) {
				if i+1 < len(line) && line[i+1] == ' ' {
					isNumericListing = true
				}
			}

			if isNumericListing {
				continue
			}
			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				j++
			}

			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				j++
			}

			emit(j)
			i = j - 1
		}
	}

	emit(len(line))

	return sentences
}
