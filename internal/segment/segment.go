// Package segment turns raw document text into bounded-length speakable
// blocks. Segmentation is pure: the same input always yields the same blocks.
package segment

import (
	"regexp"
	"strings"
)

// Block is one bounded unit of text sent to the synthesis backend in a
// single request. Blocks never span a paragraph break.
type Block struct {
	Text string
}

// DefaultMaxBlockLen is the interactive-mode block size target.
const DefaultMaxBlockLen = 300

var (
	urlRe        = regexp.MustCompile(`https?://(?:www\.)?([^\s/]+)\S*`)
	wrapHyphenRe = regexp.MustCompile(`([a-zA-Z])-\s+([a-zA-Z])`)
	emphasisRe   = regexp.MustCompile("[*_~`#]+")
	spaceRe      = regexp.MustCompile(`\s+`)
	paragraphRe  = regexp.MustCompile(`\n+`)

	// A sentence is a run of non-terminators followed by terminators and any
	// trailing close-quotes/brackets, or a trailing fragment with no terminator.
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*|[^.!?]+$`)
)

// Clean normalizes one paragraph for synthesis: URLs become a spoken
// placeholder naming the domain, line-wrap hyphenation is repaired, emphasis
// markers are stripped, and whitespace is collapsed.
func Clean(s string) string {
	s = urlRe.ReplaceAllString(s, "link to $1")
	s = wrapHyphenRe.ReplaceAllString(s, "$1$2")
	s = emphasisRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Segment splits text into speakable blocks of at most maxLen characters.
// Paragraphs are segmented independently; within a paragraph, sentences are
// greedily packed and never force-split, so a single sentence longer than
// maxLen forms its own oversized block.
func Segment(text string, maxLen int) []Block {
	if maxLen <= 0 {
		maxLen = DefaultMaxBlockLen
	}

	var blocks []Block
	for _, para := range paragraphRe.Split(text, -1) {
		p := Clean(para)
		if p == "" {
			continue
		}
		if len(p) <= maxLen {
			// Short paragraph: no sentence analysis needed.
			blocks = append(blocks, Block{Text: p})
			continue
		}
		blocks = append(blocks, packSentences(p, maxLen)...)
	}
	return blocks
}

// packSentences splits a cleaned paragraph into sentences and greedily packs
// them into blocks bounded by maxLen.
func packSentences(p string, maxLen int) []Block {
	sentences := splitSentences(p)

	var blocks []Block
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() == 0 {
			cur.WriteString(s)
			continue
		}
		if cur.Len()+1+len(s) > maxLen {
			blocks = append(blocks, Block{Text: cur.String()})
			cur.Reset()
			cur.WriteString(s)
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		blocks = append(blocks, Block{Text: cur.String()})
	}
	return blocks
}

// splitSentences breaks a paragraph into natural sentences. A paragraph with
// no sentence-ending punctuation comes back as a single sentence.
func splitSentences(p string) []string {
	matches := sentenceRe.FindAllString(p, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}
