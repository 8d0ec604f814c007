package assemble

// ChapterMark is one chapter's span in the final container, in milliseconds
// from the start of the book.
type ChapterMark struct {
	Title   string `json:"title"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// BuildTimeline accumulates per-chapter durations (seconds) into contiguous
// millisecond spans. Boundaries are truncated, not rounded, and computed
// from the running sum so chapter i's start always equals chapter i-1's end.
func BuildTimeline(titles []string, durations []float64) []ChapterMark {
	marks := make([]ChapterMark, 0, len(durations))
	var clock float64
	for i, d := range durations {
		start := int64(clock * 1000)
		clock += d
		end := int64(clock * 1000)

		title := ""
		if i < len(titles) {
			title = titles[i]
		}
		marks = append(marks, ChapterMark{Title: title, StartMs: start, EndMs: end})
	}
	return marks
}
