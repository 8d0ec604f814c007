package assemble

import (
	"fmt"
	"io"
	"strings"
)

// WriteFFMetadata writes the chapter-marker document consumed by the mux
// subprocess: a version marker line, then one [CHAPTER] block per mark with
// a millisecond timebase, start/end offsets, and title, in that order.
func WriteFFMetadata(w io.Writer, marks []ChapterMark) error {
	if _, err := fmt.Fprintln(w, ";FFMETADATA1"); err != nil {
		return err
	}
	for i, m := range marks {
		title := m.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		_, err := fmt.Fprintf(w, "[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n",
			m.StartMs, m.EndMs, escapeMetadata(title))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteConcatList writes the ffmpeg concat-demuxer list file enumerating the
// per-chapter canonical audio paths in order.
func WriteConcatList(w io.Writer, paths []string) error {
	for _, p := range paths {
		if _, err := fmt.Fprintf(w, "file '%s'\n", escapeConcatPath(p)); err != nil {
			return err
		}
	}
	return nil
}

// escapeMetadata escapes the characters the ffmetadata format treats
// specially: '=', ';', '#', '\' and newline.
func escapeMetadata(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"=", `\=`,
		";", `\;`,
		"#", `\#`,
		"\n", `\`+"\n",
	)
	return r.Replace(s)
}

// escapeConcatPath escapes single quotes for the concat list's quoted-path
// syntax.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
