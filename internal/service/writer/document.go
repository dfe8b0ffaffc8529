package writer

import "strings"

// Document download metadata.
const (
	DocumentFilename    = "generated_article.txt"
	DocumentContentType = "text/plain; charset=utf-8"
)

// Document is the compiled download.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Compile renders the article as UTF-8 text. Sections follow the chapter list order;
// a chapter without a stored body gets an empty section.
func Compile(topic, outline string, chapters []string, texts map[string]string) []byte {
	sections := make([]string, 0, len(chapters)+2)
	sections = append(sections, "# テーマ\n"+topic+"\n")
	sections = append(sections, "## 概要\n"+outline+"\n")
	for _, title := range chapters {
		sections = append(sections, "## "+title+"\n"+texts[title]+"\n")
	}
	return []byte(strings.Join(sections, "\n"))
}
