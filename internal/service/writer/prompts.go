package writer

import (
	"fmt"
	"strings"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
)

// ChapterTitleCount is how many titles the outline step asks for (起承転結).
const ChapterTitleCount = 4

func buildOutlinePrompt(topic string) string {
	var b strings.Builder
	b.WriteString("以下のテーマでブログ文章を書きます。日本語検索を駆使して概要を書け。\n")
	b.WriteString("## テーマ ##\n")
	b.WriteString(topic)
	return strings.TrimSpace(b.String())
}

func buildTitlesPrompt(topic, outline string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下のテーマと概要でブログ文章を書きます。起承転結のある章のタイトルを%dつ考え、そのタイトルのみをリスト形式（JSON配列）で示せ。\n", ChapterTitleCount)
	b.WriteString("## テーマ ##\n")
	b.WriteString(topic)
	b.WriteString("\n## 概要 ##\n")
	b.WriteString(outline)
	return strings.TrimSpace(b.String())
}

func buildChapterPrompt(topic, title, howToWrite string, params writerModel.ChapterParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下のテーマでブログ文章を書きます。そのうちの1つの章が「%s」です。\n", title)
	fmt.Fprintf(&b, "この章に相応しい内容を検索も活用しつつ、%d パラグラフの文章で示せ。\n\n", params.Paragraphs)
	b.WriteString("## テーマ ##\n")
	b.WriteString(topic)
	b.WriteString("\n\n## アウトプットのフォーマット ##\n")
	b.WriteString("テキストのみ。改行以外の余計な装飾はしないこと。\n")
	fmt.Fprintf(&b, "1パラグラフあたりおよそ %d 文字で、しっかりと書くこと。\n\n", params.ApproxCharsPerParagraph)
	b.WriteString("## 書き方の注意点 ##\n")
	b.WriteString(howToWrite)
	return strings.TrimSpace(b.String())
}
