package writer

import "time"

// Session holds the state of one writing session. Only the writer service mutates it.
type Session struct {
	ID             string            `json:"id"`
	Topic          string            `json:"topic"`
	HowToWrite     string            `json:"howToWrite"`
	ModelName      string            `json:"modelName"`
	Outline        string            `json:"outline"`
	Chapters       []string          `json:"chapters"`
	GeneratedTexts map[string]string `json:"generatedTexts"`
	APIKey         string            `json:"-"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (s Session) Clone() Session {
	out := s
	out.Chapters = append([]string(nil), s.Chapters...)
	out.GeneratedTexts = make(map[string]string, len(s.GeneratedTexts))
	for k, v := range s.GeneratedTexts {
		out.GeneratedTexts[k] = v
	}
	return out
}

// Progress reports how far a chapter batch has got.
type Progress struct {
	SessionID string  `json:"sessionId"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	Title     string  `json:"title,omitempty"`
	Failed    bool    `json:"failed,omitempty"`
	Done      bool    `json:"done,omitempty"`
}

// Snapshot is the externally visible view of a session.
type Snapshot struct {
	Session
	HasAPIKey       bool      `json:"hasApiKey"`
	Running         bool      `json:"running"`
	Progress        *Progress `json:"progress,omitempty"`
	DuplicateTitles []string  `json:"duplicateTitles,omitempty"`
}

// SettingsPatch carries optional setting updates; nil fields are left alone.
type SettingsPatch struct {
	Topic      *string `json:"topic,omitempty"`
	HowToWrite *string `json:"howToWrite,omitempty"`
	ModelName  *string `json:"modelName,omitempty"`
	APIKey     *string `json:"apiKey,omitempty"`
}

// ChapterParams controls the length of each generated chapter body.
type ChapterParams struct {
	Paragraphs              int `json:"paragraphs"`
	ApproxCharsPerParagraph int `json:"approxCharsPerParagraph"`
}

// Bounds for ChapterParams, matching the range offered by the client sliders.
const (
	MinParagraphs     = 6
	MaxParagraphs     = 10
	DefaultParagraphs = 8

	MinCharsPerParagraph     = 400
	MaxCharsPerParagraph     = 900
	DefaultCharsPerParagraph = 800
)

// DefaultChapterParams returns the slider defaults.
func DefaultChapterParams() ChapterParams {
	return ChapterParams{Paragraphs: DefaultParagraphs, ApproxCharsPerParagraph: DefaultCharsPerParagraph}
}

// Valid reports whether both values are inside their bounds.
func (p ChapterParams) Valid() bool {
	return p.Paragraphs >= MinParagraphs && p.Paragraphs <= MaxParagraphs &&
		p.ApproxCharsPerParagraph >= MinCharsPerParagraph && p.ApproxCharsPerParagraph <= MaxCharsPerParagraph
}

// 新建会话时填入的示例文本。
const (
	DefaultTopic = "宮崎駿の映画に隠されたアニメ制作への思いがテーマです。実は「君たちはどう生きるか」" +
		"はスタジオ・ジブリにおける制作の葛藤がテーマとなっていることを指摘します。"
	DefaultHowToWrite = "なるべく柔らかい文章で、人に寄り添うような形にしてください。極端な表現は避けなさい。"
)
