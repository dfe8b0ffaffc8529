package writer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/ai"
	"github.com/zhouzirui/chaptered-writer/backend/pkg/metrics"
)

// ChapterErrorPrefix starts the body stored for a chapter whose generation failed.
const ChapterErrorPrefix = "[エラー] この章の生成に失敗しました: "

// Publisher receives every progress update of a chapter batch.
type Publisher interface {
	Publish(p writerModel.Progress)
}

// ProgressFunc is called after each chapter, in order, from the goroutine running the batch.
type ProgressFunc func(writerModel.Progress)

// Service is the workflow controller: it owns writing sessions and runs the generation steps.
type Service struct {
	gen       ai.Generator
	catalog   writerModel.Catalog
	publisher Publisher

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	state    writerModel.Session
	running  bool
	progress *writerModel.Progress
}

// NewService bootstraps the in-memory workflow controller. publisher may be nil.
func NewService(gen ai.Generator, catalog writerModel.Catalog, publisher Publisher) *Service {
	return &Service{
		gen:       gen,
		catalog:   catalog,
		publisher: publisher,
		sessions:  make(map[string]*entry),
	}
}

// Models returns the selectable model catalog.
func (s *Service) Models() writerModel.Catalog {
	return s.catalog
}

// CreateSession provisions a session with the sample topic, style guidance and the default model.
func (s *Service) CreateSession(_ context.Context) (writerModel.Snapshot, error) {
	e := &entry{state: writerModel.Session{
		ID:             uuid.NewString(),
		Topic:          writerModel.DefaultTopic,
		HowToWrite:     writerModel.DefaultHowToWrite,
		ModelName:      s.catalog.Default(),
		Chapters:       []string{},
		GeneratedTexts: map[string]string{},
		CreatedAt:      time.Now().UTC(),
	}}

	s.mu.Lock()
	s.sessions[e.state.ID] = e
	s.mu.Unlock()
	metrics.SessionsCreatedTotal.Inc()

	log.Printf("[writer] created session=%s model=%s", e.state.ID, e.state.ModelName)
	return e.snapshot(), nil
}

// Snapshot returns a copy of the session state without the API key.
func (s *Service) Snapshot(_ context.Context, sessionID string) (writerModel.Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return writerModel.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// UpdateSettings applies the non-nil fields of patch. Allowed while a batch runs:
// a model change takes effect from the next generation call.
func (s *Service) UpdateSettings(_ context.Context, sessionID string, patch writerModel.SettingsPatch) (writerModel.Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return writerModel.Snapshot{}, err
	}

	if patch.ModelName != nil && !s.catalog.Contains(*patch.ModelName) {
		return writerModel.Snapshot{}, newError(KindInvalid, fmt.Sprintf("unknown model %q", *patch.ModelName), nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if patch.Topic != nil {
		e.state.Topic = *patch.Topic
	}
	if patch.HowToWrite != nil {
		e.state.HowToWrite = *patch.HowToWrite
	}
	if patch.ModelName != nil {
		e.state.ModelName = *patch.ModelName
	}
	if patch.APIKey != nil {
		e.state.APIKey = strings.TrimSpace(*patch.APIKey)
	}
	return e.snapshot(), nil
}

// GenerateOutline produces the outline, then the chapter title proposals, with two sequential calls.
// A failure of the second call keeps the new outline and leaves the chapter list untouched.
func (s *Service) GenerateOutline(ctx context.Context, sessionID string) (snap writerModel.Snapshot, err error) {
	e, err := s.begin(sessionID)
	if err != nil {
		return writerModel.Snapshot{}, err
	}
	defer func() { snap = e.finish() }()

	var topic, apiKey, modelName string
	e.locked(func(st *writerModel.Session) {
		topic, apiKey, modelName = st.Topic, st.APIKey, st.ModelName
	})

	outline, err := s.gen.GenerateText(ctx, ai.Request{
		APIKey:    apiKey,
		Model:     modelName,
		Prompt:    buildOutlinePrompt(topic),
		Grounding: true,
	})
	if err != nil {
		log.Printf("[writer] outline generation failed session=%s: %v", sessionID, err)
		return snap, newError(KindService, "生成に失敗しました", err)
	}
	e.locked(func(st *writerModel.Session) { st.Outline = outline })

	modelName = e.modelName()
	proposed, err := s.gen.GenerateList(ctx, ai.Request{
		APIKey: apiKey,
		Model:  modelName,
		Prompt: buildTitlesPrompt(topic, outline),
	})
	if err != nil {
		log.Printf("[writer] title generation failed session=%s: %v", sessionID, err)
		return snap, newError(KindService, "生成に失敗しました", err)
	}

	chapters := NormalizeTitles(proposed)
	e.locked(func(st *writerModel.Session) { st.Chapters = chapters })

	log.Printf("[writer] outline generated session=%s length=%d chapters=%d", sessionID, len(outline), len(chapters))
	return snap, nil
}

// EditChapters replaces the chapter list with the normalized edit.
func (s *Service) EditChapters(_ context.Context, sessionID string, titles []string) (writerModel.Snapshot, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return writerModel.Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return writerModel.Snapshot{}, ErrBusy
	}
	e.state.Chapters = NormalizeTitles(titles)
	return e.snapshot(), nil
}

// GenerateChapters regenerates every chapter body, one call at a time in list order.
// A failed chapter stores an error body and the batch continues. Duplicate titles are
// last-write-wins. Cancellation is checked between chapters.
func (s *Service) GenerateChapters(ctx context.Context, sessionID string, params writerModel.ChapterParams, onProgress ProgressFunc) (snap writerModel.Snapshot, err error) {
	if !params.Valid() {
		return writerModel.Snapshot{}, newError(KindInvalid, fmt.Sprintf(
			"paragraphs must be %d-%d and approxCharsPerParagraph %d-%d",
			writerModel.MinParagraphs, writerModel.MaxParagraphs,
			writerModel.MinCharsPerParagraph, writerModel.MaxCharsPerParagraph,
		), nil)
	}

	e, err := s.begin(sessionID)
	if err != nil {
		return writerModel.Snapshot{}, err
	}
	defer func() { snap = e.finish() }()

	var (
		topic, howToWrite, apiKey string
		chapters                  []string
	)
	e.locked(func(st *writerModel.Session) {
		topic, howToWrite, apiKey = st.Topic, st.HowToWrite, st.APIKey
		chapters = append([]string(nil), st.Chapters...)
	})
	if len(chapters) == 0 {
		return snap, newError(KindInvalid, "chapter list is empty", nil)
	}
	e.locked(func(st *writerModel.Session) { st.GeneratedTexts = map[string]string{} })

	total := max(1, len(chapters))
	failed := 0
	s.report(e, onProgress, writerModel.Progress{SessionID: sessionID, Total: total})
	for i, title := range chapters {
		if err := ctx.Err(); err != nil {
			return snap, s.cancelBatch(sessionID, i, total, failed, err)
		}

		body, err := s.gen.GenerateText(ctx, ai.Request{
			APIKey:    apiKey,
			Model:     e.modelName(),
			Prompt:    buildChapterPrompt(topic, title, howToWrite, params),
			Grounding: true,
		})
		if err != nil && ctx.Err() != nil {
			return snap, s.cancelBatch(sessionID, i, total, failed, ctx.Err())
		}
		if err != nil {
			failed++
			log.Printf("[writer] chapter %d/%d failed session=%s: %v", i+1, len(chapters), sessionID, err)
			body = ChapterErrorPrefix + err.Error()
			metrics.ChapterResultsTotal.WithLabelValues(metrics.StatusError).Inc()
		} else {
			metrics.ChapterResultsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		}

		e.locked(func(st *writerModel.Session) { st.GeneratedTexts[title] = body })

		s.report(e, onProgress, writerModel.Progress{
			SessionID: sessionID,
			Completed: i + 1,
			Total:     total,
			Fraction:  float64(i+1) / float64(total),
			Title:     title,
			Failed:    err != nil,
			Done:      i+1 == len(chapters),
		})
	}

	metrics.ChapterBatchesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	log.Printf("[writer] chapters generated session=%s total=%d failed=%d", sessionID, len(chapters), failed)
	return snap, nil
}

// Document compiles the current state into the downloadable article.
func (s *Service) Document(_ context.Context, sessionID string) (Document, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return Document{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.GeneratedTexts) == 0 {
		return Document{}, ErrNotReady
	}
	return Document{
		Filename:    DocumentFilename,
		ContentType: DocumentContentType,
		Body:        Compile(e.state.Topic, e.state.Outline, e.state.Chapters, e.state.GeneratedTexts),
	}, nil
}

func (s *Service) cancelBatch(sessionID string, completed, total, failed int, cause error) error {
	metrics.ChapterBatchesTotal.WithLabelValues(metrics.StatusCanceled).Inc()
	log.Printf("[writer] chapters canceled session=%s completed=%d/%d failed=%d", sessionID, completed, total, failed)
	return newError(KindCanceled, "generation canceled", cause)
}

func (s *Service) report(e *entry, onProgress ProgressFunc, p writerModel.Progress) {
	e.mu.Lock()
	e.progress = &p
	e.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
	if s.publisher != nil {
		s.publisher.Publish(p)
	}
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// begin marks the session as running. It fails before any external call when
// another operation is active or the API key is missing.
func (s *Service) begin(sessionID string) (*entry, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil, ErrBusy
	}
	if e.state.APIKey == "" {
		return nil, ErrConfig
	}
	e.running = true
	return e, nil
}

// finish clears the running flag and returns the resulting state.
func (e *entry) finish() writerModel.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.snapshot()
}

func (e *entry) locked(fn func(st *writerModel.Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
}

// modelName is read at every call so a mid-run selection change applies to the next chapter.
func (e *entry) modelName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ModelName
}

// snapshot must be called with e.mu held.
func (e *entry) snapshot() writerModel.Snapshot {
	snap := writerModel.Snapshot{
		Session:         e.state.Clone(),
		HasAPIKey:       e.state.APIKey != "",
		Running:         e.running,
		DuplicateTitles: DuplicateTitles(e.state.Chapters),
	}
	snap.APIKey = ""
	if e.progress != nil {
		p := *e.progress
		snap.Progress = &p
	}
	return snap
}
