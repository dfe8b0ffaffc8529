package writer

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
	writerService "github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
	"github.com/zhouzirui/chaptered-writer/backend/pkg/utils"
)

// statusClientClosedRequest is nginx's non-standard status for a client that went away mid-request.
const statusClientClosedRequest = 499

// Handler 写作流程的HTTP处理器
type Handler struct {
	svc *writerService.Service
}

// New 创建写作流程处理器
func New(svc *writerService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册写作流程相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Patch("/sessions/{sessionID}", h.handleUpdateSettings)
	r.Post("/sessions/{sessionID}/outline", h.handleGenerateOutline)
	r.Put("/sessions/{sessionID}/chapters", h.handleEditChapters)
	r.Post("/sessions/{sessionID}/chapters/generate", h.handleGenerateChapters)
	r.Get("/sessions/{sessionID}/document", h.handleDocument)
}

type paramBounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

type listModelsResponse struct {
	Models                  []string    `json:"models"`
	Default                 string      `json:"default"`
	Paragraphs              paramBounds `json:"paragraphs"`
	ApproxCharsPerParagraph paramBounds `json:"approxCharsPerParagraph"`
}

// handleListModels 返回可选模型以及章节参数范围
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	catalog := h.svc.Models()
	utils.RespondJSON(w, http.StatusOK, listModelsResponse{
		Models:  catalog.List(),
		Default: catalog.Default(),
		Paragraphs: paramBounds{
			Min: writerModel.MinParagraphs, Max: writerModel.MaxParagraphs, Default: writerModel.DefaultParagraphs,
		},
		ApproxCharsPerParagraph: paramBounds{
			Min: writerModel.MinCharsPerParagraph, Max: writerModel.MaxCharsPerParagraph, Default: writerModel.DefaultCharsPerParagraph,
		},
	})
}

// handleCreateSession 创建写作会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.CreateSession(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snap)
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleUpdateSettings 更新主题、写作指南、模型或 API Key
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch writerModel.SettingsPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		utils.RespondErrorKind(w, http.StatusBadRequest, string(writerService.KindInvalid), "invalid request body")
		return
	}

	snap, err := h.svc.UpdateSettings(r.Context(), chi.URLParam(r, "sessionID"), patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleGenerateOutline 生成概要和章节标题
func (h *Handler) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GenerateOutline(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleEditChapters 用编辑后的章节列表替换当前列表
func (h *Handler) handleEditChapters(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Chapters []string `json:"chapters"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErrorKind(w, http.StatusBadRequest, string(writerService.KindInvalid), "invalid request body")
		return
	}

	snap, err := h.svc.EditChapters(r.Context(), chi.URLParam(r, "sessionID"), payload.Chapters)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleGenerateChapters 逐章生成正文。Accept: text/event-stream 时以 SSE 推送进度。
func (h *Handler) handleGenerateChapters(w http.ResponseWriter, r *http.Request) {
	params := writerModel.DefaultChapterParams()
	if err := utils.DecodeJSON(r, &params); err != nil {
		utils.RespondErrorKind(w, http.StatusBadRequest, string(writerService.KindInvalid), "invalid request body")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok || !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		snap, err := h.svc.GenerateChapters(r.Context(), sessionID, params, nil)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, snap)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	streamOK := true
	snap, err := h.svc.GenerateChapters(r.Context(), sessionID, params, func(p writerModel.Progress) {
		if !streamOK {
			return
		}
		if sendErr := utils.SendSSEEvent(w, flusher, "progress", p); sendErr != nil {
			log.Printf("[writer] progress stream closed session=%s: %v", sessionID, sendErr)
			streamOK = false
		}
	})
	if !streamOK {
		return
	}
	if err != nil {
		_ = utils.SendSSEEvent(w, flusher, "error", errorBody(err))
		return
	}
	_ = utils.SendSSEEvent(w, flusher, "result", snap)
}

// handleDocument 下载合并后的文章
func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		log.Printf("[writer] failed to write document: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(err error) errorResponse {
	return errorResponse{Error: err.Error(), Kind: string(writerService.KindOf(err))}
}

func statusFor(err error) int {
	switch writerService.KindOf(err) {
	case writerService.KindConfig:
		return http.StatusPreconditionFailed
	case writerService.KindInvalid:
		return http.StatusBadRequest
	case writerService.KindNotFound:
		return http.StatusNotFound
	case writerService.KindBusy, writerService.KindNotReady:
		return http.StatusConflict
	case writerService.KindService:
		return http.StatusBadGateway
	case writerService.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError 将服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	if writerService.KindOf(err) == "" {
		log.Printf("[writer] unexpected error: %v", err)
	}
	utils.RespondJSON(w, statusFor(err), errorBody(err))
}
