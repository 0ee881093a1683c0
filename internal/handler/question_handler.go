package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// QuestionServiceInterface は質問ハンドラーが必要とするサービスインターフェース。
type QuestionServiceInterface interface {
	Create(ctx context.Context, token, content string) (*model.Question, error)
	ListAll(ctx context.Context, token string) ([]*model.Question, error)
	ListByUser(ctx context.Context, token, userID string) ([]*model.Question, error)
	Edit(ctx context.Context, token, questionID, content string) (*model.Question, error)
	Delete(ctx context.Context, token, questionID string) (*model.Question, error)
}

// QuestionHandler は質問のHTTPハンドラー。
type QuestionHandler struct {
	service QuestionServiceInterface
	responder
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(service QuestionServiceInterface, rs responder) *QuestionHandler {
	return &QuestionHandler{service: service, responder: rs}
}

// questionRequest は質問の作成・編集リクエストのボディ。
type questionRequest struct {
	Content string `json:"content"`
}

// questionDetailsResponse は質問一覧の要素。
type questionDetailsResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Create は質問を作成する。
// POST /question/create
func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	decodeRequest(r, &req)

	q, err := h.service.Create(r.Context(), middleware.TokenFromContext(r.Context()), req.Content)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("question", "create")
	middleware.WriteJSON(w, http.StatusCreated, statusResponse{ID: q.ID, Status: "QUESTION CREATED"})
}

// ListAll は全質問を返す。
// GET /question/all
func (h *QuestionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListAll(r.Context(), middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toQuestionDetails(questions))
}

// ListByUser は指定ユーザーの質問を返す。
// GET /question/all/{userId}
func (h *QuestionHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListByUser(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toQuestionDetails(questions))
}

// Edit は質問本文を編集する。
// PUT /question/edit/{questionId}
func (h *QuestionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	decodeRequest(r, &req)

	q, err := h.service.Edit(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "questionId"), req.Content)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("question", "edit")
	middleware.WriteJSON(w, http.StatusOK, statusResponse{ID: q.ID, Status: "QUESTION EDITED"})
}

// Delete は質問を削除する。
// DELETE /question/delete/{questionId}
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Delete(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "questionId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("question", "delete")
	middleware.WriteJSON(w, http.StatusOK, statusResponse{ID: q.ID, Status: "QUESTION DELETED"})
}

func toQuestionDetails(questions []*model.Question) []questionDetailsResponse {
	out := make([]questionDetailsResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionDetailsResponse{ID: q.ID, Content: q.Content})
	}
	return out
}
