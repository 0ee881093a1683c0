package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// AnswerServiceInterface は回答ハンドラーが必要とするサービスインターフェース。
type AnswerServiceInterface interface {
	Create(ctx context.Context, token, questionID, content string) (*model.Answer, error)
	Edit(ctx context.Context, token, answerID, content string) (*model.Answer, error)
	Delete(ctx context.Context, token, answerID string) (*model.Answer, error)
	ListByQuestion(ctx context.Context, token, questionID string) ([]model.AnswerWithQuestion, error)
}

// AnswerHandler は回答のHTTPハンドラー。
type AnswerHandler struct {
	service AnswerServiceInterface
	responder
}

// NewAnswerHandler はAnswerHandlerを生成する。
func NewAnswerHandler(service AnswerServiceInterface, rs responder) *AnswerHandler {
	return &AnswerHandler{service: service, responder: rs}
}

// answerRequest は回答作成リクエストのボディ。
type answerRequest struct {
	Answer string `json:"answer"`
}

// answerEditRequest は回答編集リクエストのボディ。
type answerEditRequest struct {
	Content string `json:"content"`
}

// answerDetailsResponse は回答一覧の要素。
type answerDetailsResponse struct {
	ID              string `json:"id"`
	QuestionContent string `json:"question_content"`
	AnswerContent   string `json:"answer_content"`
}

// Create は質問に回答を投稿する。
// POST /question/{questionId}/answer/create
func (h *AnswerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	decodeRequest(r, &req)

	a, err := h.service.Create(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "questionId"), req.Answer)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("answer", "create")
	middleware.WriteJSON(w, http.StatusCreated, statusResponse{ID: a.ID, Status: "ANSWER CREATED"})
}

// Edit は回答本文を編集する。
// PUT /answer/edit/{answerId}
func (h *AnswerHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req answerEditRequest
	decodeRequest(r, &req)

	a, err := h.service.Edit(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "answerId"), req.Content)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("answer", "edit")
	middleware.WriteJSON(w, http.StatusOK, statusResponse{ID: a.ID, Status: "ANSWER EDITED"})
}

// Delete は回答を削除する。
// DELETE /answer/delete/{answerId}
func (h *AnswerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Delete(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "answerId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("answer", "delete")
	middleware.WriteJSON(w, http.StatusOK, statusResponse{ID: a.ID, Status: "ANSWER DELETED"})
}

// ListByQuestion は質問への回答一覧を返す。
// GET /answer/all/{questionId}
func (h *AnswerHandler) ListByQuestion(w http.ResponseWriter, r *http.Request) {
	answers, err := h.service.ListByQuestion(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "questionId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	out := make([]answerDetailsResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, answerDetailsResponse{
			ID:              a.ID,
			QuestionContent: a.QuestionContent,
			AnswerContent:   a.Content,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}
