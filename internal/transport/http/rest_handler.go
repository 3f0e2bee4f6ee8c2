package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/domain"
)

// RESTHandler serves stateless quiz endpoints: question supply, the mistake
// collector and accuracy stats.
type RESTHandler struct {
	service  *app.QuizService
	supply   app.QuestionSupply
	recorder app.MistakeReporter
	logger   *zap.Logger
}

func NewRESTHandler(service *app.QuizService, supply app.QuestionSupply, recorder app.MistakeReporter, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{service: service, supply: supply, recorder: recorder, logger: logger}
}

type quizItem struct {
	ID       string   `json:"id"`
	Maori    string   `json:"maori"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	IsReview bool     `json:"is_review"`
}

type quizResultRequest struct {
	UserID       string    `json:"user_id"`
	WrongWordIDs *[]string `json:"wrong_word_ids"`
}

type quizResultResponse struct {
	Message    string `json:"message"`
	WrongCount int    `json:"wrong_count"`
}

type statsResponse struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// GetQuiz returns up to limit questions, previous mistakes first.
func (h *RESTHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	userID := queryUser(r)
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, detailResponse{Detail: "invalid limit"})
			return
		}
		limit = n
	}

	questions, err := h.supply.Questions(r.Context(), userID, limit)
	if errors.Is(err, domain.ErrNoWords) {
		writeJSON(w, http.StatusNotFound, detailResponse{Detail: "No words available for quiz"})
		return
	}
	if err != nil {
		h.logger.Error("failed to build quiz", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, detailResponse{Detail: "failed to build quiz"})
		return
	}

	items := make([]quizItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, quizItem{
			ID:       q.ID,
			Maori:    q.Prompt,
			Options:  q.Options,
			Answer:   q.CorrectAnswer,
			IsReview: q.IsReview,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// SubmitQuizResult records a user's missed words.
func (h *RESTHandler) SubmitQuizResult(w http.ResponseWriter, r *http.Request) {
	var req quizResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, detailResponse{Detail: "invalid quiz result payload"})
		return
	}
	if req.WrongWordIDs == nil {
		writeJSON(w, http.StatusBadRequest, detailResponse{Detail: "wrong_word_ids is required"})
		return
	}
	if req.UserID == "" {
		req.UserID = app.AnonymousUser
	}

	report := domain.MistakeReport{UserID: req.UserID, MissedIDs: *req.WrongWordIDs}
	if err := h.recorder.ReportMistakes(r.Context(), report); err != nil {
		h.logger.Error("failed to record quiz result", zap.String("user_id", req.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, detailResponse{Detail: "failed to record quiz result"})
		return
	}
	writeJSON(w, http.StatusOK, quizResultResponse{
		Message:    "Quiz result recorded.",
		WrongCount: len(report.MissedIDs),
	})
}

// GetStats returns the persisted accuracy record of a user.
func (h *RESTHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats(r.Context(), queryUser(r))
	writeJSON(w, http.StatusOK, statsResponse{
		Total:    stats.Total,
		Correct:  stats.Correct,
		Accuracy: stats.Accuracy(),
	})
}

func queryUser(r *http.Request) string {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return userID
	}
	return app.AnonymousUser
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
