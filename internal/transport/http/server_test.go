package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/domain"
	"tereo-quiz-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	service  *app.QuizService
	mistakes *memory.MistakeStore
	stats    *memory.StatsStore
}

func newTestServer(t *testing.T, words []domain.Word) *testServer {
	t.Helper()
	logger := zap.NewNop()
	wordRepo := memory.NewWordRepository(memory.NewStaticWordLoader(words), time.Minute)
	mistakes := memory.NewMistakeStore(wordRepo)
	stats := memory.NewStatsStore()
	builder := app.NewQuestionBuilder(wordRepo, mistakes, 10)

	cfg := app.DefaultServiceConfig()
	cfg.Session.TickInterval = time.Hour
	service := app.NewQuizService(memory.NewSessionStore(), builder, stats, cfg,
		app.WithReporter(mistakes),
		app.WithServiceLogger(logger),
	)

	router := NewRouter(NewWSHandler(service, logger), NewRESTHandler(service, builder, mistakes, logger), logger)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, service: service, mistakes: mistakes, stats: stats}
}

func sampleWords() []domain.Word {
	return []domain.Word{
		{ID: "1", Maori: "kai", English: "food"},
		{ID: "2", Maori: "wai", English: "water"},
		{ID: "3", Maori: "whare", English: "house"},
	}
}

func answerFor(prompt string) string {
	for _, w := range sampleWords() {
		if w.Maori == prompt {
			return w.English
		}
	}
	return ""
}
