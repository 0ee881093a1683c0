package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quora/internal/metrics"
	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// HealthChecker はヘルスチェック対象のストアを表す。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	StatusPolicy      StatusPolicy

	AuthService     AuthServiceInterface
	QuestionService QuestionServiceInterface
	AnswerService   AnswerServiceInterface
	UserService     UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → Token → RateLimit(General)
//
// /health と /metrics はログ・レート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	rs := newResponder(deps.StatusPolicy, mc)

	authHandler := NewAuthHandler(deps.AuthService, rs)
	questionHandler := NewQuestionHandler(deps.QuestionService, rs)
	answerHandler := NewAnswerHandler(deps.AnswerService, rs)
	userHandler := NewUserHandler(deps.UserService, rs)

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: Logging → Metrics → Token → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewMetricsMiddleware(mc))
		r.Use(middleware.NewTokenMiddleware())

		// サインインはパスワード総当たり対策として専用の制限のみを適用する
		r.With(deps.RateLimiter.SigninMiddleware()).Post("/user/signin", authHandler.Signin)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/user/signup", authHandler.Signup)
			r.Post("/user/signout", authHandler.Signout)

			r.Route("/question", func(r chi.Router) {
				r.Post("/create", questionHandler.Create)
				r.Get("/all", questionHandler.ListAll)
				r.Get("/all/{userId}", questionHandler.ListByUser)
				r.Put("/edit/{questionId}", questionHandler.Edit)
				r.Delete("/delete/{questionId}", questionHandler.Delete)
				r.Post("/{questionId}/answer/create", answerHandler.Create)
			})

			r.Route("/answer", func(r chi.Router) {
				r.Put("/edit/{answerId}", answerHandler.Edit)
				r.Delete("/delete/{answerId}", answerHandler.Delete)
				r.Get("/all/{questionId}", answerHandler.ListByQuestion)
			})

			r.Get("/userprofile/{userId}", userHandler.Profile)
			r.Delete("/admin/user/{userId}", userHandler.AdminDelete)
		})
	})

	return r
}

// healthHandler はストアへの疎通を確認するハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code:    "UNAVAILABLE",
					Message: "store is unreachable",
				})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
