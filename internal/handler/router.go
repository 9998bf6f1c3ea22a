package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPObserver      middleware.StatusObserver
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	// TrustedProxy は信頼済みプロキシ配下でクライアントIPを復元する。nilの場合は接続元をそのまま使う。
	TrustedProxy      func(next http.Handler) http.Handler
	RateLimiter       *middleware.RateLimiter

	// 運用
	DB             Pinger
	MetricsHandler http.Handler

	// 認証（nilの場合は/authルートを公開しない）
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロジェクトとダッシュボード
	ProjectService   ProjectServiceInterface
	DashboardSource  view.DashboardSource
	DashboardOptions view.DashboardOptions

	DonationService  DonationServiceInterface
	UpdateService    UpdateServiceInterface
	UserService      UserServiceInterface
	AssistantService AssistantServiceInterface
	Content          ContentStore
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → TrustedProxy → Logging → Recovery → SecurityHeaders → CORS
//	/api: OptionalSession → RateLimit(General) → CSRF
//
// 認証が必要なルートはSessionMiddlewareを、生成モデルを呼ぶルートは
// GenerationMiddlewareを追加で通す。認証ルート（/auth/*）は/apiの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if deps.TrustedProxy != nil {
		r.Use(deps.TrustedProxy)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPObserver))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.AuthService != nil {
		authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
		})
	}

	projectHandler := NewProjectHandler(deps.ProjectService, deps.DashboardSource, deps.DashboardOptions)
	donationHandler := NewDonationHandler(deps.DonationService)
	updateHandler := NewUpdateHandler(deps.UpdateService)
	contentHandler := NewContentHandler(deps.Content)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	assistantHandler := NewAssistantHandler(deps.AssistantService, deps.Content)

	requireSession := middleware.NewSessionMiddleware(deps.SessionFinder)
	generationLimit := deps.RateLimiter.GenerationMiddleware()

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// 閲覧（匿名可）
		r.Get("/dashboard", projectHandler.Dashboard)
		r.Get("/stats", projectHandler.Stats)
		r.Get("/faqs", contentHandler.FAQs)
		r.Get("/team", contentHandler.Team)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Get("/slug/{slug}", projectHandler.GetProjectBySlug)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Get("/donations", donationHandler.ListDonations)
				r.Get("/donors", donationHandler.Donors)
				r.Get("/in-kind", donationHandler.ListInKind)
				r.Get("/updates", updateHandler.ListUpdates)

				// 寄付はログインしていなくても受け付ける
				r.Post("/donations", donationHandler.Donate)
				r.Post("/in-kind", donationHandler.Pledge)

				r.With(requireSession).Post("/update-sources", updateHandler.RegisterSource)
			})
		})

		r.With(requireSession).Patch("/in-kind/{id}/status", donationHandler.UpdateInKindStatus)

		r.Route("/me", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", userHandler.Me)
			r.Delete("/", userHandler.Withdraw)
			r.With(generationLimit).Get("/impact", userHandler.Impact)
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Use(generationLimit)
			r.Post("/faq", assistantHandler.FAQ)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Post("/thank-you", assistantHandler.ThankYou)
				r.Post("/seo", assistantHandler.SEO)
				r.Post("/story", assistantHandler.Story)
				r.Post("/in-kind-ack", assistantHandler.InKindAck)
			})
		})
	})

	return r
}
