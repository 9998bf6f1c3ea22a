package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/auth"
	"github.com/milijuli/sewa/internal/config"
	"github.com/milijuli/sewa/internal/content"
	"github.com/milijuli/sewa/internal/database"
	"github.com/milijuli/sewa/internal/donation"
	"github.com/milijuli/sewa/internal/geoip"
	"github.com/milijuli/sewa/internal/handler"
	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/logger"
	"github.com/milijuli/sewa/internal/metrics"
	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/project"
	"github.com/milijuli/sewa/internal/repository"
	"github.com/milijuli/sewa/internal/security"
	"github.com/milijuli/sewa/internal/updates"
	"github.com/milijuli/sewa/internal/user"
	"github.com/milijuli/sewa/internal/view"
	"github.com/milijuli/sewa/internal/worker/cleanup"
	fetchpkg "github.com/milijuli/sewa/internal/worker/fetch"
)

// 生成モデルのサーキットブレーカー設定。
const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// 返却されるCloserはログファイルを閉じるためのもので、プロセス終了時に呼ぶ。
func Init(w io.Writer) (*config.Config, io.Closer, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってレベルとファイル出力を反映する
	closer := logger.SetupWithFile(w, logger.ParseLevel(cfg.LogLevel), logger.FileOptions{
		Path:       cfg.LogFile,
		MaxBackups: cfg.LogRetentionDays,
		MaxAgeDays: cfg.LogRetentionDays,
	})

	return cfg, closer, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// runWithConfig は設定を読み込んでからサブコマンドを実行する。
func runWithConfig(w io.Writer, cmd Command, run func(cfg *config.Config) error) error {
	cfg, closer, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer closer.Close()

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)
	return run(cfg)
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// generationStore は生成ログの保存先を選ぶ。MONGO_URIがあればMongoDB、なければPostgreSQLを使う。
// 返却される関数は接続を閉じる。
func generationStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.GenerationRepository, func(), error) {
	if cfg.MongoURI == "" {
		return repository.NewPostgresGenerationRepo(db), func() {}, nil
	}

	client, mdb, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mongodb: %w", err)
	}
	repo := repository.NewMongoGenerationRepo(mdb)
	if err := repo.EnsureIndexes(ctx, cfg.GenerationRetention); err != nil {
		slog.Warn("failed to ensure generation indexes", slog.String("error", err.Error()))
	}
	slog.Info("generation log stored in mongodb", slog.String("database", cfg.MongoDatabase))

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Warn("failed to disconnect mongodb", slog.String("error", err.Error()))
		}
	}
	return repo, closeFn, nil
}

// newGenerator は生成モデルのクライアントを構築する。APIキーが未設定の場合はnilを返す。
func newGenerator(ctx context.Context, cfg *config.Config, observer llm.Observer) (llm.Generator, error) {
	if !cfg.GenerationEnabled() {
		slog.Info("generation disabled: GEMINI_API_KEY is not set")
		return nil, nil
	}
	call, err := llm.NewGeminiCall(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	return llm.NewClient(call, llm.Options{
		Model:           cfg.GeminiModel,
		FallbackModel:   cfg.GeminiFallbackModel,
		Timeout:         cfg.GenerationTimeout,
		BreakerFailures: breakerFailures,
		BreakerCooldown: breakerCooldown,
		Observer:        observer,
	}), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	donationRepo := repository.NewPostgresDonationRepo(db)
	inKindRepo := repository.NewPostgresPhysicalDonationRepo(db)
	sourceRepo := repository.NewPostgresUpdateSourceRepo(db)
	updateRepo := repository.NewPostgresProjectUpdateRepo(db)
	outboxRepo := repository.NewPostgresOutboxRepo(db)

	genRepo, closeGenStore, err := generationStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeGenStore()

	// 4. セキュリティサービスの初期化
	sanitizer := security.NewSanitizer()
	urlGuard := security.NewURLGuard()

	// 5. ドメインサービスの初期化
	generator, err := newGenerator(ctx, cfg, collector)
	if err != nil {
		return err
	}
	assistantService := assistant.NewService(generator, genRepo, assistant.NewOutboxMailer(outboxRepo))

	projectService := project.NewService(projectRepo, sanitizer)

	donationOpts := []donation.Option{
		donation.WithAcknowledger(assistantService),
		donation.WithObserver(collector),
	}
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			return fmt.Errorf("failed to open geoip database: %w", err)
		}
		defer resolver.Close()
		donationOpts = append(donationOpts, donation.WithCountryResolver(resolver))
	}
	donationService := donation.NewService(projectRepo, donationRepo, inKindRepo, donationOpts...)
	defer donationService.Wait()

	detector := updates.NewDetector(urlGuard, urlGuard.Client(cfg.FetchTimeout, cfg.FetchMaxSize), cfg.FetchMaxSize)
	updateService := updates.NewService(projectRepo, sourceRepo, updateRepo, detector)

	userService := user.NewService(userRepo, sessionRepo, donationService, assistantService)

	contentStore, err := content.Default()
	if err != nil {
		return fmt.Errorf("failed to load site content: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitGeneration),
	)
	defer rateLimiter.Stop()

	authConfig := handler.AuthHandlerConfig{
		BaseURL:       cfg.BaseURL,
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
		StateSecret:   cfg.SessionSecret,
	}

	trustedProxy, err := middleware.NewTrustedProxyMiddleware(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	if len(cfg.TrustedProxies) > 0 {
		slog.Info("forwarded client addresses trusted", slog.Any("proxies", cfg.TrustedProxies))
	}

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HTTPObserver:      collector,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		TrustedProxy:   trustedProxy,
		RateLimiter:    rateLimiter,
		DB:             db,
		MetricsHandler: metrics.Handler(registry),

		AuthConfig: authConfig,

		ProjectService:   projectService,
		DashboardSource:  handler.NewDashboardSourceAdapter(projectService, donationService),
		DashboardOptions: view.DashboardOptions{},
		DonationService:  donationService,
		UpdateService:    updateService,
		UserService:      userService,
		AssistantService: assistantService,
		Content:          contentStore,
	}

	// OAuth未設定の環境では/authを公開しない
	if cfg.OAuthEnabled() {
		oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		deps.AuthService = auth.NewService(
			oauthProvider, userRepo, identRepo, sessionRepo,
			auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		)
	} else {
		slog.Warn("google oauth is not configured; sign-in routes are disabled")
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 更新フィードのフェッチスケジューラと期限切れデータのクリーンアップを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sourceRepo := repository.NewPostgresUpdateSourceRepo(db)
	updateRepo := repository.NewPostgresProjectUpdateRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	outboxRepo := repository.NewPostgresOutboxRepo(db)

	genRepo, closeGenStore, err := generationStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeGenStore()

	// 3. メトリクス（ワーカーは公開しないため、Collectorは内部計測のみ）
	collector := metrics.NewCollector(metrics.NewRegistry())

	// 4. セキュリティサービスとフェッチャーの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewSanitizer()

	upserter := updates.NewUpserter(updateRepo, sanitizer)
	fetcher := fetchpkg.NewFetcher(
		sourceRepo, upserter, urlGuard,
		urlGuard.Client(cfg.FetchTimeout, cfg.FetchMaxSize),
		slog.Default(), collector,
		fetchpkg.Config{Interval: cfg.FetchInterval, MaxBodySize: cfg.FetchMaxSize},
	)

	// 5. スケジューラとクリーンアップジョブ
	scheduler := fetchpkg.NewScheduler(sourceRepo, fetcher, slog.Default(), cfg.FetchMaxConcurrent)

	cleanupJob := cleanup.NewJob(sessionRepo, genRepo, outboxRepo, slog.Default())
	cleanupJob.GenerationRetention = cfg.GenerationRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// フェッチスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.FetchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("failed to read migration version", slog.String("error", err.Error()))
	} else {
		slog.Info("database migrations completed successfully",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// runSeed はYAMLファイルのプロジェクトを登録する。
// 同じスラッグのプロジェクトが既にあれば作成せずスキップする。
func runSeed(ctx context.Context, cfg *config.Config, path string) error {
	inputs, err := loadSeedFile(path)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	service := project.NewService(repository.NewPostgresProjectRepo(db), security.NewSanitizer())

	var created, skipped int
	for i, in := range inputs {
		p, isNew, err := service.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to seed project #%d (%s): %w", i+1, in.Title, err)
		}
		if !isNew {
			skipped++
			slog.Info("project already exists", slog.String("slug", p.Slug))
			continue
		}
		created++
		slog.Info("project created",
			slog.String("id", p.ID),
			slog.String("slug", p.Slug),
		)
	}

	slog.Info("seed completed",
		slog.String("file", path),
		slog.Int("created", created),
		slog.Int("skipped", skipped),
	)
	return nil
}

// healthcheckURL はローカルの/healthのURLを返す。
// portが空の場合はSERVER_PORT、それも空なら8080を使う。
func healthcheckURL(port string) string {
	if port == "" {
		port = os.Getenv("SERVER_PORT")
	}
	if port == "" {
		port = "8080"
	}
	return (&url.URL{Scheme: "http", Host: net.JoinHostPort("localhost", port), Path: "/health"}).String()
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
