package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/quora/internal/answer"
	"github.com/hitoshi/quora/internal/auth"
	"github.com/hitoshi/quora/internal/authz"
	"github.com/hitoshi/quora/internal/common/clock"
	"github.com/hitoshi/quora/internal/config"
	"github.com/hitoshi/quora/internal/database"
	"github.com/hitoshi/quora/internal/handler"
	"github.com/hitoshi/quora/internal/logger"
	"github.com/hitoshi/quora/internal/metrics"
	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/question"
	"github.com/hitoshi/quora/internal/repository"
	"github.com/hitoshi/quora/internal/repository/memstore"
	"github.com/hitoshi/quora/internal/user"
	"github.com/hitoshi/quora/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELでロガーを再構成する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	if !IsKnownCommand(args) {
		fmt.Fprint(w, Usage())
		return fmt.Errorf("unknown command: %q", args[0])
	}
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("session_store", cfg.SessionStore),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はリポジトリ一式とその後始末をまとめた構造体。
type stores struct {
	tx        repository.Transactor
	users     repository.UserRepository
	sessions  repository.SessionRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	health    handler.HealthChecker
	closers   []func() error
}

// Close は開いた接続を逆順に閉じる。
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}
}

// nopHealth はメモリストア用の常に成功するHealthChecker。
type nopHealth struct{}

func (nopHealth) PingContext(context.Context) error { return nil }

// openStores は設定に従ってリポジトリを構築する。
// STORAGE_DRIVER=memory の場合はプロセス内メモリに保持する。
// SESSION_STORE=redis の場合はセッションのみRedisに保存する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		mem := memstore.New()
		s.tx = mem
		s.users = mem.Users()
		s.sessions = mem.Sessions()
		s.questions = mem.Questions()
		s.answers = mem.Answers()
		s.health = nopHealth{}
		slog.Warn("using in-memory storage; data is lost on restart")
	default:
		db, err := database.Open(cfg.DatabaseURL, database.WithPool(database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		if err := database.PingWithRetry(ctx, db, database.DefaultRetryPolicy(cfg.ConnectAttempts), "postgres"); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		s.tx = repository.NewTxManager(db)
		s.users = repository.NewPostgresUserRepo(db)
		s.sessions = repository.NewPostgresSessionRepo(db)
		s.questions = repository.NewPostgresQuestionRepo(db)
		s.answers = repository.NewPostgresAnswerRepo(db)
		s.health = db
	}

	if cfg.SessionStore == config.SessionStoreRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		s.closers = append(s.closers, client.Close)

		ping := database.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		if err := database.PingWithRetry(ctx, ping, database.DefaultRetryPolicy(cfg.ConnectAttempts), "redis"); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sessions, err := repository.NewRedisSessionRepo(client, cfg.SessionRetention)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		s.sessions = sessions
		slog.Info("redis session store connected", slog.String("addr", opts.Addr))
	}

	return s, nil
}

// newRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返却するRateLimiterはシャットダウン時にStopすること。
func newRouter(cfg *config.Config, s *stores, clk clock.Clock, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	collector := metrics.NewCollector(reg)

	// 認可コア: 成功した操作主体をリクエストログに載せる
	az := authz.NewAuthorizer(s.sessions, s.users, s.questions, s.answers, clk)
	az.OnAuthenticated(func(ctx context.Context, p *authz.Principal) {
		middleware.SetUserID(ctx, p.UserID())
	})

	authService := auth.NewService(s.tx, s.users, s.sessions, clk, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	questionService := question.NewService(s.tx, az, s.questions, s.users, clk, cfg.EmptyUserQuestionsAsNotFound)
	answerService := answer.NewService(s.tx, az, s.answers, clk)
	userService := user.NewService(s.tx, az, s.users, s.sessions)

	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignin),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     s.health,
		StatusPolicy:      handler.StatusPolicy{AuthFailureStatus: cfg.AuthFailureStatus},

		AuthService:     authService,
		QuestionService: questionService,
		AnswerService:   answerService,
		UserService:     userService,
	})
	return router, rateLimiter
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	s, err := openStores(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// 2. ルーターの構築
	router, rateLimiter := newRouter(cfg, s, clock.SystemClock{}, prometheus.NewRegistry())
	defer rateLimiter.Stop()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ストアを開き、セッションクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. ストア接続
	s, err := openStores(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	slog.Info("store connection established (worker)")

	// 2. クリーンアップジョブの初期化
	reg := prometheus.NewRegistry()
	cleanupJob := cleanup.NewCleanupJob(s.sessions, clock.SystemClock{}, metrics.NewCollector(reg), slog.Default())
	cleanupJob.Retention = cfg.SessionRetention

	// 3. ワーカーのメトリクスを/metricsで公開する
	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver == config.StorageDriverMemory {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
