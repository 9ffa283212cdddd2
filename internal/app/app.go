package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/visual-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/auth"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/catalog"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/embedder"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/images"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/visual-search/internal/infrastructure/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/converter"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/visual-search/internal/repository/qdrant"
	"github.com/DRSN-tech/visual-search/internal/repository/redis"
	redisConv "github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/internal/repository/sqlite"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout        = 10 * time.Second
	shutdownTimeout    = 15 * time.Second
	cleanupWaitTimeout = 5 * time.Second
	topicTimeout       = 10 * time.Second
)

// App связывает хранилища, внешние сервисы, usecase и серверы в один процесс.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv     *v1Http.Server
	grpcSrv     *v1Grpc.GRPCServer
	outbox      *kafka.OutboxWorker
	imagesInfra *minioInfra.MinioInfrastructure
	reconcileUC *usecase.ReconcileUseCase

	// bgCtx живет до начала остановки; на нем работают фоновые задачи
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// metadataStore хранилище метаданных, выбранное через METADATA_DRIVER.
type metadataStore struct {
	repo       usecase.MetadataRepository
	trManager  tr.Manager
	outboxRepo usecase.OutboxRepository
	dsn        string
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	a := &App{
		cfg:      cfg,
		logger:   log,
		closer:   closer.NewCloser(0),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	if err := a.init(); err != nil {
		bgCancel()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := a.closer.Close(ctx); closeErr != nil {
			log.Warnf("release resources after failed init: %s", closeErr.Error())
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return a, nil
}

func (a *App) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	store, err := a.initMetadataStore(ctx)
	if err != nil {
		return err
	}

	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize minio client")
		return err
	}
	if err := clients.EnsureBucket(ctx, minioClient, a.cfg.Minio.BucketName); err != nil {
		a.logger.Errorf(err, "failed to initialize MinIO bucket")
		return err
	}
	imageRepo := s3Repo.NewImageRepo(minioClient, a.cfg.Minio)
	a.imagesInfra = minioInfra.NewMinioInfrastructure(imageRepo, a.cfg.Minio, a.logger, a.bgCtx)

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return err
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })
	if err := clients.EnsureCollection(ctx, qdrantClient); err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant collection")
		return err
	}
	vectorRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, a.cfg.Qdrant)

	var (
		cacheRepo  usecase.CacheRepository
		tokenCache usecase.TokenCache = auth.NewMemoryTokenCache()
	)
	if a.cfg.Redis.Enabled {
		redisClient := clients.NewRedisClient(a.cfg.Redis)
		a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })
		if err := redisClient.Ping(ctx); err != nil {
			a.logger.Errorf(err, "failed to connect to redis")
			return err
		}
		cacheRepo = redis.NewCacheRepo(redisClient, redisConv.NewMetadataConverter(), a.cfg.Redis, a.logger)
		if a.cfg.Redis.TokenCache == config.TokenCacheRedis {
			tokenCache = redis.NewTokenCache(redisClient, a.cfg.Redis.TokenKey, time.Now)
		}
	}

	account, err := auth.LoadServiceAccount(a.cfg.Embedding.CredentialsFile)
	if err != nil {
		a.logger.Errorf(err, "failed to load service account")
		return err
	}
	tokens := auth.NewTokenProvider(
		account,
		a.cfg.Embedding.Scope,
		tokenCache,
		&http.Client{Timeout: a.cfg.Embedding.TokenTimeout},
		a.logger,
		auth.WithSafetyMargin(a.cfg.Embedding.SafetyMargin),
	)
	emb := embedder.NewEmbedder(tokens, &http.Client{}, a.cfg.Embedding, a.logger)

	acquirer := images.NewAcquirer(&http.Client{}, imageRepo, a.cfg.Images, a.cfg.Minio.CDNHost, a.logger)
	catalogClient := catalog.NewClient(&http.Client{Timeout: a.cfg.Catalog.Timeout}, a.cfg.Catalog, a.logger)

	if store.outboxRepo != nil {
		if err := a.initOutbox(store); err != nil {
			return err
		}
	}

	indexUC := usecase.NewIndexUC(
		acquirer,
		emb,
		vectorRepo,
		store.repo,
		cacheRepo,
		a.imagesInfra,
		store.outboxRepo,
		catalogClient,
		store.trManager,
		a.cfg.Batch,
		a.logger,
	)
	searchUC := usecase.NewSearchUC(
		acquirer,
		emb,
		vectorRepo,
		usecase.NewMetadataReader(store.repo, cacheRepo, a.logger),
		a.cfg.Search,
		a.logger,
	)
	statsUC := usecase.NewStatsUC(vectorRepo, store.repo, a.logger)
	a.reconcileUC = usecase.NewReconcileUC(vectorRepo, store.repo, cacheRepo, a.cfg.Reconcile, a.logger)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.logger)
	router.Init(&v1Http.UseCases{
		Index:     indexUC,
		Search:    searchUC,
		Stats:     statsUC,
		Reconcile: a.reconcileUC,
	}, a.cfg.App, a.cfg.Http)

	a.httpSrv = v1Http.NewServer(r, a.cfg.Http)
	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)

	return nil
}

func (a *App) initMetadataStore(ctx context.Context) (*metadataStore, error) {
	if a.cfg.Metadata.Driver == config.MetadataDriverSQLite {
		db, err := sqlite.Open(ctx, a.cfg.Metadata.SQLitePath)
		if err != nil {
			a.logger.Errorf(err, "failed to open sqlite database")
			return nil, err
		}
		a.closer.Add("sqlite", func(context.Context) error { return db.Close() })

		a.logger.Infof("metadata store: sqlite at %s", a.cfg.Metadata.SQLitePath)
		return &metadataStore{
			repo:      sqlite.NewMetadataRepo(db, converter.NewMetadataConverter()),
			trManager: tr.NopManager{},
		}, nil
	}

	db, err := initPGDB(ctx, a.logger, a.cfg)
	if err != nil {
		return nil, err
	}
	a.closer.AddFunc("postgres", db.Close)

	store := &metadataStore{
		repo:      pgdb.NewMetadataRepo(db.Pool, converter.NewMetadataConverter()),
		trManager: tr.NewManager(db.Pool),
		dsn:       db.Dsn,
	}
	if a.cfg.Kafka.Enabled {
		store.outboxRepo = pgdb.NewOutboxEventRepo(db.Pool, converter.NewOutboxEventConverter())
	}

	a.logger.Infof("metadata store: postgres")
	return store, nil
}

func (a *App) initOutbox(store *metadataStore) error {
	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })

	if err := producer.EnsureTopic(topicTimeout); err != nil {
		a.logger.Errorf(err, "failed to ensure kafka topic")
		return err
	}

	a.outbox = kafka.NewOutboxWorker(store.outboxRepo, a.logger, producer, store.dsn, a.cfg.Kafka.OutboxBatchSize)
	return nil
}

// Run запускает серверы и фоновые задачи и блокируется до сигнала остановки
// или фатальной ошибки одного из серверов.
func (a *App) Run() error {
	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()

	if a.outbox != nil {
		a.outbox.Start(a.bgCtx)
	}
	if a.cfg.Reconcile.Interval > 0 {
		go a.reconcileLoop(a.bgCtx)
	}

	a.grpcSrv.MarkServing()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-httpErrCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.shutdown()

	return appErr
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Сначала перестаем принимать трафик, затем останавливаем фон и освобождаем ресурсы
	if err := a.grpcSrv.Stop(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warnf("gRPC server shutdown timeout")
		} else {
			a.logger.Errorf(err, "gRPC server shutdown error")
		}
	} else {
		a.logger.Infof("gRPC server stopped")
	}

	if err := a.httpSrv.Stop(ctx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	a.bgCancel()
	if a.outbox != nil {
		a.outbox.Stop()
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(ctx, cleanupWaitTimeout)
	defer cleanupCancel()
	if err := a.imagesInfra.WaitForCleanup(cleanupCtx); err != nil {
		a.logger.Warnf("MinIO cleanup did not finish before shutdown, some uploaded objects may remain: %s", err.Error())
	}

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "failed to release resources")
	}

	a.logger.Infof("Application shutdown complete")
}

// reconcileLoop периодически сверяет индекс с метаданными.
// Интервал размывается джиттером, чтобы реплики не сверялись одновременно.
func (a *App) reconcileLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(jitter.Duration(a.cfg.Reconcile.Interval, 0.1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		report, err := a.reconcileUC.Reconcile(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Errorf(err, "periodic reconcile failed")
			continue
		}

		a.logger.Infof(
			"periodic reconcile: vectors checked=%d removed=%d, metadata checked=%d removed=%d",
			report.VectorsChecked, report.OrphanVectorsRemoved,
			report.MetadataChecked, report.OrphanMetadataRemoved,
		)
	}
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
