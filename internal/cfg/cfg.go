package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	MetadataDriverPostgres = "postgres"
	MetadataDriverSQLite   = "sqlite"

	TokenCacheMemory = "memory"
	TokenCacheRedis  = "redis"
)

type Config struct {
	App       *AppCfg
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Metadata  *MetadataCfg
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Images    *ImagesCfg
	Embedding *EmbeddingCfg
	Catalog   *CatalogCfg
	Kafka     *KafkaCfg
	Search    *SearchCfg
	Batch     *BatchCfg
	Reconcile *ReconcileCfg
}

type AppCfg struct {
	Name    string
	Version string
	Env     string
}

// IsProduction сообщает, нужно ли скрывать детали ошибок в ответах.
func (a *AppCfg) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type MetadataCfg struct {
	Driver     string // postgres | sqlite
	SQLitePath string
}

type PGDBCfg struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
	UpsertBatchSize      int // максимальное число точек в одном запросе upsert
}

type RedisCfg struct {
	Enabled     bool
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	MetadataTTL time.Duration
	TokenCache  string // memory | redis
	TokenKey    string
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название бакета с изображениями товаров
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	CDNHost           string // хост CDN, отдающего объекты этого бакета
	ProductPrefix     string // префикс ключей для загружаемых изображений товаров
}

type ImagesCfg struct {
	MaxSize      int64
	FetchTimeout time.Duration
	UserAgent    string
}

type EmbeddingCfg struct {
	Endpoint        string // полный URL predict; если пуст, собирается из Location/Project/Model
	Project         string
	Location        string
	Model           string
	Dimension       int
	MaxConcurrent   int
	Timeout         time.Duration
	CredentialsFile string
	Scope           string
	TokenTimeout    time.Duration
	SafetyMargin    time.Duration
}

// PredictURL возвращает адрес метода predict мультимодальной модели.
func (c *EmbeddingCfg) PredictURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}

	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.Location, c.Project, c.Location, c.Model,
	)
}

type CatalogCfg struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	PriceScale int64 // множитель цены каталога до копеек: 1, если каталог отдает копейки, 100 для рублей
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	OutboxBatchSize   int
}

type SearchCfg struct {
	ExactThreshold   float32
	SimilarThreshold float32
	DefaultTopK      int
	MaxTopK          int
	Timeout          time.Duration
}

type BatchCfg struct {
	DefaultLimit int
	MaxLimit     int
	Concurrency  int
}

type ReconcileCfg struct {
	Interval time.Duration // 0 отключает периодическую сверку
	PageSize int
	Grace    time.Duration // свежие векторы без метаданных не удаляются: их метаданные могут еще писаться
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	metadata, err := loadMetadataCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var db *PGDBCfg
	if metadata.Driver == MetadataDriverPostgres {
		db, err = loadPGDBCfg(log)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	images, err := loadImagesCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedding, err := loadEmbeddingCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	catalog, err := loadCatalogCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	batch, err := loadBatchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	reconcile, err := loadReconcileCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if uint64(embedding.Dimension) != qdrant.VectorSize {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION (%d) must match VECTOR_SIZE (%d)", embedding.Dimension, qdrant.VectorSize)
	}

	return &Config{
		App:       loadAppCfg(),
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Metadata:  metadata,
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Minio:     minio,
		Images:    images,
		Embedding: embedding,
		Catalog:   catalog,
		Kafka:     kafka,
		Search:    search,
		Batch:     batch,
		Reconcile: reconcile,
	}, nil
}

func loadAppCfg() *AppCfg {
	return &AppCfg{
		Name:    getEnvOrDefault("APP_NAME", "visual-search"),
		Version: getEnvOrDefault("APP_VERSION", "1.0.0"),
		Env:     getEnvOrDefault("APP_ENV", "development"),
	}
}

func loadMetadataCfg() (*MetadataCfg, error) {
	driver := strings.ToLower(getEnvOrDefault("METADATA_DRIVER", MetadataDriverPostgres))
	if driver != MetadataDriverPostgres && driver != MetadataDriverSQLite {
		return nil, fmt.Errorf("METADATA_DRIVER must be %q or %q, got %q", MetadataDriverPostgres, MetadataDriverSQLite, driver)
	}

	return &MetadataCfg{
		Driver:     driver,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "data/metadata.db"),
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort           = "8080"
		defaultReadTimeout    = 15 * time.Second
		defaultWriteTimeout   = 10 * time.Minute // batch-index и reconcile отвечают долго
		defaultIdleTimeout    = 60 * time.Second
		defaultMaxBodyBytes   = 16 << 20
		defaultRequestTimeout = 45 * time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	requestTimeout, err := parseDurationEnv("HTTP_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_REQUEST_TIMEOUT")
		return nil, err
	}

	maxBody, err := parseIntEnv("HTTP_MAX_BODY_BYTES", defaultMaxBodyBytes)
	if err != nil {
		return nil, e.Wrap("HTTP_MAX_BODY_BYTES", err)
	}

	return &HTTPConfig{
		Port:           getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxBodyBytes:   int64(maxBody),
		RequestTimeout: requestTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost           = "localhost"
		defaultPort           = "5432"
		defaultSSLMode        = "disable"
		defaultMaxConns       = 10
		defaultMigrationsPath = "db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil {
		return nil, e.Wrap("POSTGRES_MAX_CONNS", err)
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           user,
		Password:       password,
		DBName:         dbName,
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns:       int32(maxConns),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort  = "6334"
		defaultUseTLS          = false
		defaultVectorSize      = "512"
		defaultCollection      = "bouquets"
		defaultUpsertBatchSize = 100
	)

	port, err := strconv.Atoi(getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	batchSize, err := parseIntEnv("QDRANT_UPSERT_BATCH_SIZE", defaultUpsertBatchSize)
	if err != nil || batchSize <= 0 {
		return nil, e.Wrap("QDRANT_UPSERT_BATCH_SIZE", e.ErrIncorrectEnvVariable)
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
		UpsertBatchSize:      batchSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultMetadataTTL  = 10 * time.Minute
		defaultTokenKey     = "visual-search:access-token"
	)

	enabled, err := strconv.ParseBool(getEnvOrDefault("REDIS_ENABLED", "true"))
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	metadataTTL, err := parseDurationEnv("METADATA_CACHE_TTL", defaultMetadataTTL)
	if err != nil {
		log.Errorf(err, "invalid METADATA_CACHE_TTL")
		return nil, err
	}

	tokenCache := strings.ToLower(getEnvOrDefault("TOKEN_CACHE", TokenCacheMemory))
	if tokenCache != TokenCacheMemory && tokenCache != TokenCacheRedis {
		return nil, fmt.Errorf("TOKEN_CACHE must be %q or %q", TokenCacheMemory, TokenCacheRedis)
	}
	if tokenCache == TokenCacheRedis && !enabled {
		return nil, fmt.Errorf("TOKEN_CACHE=redis requires REDIS_ENABLED=true")
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Enabled:     enabled,
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		MetadataTTL: metadataTTL,
		TokenCache:  tokenCache,
		TokenKey:    getEnvOrDefault("TOKEN_CACHE_KEY", defaultTokenKey),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL        = false
		defaultEndpoint      = "minio:9000"
		defaultBucket        = "bouquet-images"
		defaultProductPrefix = "products"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		CDNHost:           strings.ToLower(getEnv("CDN_HOST")),
		ProductPrefix:     getEnvOrDefault("PRODUCT_IMAGE_PREFIX", defaultProductPrefix),
	}, nil
}

func loadImagesCfg() (*ImagesCfg, error) {
	const (
		defaultMaxSize      = 10 << 20
		defaultFetchTimeout = 15 * time.Second
		defaultUserAgent    = "visual-search-worker/1.0 (+bouquet image indexer)"
	)

	maxSize, err := parseIntEnv("IMAGE_MAX_SIZE", defaultMaxSize)
	if err != nil || maxSize <= 0 {
		return nil, e.Wrap("IMAGE_MAX_SIZE", e.ErrIncorrectEnvVariable)
	}

	fetchTimeout, err := parseDurationEnv("IMAGE_FETCH_TIMEOUT", defaultFetchTimeout)
	if err != nil {
		return nil, e.Wrap("IMAGE_FETCH_TIMEOUT", err)
	}

	return &ImagesCfg{
		MaxSize:      int64(maxSize),
		FetchTimeout: fetchTimeout,
		UserAgent:    getEnvOrDefault("IMAGE_USER_AGENT", defaultUserAgent),
	}, nil
}

func loadEmbeddingCfg(log logger.Logger) (*EmbeddingCfg, error) {
	const (
		defaultLocation      = "us-central1"
		defaultModel         = "multimodalembedding@001"
		defaultDimension     = 512
		defaultMaxConcurrent = 3
		defaultTimeout       = 30 * time.Second
		defaultTokenTimeout  = 10 * time.Second
		defaultSafetyMargin  = 60 * time.Second
		defaultScope         = "https://www.googleapis.com/auth/cloud-platform"
	)

	dimension, err := parseIntEnv("EMBEDDING_DIMENSION", defaultDimension)
	if err != nil || dimension <= 0 {
		return nil, e.Wrap("EMBEDDING_DIMENSION", e.ErrIncorrectEnvVariable)
	}

	maxConcurrent, err := parseIntEnv("EMBEDDING_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil || maxConcurrent <= 0 {
		return nil, e.Wrap("EMBEDDING_MAX_CONCURRENT", e.ErrIncorrectEnvVariable)
	}

	timeout, err := parseDurationEnv("EMBEDDING_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_TIMEOUT")
		return nil, err
	}

	tokenTimeout, err := parseDurationEnv("TOKEN_TIMEOUT", defaultTokenTimeout)
	if err != nil {
		log.Errorf(err, "invalid TOKEN_TIMEOUT")
		return nil, err
	}

	safetyMargin, err := parseDurationEnv("TOKEN_SAFETY_MARGIN", defaultSafetyMargin)
	if err != nil {
		log.Errorf(err, "invalid TOKEN_SAFETY_MARGIN")
		return nil, err
	}

	cfg := &EmbeddingCfg{
		Endpoint:        getEnv("EMBEDDING_ENDPOINT"),
		Project:         getEnv("EMBEDDING_PROJECT"),
		Location:        getEnvOrDefault("EMBEDDING_LOCATION", defaultLocation),
		Model:           getEnvOrDefault("EMBEDDING_MODEL", defaultModel),
		Dimension:       dimension,
		MaxConcurrent:   maxConcurrent,
		Timeout:         timeout,
		CredentialsFile: getEnvOrDefault("EMBEDDING_CREDENTIALS_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS")),
		Scope:           getEnvOrDefault("EMBEDDING_SCOPE", defaultScope),
		TokenTimeout:    tokenTimeout,
		SafetyMargin:    safetyMargin,
	}

	if cfg.Endpoint == "" && cfg.Project == "" {
		err := fmt.Errorf("EMBEDDING_PROJECT or EMBEDDING_ENDPOINT is required")
		log.Errorf(err, "missing embedding endpoint")
		return nil, err
	}

	if cfg.CredentialsFile == "" {
		err := fmt.Errorf("EMBEDDING_CREDENTIALS_FILE is required")
		log.Errorf(err, "missing service account credentials")
		return nil, err
	}

	return cfg, nil
}

func loadCatalogCfg() (*CatalogCfg, error) {
	const defaultTimeout = 15 * time.Second

	timeout, err := parseDurationEnv("CATALOG_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("CATALOG_TIMEOUT", err)
	}

	baseURL := strings.TrimRight(getEnv("CATALOG_BASE_URL"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("CATALOG_BASE_URL environment variable is required")
	}

	scale, err := parseIntEnv("CATALOG_PRICE_SCALE", 1)
	if err != nil || scale < 1 {
		return nil, e.Wrap("CATALOG_PRICE_SCALE", e.ErrIncorrectEnvVariable)
	}

	return &CatalogCfg{
		BaseURL:    baseURL,
		APIKey:     getEnv("CATALOG_API_KEY"),
		Timeout:    timeout,
		PriceScale: int64(scale),
	}, nil
}

// loadKafkaCfg возвращает выключенную конфигурацию, если KAFKA_BROKERS не задан.
func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultTopic             = "visual-search.index-events"
		defaultOutboxBatchSize   = 10
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return &KafkaCfg{Enabled: false}, nil
	}

	brokers := strings.Split(brokerStr, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	batchSize, err := parseIntEnv("OUTBOX_BATCH_SIZE", defaultOutboxBatchSize)
	if err != nil {
		return nil, e.Wrap("OUTBOX_BATCH_SIZE", err)
	}

	return &KafkaCfg{
		Enabled:           true,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		OutboxBatchSize:   batchSize,
	}, nil
}

func loadSearchCfg(log logger.Logger) (*SearchCfg, error) {
	const (
		defaultExact   = 0.85
		defaultSimilar = 0.70
		defaultTopK    = 10
		defaultMaxTopK = 100
		defaultTimeout = 30 * time.Second
	)

	exact, err := parseFloatEnv("SEARCH_EXACT_THRESHOLD", defaultExact)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_EXACT_THRESHOLD")
		return nil, err
	}

	similar, err := parseFloatEnv("SEARCH_SIMILAR_THRESHOLD", defaultSimilar)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_SIMILAR_THRESHOLD")
		return nil, err
	}

	if similar < 0 || exact > 1 || similar > exact {
		return nil, fmt.Errorf("search thresholds must satisfy 0 <= similar (%v) <= exact (%v) <= 1", similar, exact)
	}

	topK, err := parseIntEnv("SEARCH_DEFAULT_TOP_K", defaultTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_DEFAULT_TOP_K", err)
	}

	maxTopK, err := parseIntEnv("SEARCH_MAX_TOP_K", defaultMaxTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_TOP_K", err)
	}

	if topK < 1 || topK > maxTopK {
		return nil, fmt.Errorf("SEARCH_DEFAULT_TOP_K must be within [1, %d]", maxTopK)
	}

	timeout, err := parseDurationEnv("SEARCH_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_TIMEOUT")
		return nil, err
	}

	return &SearchCfg{
		ExactThreshold:   float32(exact),
		SimilarThreshold: float32(similar),
		DefaultTopK:      topK,
		MaxTopK:          maxTopK,
		Timeout:          timeout,
	}, nil
}

func loadBatchCfg() (*BatchCfg, error) {
	const (
		defaultLimit       = 50
		defaultMaxLimit    = 500
		defaultConcurrency = 3
	)

	limit, err := parseIntEnv("BATCH_DEFAULT_LIMIT", defaultLimit)
	if err != nil {
		return nil, e.Wrap("BATCH_DEFAULT_LIMIT", err)
	}

	maxLimit, err := parseIntEnv("BATCH_MAX_LIMIT", defaultMaxLimit)
	if err != nil {
		return nil, e.Wrap("BATCH_MAX_LIMIT", err)
	}

	concurrency, err := parseIntEnv("BATCH_CONCURRENCY", defaultConcurrency)
	if err != nil || concurrency <= 0 {
		return nil, e.Wrap("BATCH_CONCURRENCY", e.ErrIncorrectEnvVariable)
	}

	if limit < 1 || limit > maxLimit {
		return nil, fmt.Errorf("BATCH_DEFAULT_LIMIT must be within [1, %d]", maxLimit)
	}

	return &BatchCfg{
		DefaultLimit: limit,
		MaxLimit:     maxLimit,
		Concurrency:  concurrency,
	}, nil
}

func loadReconcileCfg() (*ReconcileCfg, error) {
	const defaultPageSize = 100

	interval, err := parseDurationEnv("RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, e.Wrap("RECONCILE_INTERVAL", err)
	}

	pageSize, err := parseIntEnv("RECONCILE_PAGE_SIZE", defaultPageSize)
	if err != nil || pageSize <= 0 {
		return nil, e.Wrap("RECONCILE_PAGE_SIZE", e.ErrIncorrectEnvVariable)
	}

	grace, err := parseDurationEnv("RECONCILE_GRACE", 5*time.Minute)
	if err != nil || grace < 0 {
		return nil, e.Wrap("RECONCILE_GRACE", e.ErrIncorrectEnvVariable)
	}

	return &ReconcileCfg{Interval: interval, PageSize: pageSize, Grace: grace}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return f, nil
}
