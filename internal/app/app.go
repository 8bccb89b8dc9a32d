package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/formgate/formgate/internal/access"
	"github.com/formgate/formgate/internal/botcheck"
	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/db"
	"github.com/formgate/formgate/internal/duplicate"
	"github.com/formgate/formgate/internal/fanout"
	formhttp "github.com/formgate/formgate/internal/http"
	"github.com/formgate/formgate/internal/http/api/forms"
	"github.com/formgate/formgate/internal/identity"
	"github.com/formgate/formgate/internal/logging"
	"github.com/formgate/formgate/internal/models"
	"github.com/formgate/formgate/internal/pipeline"
	"github.com/formgate/formgate/internal/policy"
	"github.com/formgate/formgate/internal/premium"
	"github.com/formgate/formgate/internal/ratelimit"
	"github.com/formgate/formgate/internal/retention"
	"github.com/formgate/formgate/internal/security"
	internalsettings "github.com/formgate/formgate/internal/settings"
	"github.com/formgate/formgate/internal/submission"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const fallbackFingerprintKey = "formgate-fingerprint"

// CreateAPIKeyParams holds inputs for API key creation.
type CreateAPIKeyParams struct {
	FormID    string
	Name      string
	ExpiresIn time.Duration
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// CreateAPIKey issues a key bound to an existing form and returns the stored record.
func CreateAPIKey(ctx context.Context, cfg config.AppConfig, params CreateAPIKeyParams) (*models.APIKey, error) {
	formID := strings.TrimSpace(params.FormID)
	if formID == "" {
		return nil, errors.New("app: form id is required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = "default"
	}
	conn, _, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	conn = conn.WithContext(ctx)

	var form models.Form
	if errFind := conn.Select("id").Where("id = ?", formID).Take(&form).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("app: form %s not found", formID)
		}
		return nil, errFind
	}

	token, errGen := security.GenerateAPIKey()
	if errGen != nil {
		return nil, errGen
	}
	key := &models.APIKey{FormID: formID, Name: name, APIKey: token, Active: true}
	if params.ExpiresIn > 0 {
		expires := nowUTC().Add(params.ExpiresIn)
		key.ExpiresAt = &expires
	}
	if errCreate := conn.Create(key).Error; errCreate != nil {
		return nil, errCreate
	}
	return key, nil
}

// RevokeAPIKey marks the key revoked and inactive.
func RevokeAPIKey(ctx context.Context, cfg config.AppConfig, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("app: api key is required")
	}
	conn, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	now := nowUTC()
	res := conn.WithContext(ctx).Model(&models.APIKey{}).
		Where("api_key = ? AND revoked_at IS NULL", token).
		Updates(map[string]any{"active": false, "revoked_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("app: api key not found or already revoked")
	}
	return nil
}

// SetFormPassword turns on password protection for a form and stores the
// bcrypt hash of password in its settings. An empty password turns
// protection off.
func SetFormPassword(ctx context.Context, cfg config.AppConfig, formID, password string) error {
	formID = strings.TrimSpace(formID)
	if formID == "" {
		return errors.New("app: form id is required")
	}
	conn, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	conn = conn.WithContext(ctx)

	var form models.Form
	if errFind := conn.Select("id", "schema").Where("id = ?", formID).Take(&form).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("app: form %s not found", formID)
		}
		return errFind
	}

	protection := map[string]any{"enabled": false, "password": ""}
	if password != "" {
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			return fmt.Errorf("app: hash password: %w", errHash)
		}
		protection = map[string]any{"enabled": true, "password": hash}
	}
	schema, errSchema := withSchemaSetting(form.Schema, "passwordProtection", protection)
	if errSchema != nil {
		return errSchema
	}
	return conn.Model(&models.Form{}).Where("id = ?", formID).Update("schema", schema).Error
}

// withSchemaSetting merges value into settings[name] of a stored form
// schema, keeping every other key.
func withSchemaSetting(raw datatypes.JSON, name string, value map[string]any) (datatypes.JSON, error) {
	doc := map[string]any{}
	if len(raw) > 0 {
		if errDecode := json.Unmarshal(raw, &doc); errDecode != nil {
			return nil, fmt.Errorf("app: form schema unreadable: %w", errDecode)
		}
	}
	settings, _ := doc["settings"].(map[string]any)
	if settings == nil {
		settings = map[string]any{}
	}
	current, _ := settings[name].(map[string]any)
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range value {
		current[k] = v
	}
	settings[name] = current
	doc["settings"] = settings
	encoded, errEncode := json.Marshal(doc)
	if errEncode != nil {
		return nil, errEncode
	}
	return datatypes.JSON(encoded), nil
}

// IssueUserToken signs a submitter JWT for an existing user with the
// configured secret.
func IssueUserToken(ctx context.Context, cfg config.AppConfig, userID uint64, expiresIn time.Duration) (string, error) {
	if userID == 0 {
		return "", errors.New("app: user id is required")
	}
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	conn, appCfg, err := openDatabase(cfg)
	if err != nil {
		return "", err
	}
	if appCfg.JWT.Secret == "" {
		return "", errors.New("app: jwt.secret is not configured")
	}
	var user models.User
	if errFind := conn.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("app: user %d not found", userID)
		}
		return "", errFind
	}
	return security.GenerateToken(appCfg.JWT.Secret, user.ID, user.Email, expiresIn)
}

// RunServer boots the submission server and its background workers. It
// returns after ctx is cancelled and in-flight work has drained.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conn, appCfg, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	closer, errLogging := logging.Setup(appCfg.Logging)
	if errLogging != nil {
		return errLogging
	}
	defer func() { _ = closer.Close() }()

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: initial refresh failed")
	}

	var rdb *redis.Client
	if appCfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     appCfg.Redis.Addr,
			Password: appCfg.Redis.Password,
			DB:       appCfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if errPing := rdb.Ping(ctx).Err(); errPing != nil {
			return fmt.Errorf("redis ping: %w", errPing)
		}
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	dispatcher := fanout.NewDispatcher(
		fanout.NewWebhookSender(conn, appCfg.Fanout.WebhookTimeout),
		fanout.NewMailer(appCfg.SMTP),
		fanout.Options{
			Workers:      appCfg.Fanout.Workers,
			QueueSize:    appCfg.Fanout.QueueSize,
			EmailTimeout: appCfg.Fanout.EmailTimeout,
			BaseURL:      func() string { return internalsettings.BaseURL(appCfg.App.BaseURL) },
			SiteName:     internalsettings.SiteName,
		},
	)
	dispatcher.Start(workerCtx)

	deps, cleaner := buildPolicyDeps(conn, rdb, appCfg)
	cleaner.Start(workerCtx)

	store := submission.NewStore(conn)
	publicPipeline := pipeline.New(policy.ChannelPublic, access.NewPublicGuard(conn),
		identity.NewUserResolver(appCfg.JWT.Secret), policy.Stages(policy.ChannelPublic, deps), store, dispatcher)
	apiPipeline := pipeline.New(policy.ChannelAPI, access.NewSubmitAPIKeyGuard(conn),
		identity.NewResolver(), policy.Stages(policy.ChannelAPI, deps), store, dispatcher)

	engine := gin.New()
	if errProxies := engine.SetTrustedProxies(appCfg.Server.TrustedProxies); errProxies != nil {
		return fmt.Errorf("trusted proxies: %w", errProxies)
	}
	engine.Use(formhttp.Recovery(), formhttp.RequestLogger(), formhttp.BodyLimit(appCfg.Server.MaxBodyBytes))
	var health redis.UniversalClient
	if rdb != nil {
		health = rdb
	}
	forms.RegisterFormRoutes(engine, conn, publicPipeline, apiPipeline, health)

	srv := &http.Server{
		Addr:              appCfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errServe := make(chan error, 1)
	go func() {
		log.Infof("starting formgate on %s (config=%s)", appCfg.Server.Addr, config.ResolveConfigPath(cfg.ConfigPath))
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen, ok := <-errServe:
		if ok {
			return errListen
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Warn("http server shutdown")
	}
	stopWorkers()
	dispatcher.Wait()
	log.Info("formgate stopped")
	return nil
}

// buildPolicyDeps selects the counter backends. Redis and memory keep
// rate limits and duplicate records out of the database; the database
// backend is purged by the retention cleaner, and memory state is pruned
// on the same schedule.
func buildPolicyDeps(conn *gorm.DB, rdb *redis.Client, cfg config.Config) (policy.Deps, *retention.Cleaner) {
	key := cfg.Duplicate.FingerprintKey
	if key == "" {
		key = cfg.JWT.Secret
	}
	if key == "" {
		log.Warn("duplicate.fingerprint_key is empty; using a built-in key")
		key = fallbackFingerprintKey
	}

	store := submission.NewStore(conn)
	deps := policy.Deps{
		Premium:       premium.NewDBChecker(conn),
		Verifier:      botcheck.New(cfg.BotCheck.Endpoint, cfg.BotCheck.Timeout),
		Counter:       store,
		Fingerprinter: duplicate.NewFingerprinter(key),
	}
	cleaner := retention.NewCleaner(conn, cfg.Retention)

	backend := cfg.CounterBackend()
	if backend == config.CounterBackendRedis && rdb == nil {
		log.Warn("counters.backend is redis but no redis client is available; using the database")
		backend = config.CounterBackendDatabase
	}
	switch backend {
	case config.CounterBackendRedis:
		deps.Limiter = ratelimit.NewRedisLimiter(rdb, cfg.Redis.KeyPrefix)
		deps.Duplicates = duplicate.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	case config.CounterBackendMemory:
		memLimiter := ratelimit.NewMemoryLimiter(nil)
		memDuplicates := duplicate.NewMemoryStore(nil)
		deps.Limiter = memLimiter
		deps.Duplicates = memDuplicates
		cleaner.Track("rate limit", retention.PurgeFunc(func(context.Context, time.Time) (int64, error) {
			return int64(memLimiter.Prune()), nil
		}))
		cleaner.Track("duplicate", retention.PurgeFunc(func(context.Context, time.Time) (int64, error) {
			return int64(memDuplicates.Prune()), nil
		}))
	default:
		dbLimiter := ratelimit.NewDBLimiter(conn)
		dbDuplicates := duplicate.NewDBStore(conn)
		deps.Limiter = dbLimiter
		deps.Duplicates = dbDuplicates
		cleaner.Track("rate limit", dbLimiter)
		cleaner.Track("duplicate", dbDuplicates)
	}
	log.WithField("backend", backend).Debug("counters backend selected")
	return deps, cleaner
}

func openDatabase(cfg config.AppConfig) (*gorm.DB, config.Config, error) {
	appCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return nil, config.Config{}, err
	}
	conn, err := db.Open(appCfg.Database.DSN)
	if err != nil {
		return nil, config.Config{}, err
	}
	return conn, appCfg, nil
}

// nowUTC returns the current UTC time.
func nowUTC() time.Time { return time.Now().UTC() }
