// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"mediaref/pkg/media"
	"mediaref/pkg/meta"
	"mediaref/pkg/metrics"
	"mediaref/pkg/resolver"
	"mediaref/pkg/storage"
	"mediaref/pkg/storage/cache"
	"mediaref/pkg/storage/disk"
	"mediaref/pkg/storage/s3"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务，由 Viper 配置驱动，但不知道具体的 CLI 命令或 RPC
type App struct {
	Log        *zap.Logger
	Store      storage.Backend
	Disk       *disk.Adapter // 仅在 storage.type=disk 时非空，HTTP 层用它校验签名
	Signer     storage.Signer
	Resolver   *resolver.Resolver
	Registry   *prometheus.Registry
	Metrics    *metrics.ResolverMetrics
	DB         *meta.DB
	Repository *meta.Repository
	Media      *media.Service

	closers []func() error
}

// NewApp 是工厂函数，负责组装这一台机器
func NewApp(ctx context.Context, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Log: log}

	// 1. 存储层
	store, err := initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Store = store
	if d, ok := store.(*disk.Adapter); ok {
		a.Disk = d
	}

	// 2. 签名器 (可选 Redis 缓存装饰)
	a.Signer = store
	if viper.GetBool("cache.enabled") {
		cached, err := cache.NewCachedSigner(store, cache.Config{
			RedisURL: viper.GetString("cache.redis_url"),
			Fraction: viper.GetFloat64("cache.ttl_fraction"),
			Logger:   log.Named("cache"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init signed url cache: %w", err)
		}
		a.Signer = cached
		a.closers = append(a.closers, cached.Close)
	}

	// 3. 解析器 + 观测
	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.NewResolverMetrics(a.Registry, media.Buckets(media.DefaultPolicies)...)
	a.Resolver = resolver.New(a.Signer,
		resolver.WithTTL(viper.GetDuration("resolver.ttl")),
		resolver.WithSignTimeout(viper.GetDuration("resolver.sign_timeout")),
		resolver.WithMaxConcurrency(viper.GetInt("resolver.max_concurrency")),
		resolver.WithObserver(resolver.Multi(resolver.LogObserver(log.Named("resolver")), a.Metrics)),
	)

	// 4. 元数据库
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("database.driver"),
		DSN:      viper.GetString("database.dsn"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		Debug:    viper.GetBool("database.debug"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init metadata db: %w", err)
	}
	a.DB = db
	a.Repository = meta.NewRepository(db)
	a.closers = append(a.closers, db.Close)

	// 5. 业务服务
	a.Media = media.NewService(a.Store, a.Repository, a.Resolver, log.Named("media"))

	return a, nil
}

// initStore 根据 storage.type 选择存储后端
func initStore(ctx context.Context) (storage.Backend, error) {
	switch t := viper.GetString("storage.type"); t {
	case "disk", "":
		path := viper.GetString("storage.path")
		if path == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		return disk.NewAdapter(disk.Config{
			Root:       path,
			BaseURL:    viper.GetString("storage.base_url"),
			SigningKey: viper.GetString("storage.signing_key"),
		})

	case "s3":
		region := viper.GetString("storage.s3.region")
		if region == "" {
			return nil, fmt.Errorf("s3 region is required")
		}
		adapter, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          region,
			AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
			SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
			VerifyExists:    viper.GetBool("storage.s3.verify_exists"),
		})
		if err != nil {
			return nil, err
		}
		if viper.GetBool("storage.s3.ensure_buckets") {
			if err := adapter.EnsureBuckets(ctx, media.Buckets(media.DefaultPolicies)...); err != nil {
				return nil, err
			}
		}
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}
}

// Close 释放所有持有的连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
