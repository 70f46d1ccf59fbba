package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.mref -> ~/.mref
		viper.AddConfigPath(".")
		viper.AddConfigPath(".mref")
		viper.AddConfigPath(filepath.Join(home, ".mref"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (MREF_STORAGE_TYPE, MREF_CACHE_REDIS_URL 等)
	viper.SetEnvPrefix("MREF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错 (可能全靠环境变量)；格式错误才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	wd, _ := os.Getwd()
	root := filepath.Join(wd, ".mref")

	// 存储默认值
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(root, "objects"))
	viper.SetDefault("storage.base_url", "http://localhost:8081")
	viper.SetDefault("storage.signing_key", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.verify_exists", true)
	viper.SetDefault("storage.s3.ensure_buckets", false)

	// 解析器
	viper.SetDefault("resolver.ttl", time.Hour)
	viper.SetDefault("resolver.sign_timeout", 10*time.Second)
	viper.SetDefault("resolver.max_concurrency", 8)

	// 签名缓存 (默认关闭)
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl_fraction", 0.5)

	// 数据库默认值
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", filepath.Join(root, "mref.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 服务
	viper.SetDefault("server.grpc_addr", ":8080")
	viper.SetDefault("server.http_addr", ":8081")

	// 日志
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
}
