package commands

import (
	"fmt"
	"os"

	"mediaref/pkg/app"
	"mediaref/pkg/config"
	"mediaref/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// offlineAnnotation 标记不需要初始化 App 的命令 (纯编解码)
const offlineAnnotation = "mref/offline"

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	MREF *app.App
	Log  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "mref",
	Short:         "mref: media storage references and signed URLs",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Log = logger.New(viper.GetString("log.level"), viper.GetString("log.file"))

		if !needsApp(cmd) {
			return nil
		}
		// 测试可能已经注入了 App
		if MREF != nil {
			return nil
		}

		var err error
		MREF, err = app.NewApp(cmd.Context(), Log)
		if err != nil {
			return fmt.Errorf("failed to initialize mref: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if Log != nil {
			_ = Log.Sync()
		}
		return nil
	},
}

// needsApp 判断命令是否依赖存储/数据库
func needsApp(cmd *cobra.Command) bool {
	if _, ok := cmd.Annotations[offlineAnnotation]; ok {
		return false
	}
	// resolve --remote 交给服务端解析
	if f := cmd.Flags().Lookup("remote"); f != nil && f.Value.String() != "" {
		return false
	}
	return true
}

// Execute 是入口
func Execute() error {
	defer func() {
		if MREF != nil {
			_ = MREF.Close()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mref/config.yaml)")

	// 2. 常用配置项也可以用参数覆盖
	rootCmd.PersistentFlags().String("storage-path", "", "Directory to store objects (disk backend)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	for key, flag := range map[string]string{
		"storage.path": "storage-path",
		"log.level":    "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
