package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义忽略规则所在的文件
const FileName = ".mrefignore"

// Matcher 判断批量上传时某个文件是否应该跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 批量上传的根目录 (用于查找 .mrefignore 文件)
func NewMatcher(rootPath string) (*Matcher, error) {
	// 1. 默认规则，强制生效
	defaultRules := []string{
		// --- 元数据目录 ---
		".mref",
		".git",

		// --- 安全与配置 ---
		"config.yaml", // 防止 S3 Secret Key 被当成媒体上传
		".env",
		FileName,

		// --- 常见垃圾文件 ---
		".DS_Store", // macOS
		"Thumbs.db", // Windows
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查用户是否有 .mrefignore 文件
	ignoreFilePath := filepath.Join(rootPath, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 文件内容与默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于根目录的路径 (例如 "album/a.jpg")
// 返回: true 表示应该跳过
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
