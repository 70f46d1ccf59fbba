// Package refcodec 负责存储引用 (Stored Reference) 的编解码。
//
// 新格式为紧凑的 "bucket:path"；旧数据里存的是完整的 public URL
// (…/storage/v1/object/public/<bucket>/<path>)，这里继续兼容。
// 所有函数都是纯函数：不做 I/O，不 panic。
package refcodec

import (
	"net/url"
	"regexp"
	"strings"

	"mediaref/pkg/types"
)

// Separator 是 Composite 格式中 bucket 与 path 之间的分隔符
const Separator = ":"

// legacyPattern 匹配旧版 public URL 的路径部分
// 注意：不锚定开头，path 捕获是贪婪的 (包含后续所有的 "/")
var legacyPattern = regexp.MustCompile(`/storage/v1/object/public/([^/]+)/(.+)`)

// Encode 生成 "bucket:path" 格式的引用
// 前置条件：bucket 不能包含冒号 (这里不做运行时检查)
func Encode(bucket, path string) string {
	return bucket + Separator + path
}

// Decode 把存储引用拆成 (bucket, path)
// 返回 false 表示"无法识别"，调用方应把原字符串视为可直接使用的 URL
func Decode(ref string) (types.Location, bool) {
	if ref == "" {
		return types.Location{}, false
	}

	// 1. Composite 格式: 只按第一个冒号切分，path 里的冒号原样保留
	if strings.Contains(ref, Separator) && !strings.HasPrefix(ref, "http") {
		bucket, path, _ := strings.Cut(ref, Separator)
		return types.Location{Bucket: bucket, Path: path}, true
	}

	// 2. Legacy 格式: 完整的 public URL
	return decodeLegacyURL(ref)
}

func decodeLegacyURL(raw string) (types.Location, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		// 不是合法的绝对 URL
		return types.Location{}, false
	}

	m := legacyPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return types.Location{}, false
	}
	return types.Location{Bucket: m[1], Path: m[2]}, true
}

// IsComposite 判断引用是否已经是新版 "bucket:path" 格式
func IsComposite(ref string) bool {
	return ref != "" && strings.Contains(ref, Separator) && !strings.HasPrefix(ref, "http")
}

// Normalize 把任意可识别的引用转换为 Composite 格式
// 无法识别的引用原样返回 (第二个返回值为 false)
func Normalize(ref string) (string, bool) {
	loc, ok := Decode(ref)
	if !ok {
		return ref, false
	}
	return Encode(loc.Bucket, loc.Path), true
}
