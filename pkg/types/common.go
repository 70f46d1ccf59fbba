// pkg/types/common.go
package types

import "strings"

// Location 是一个存储引用解码后的结果 (Bucket + 对象 Key)
// 这是一个"值对象"，创建后不应再修改。
type Location struct {
	Bucket string
	Path   string
}

func (l Location) String() string { return l.Bucket + "/" + l.Path }

// IsZero 判断是否为空位置
func (l Location) IsZero() bool { return l.Bucket == "" && l.Path == "" }

// MediaKind 区分上传的媒体类型，决定落到哪个 Bucket
type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
)

func (k MediaKind) String() string { return string(k) }

// ParseMediaKind 大小写不敏感地解析媒体类型
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPhoto:
		return KindPhoto, true
	case KindVideo:
		return KindVideo, true
	}
	return "", false
}
