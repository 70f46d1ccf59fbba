package meta

import (
	"time"

	"gorm.io/datatypes"
)

// MediaRecord 记录一次上传产生的媒体对象
// Ref 字段保存的是存储引用 ("bucket:path")，而不是某个会过期的 URL
type MediaRecord struct {
	// ID 是主键 (UUID)
	ID string `gorm:"primaryKey;type:varchar(36)"`

	OwnerID string `gorm:"index:idx_media_owner;type:varchar(64);not null"`
	Kind    string `gorm:"type:varchar(16);not null"`

	// Ref 是存储引用，读的时候再解析成签名 URL
	Ref string `gorm:"type:varchar(512);not null;index:idx_media_ref"`

	IsPublic    bool
	SizeBytes   int64
	ContentType string `gorm:"type:varchar(128)"`

	// Attrs 存放原始文件名等非结构化信息
	Attrs datatypes.JSON

	CreatedAt time.Time `gorm:"index:idx_media_owner"`
}

// TableName 强制指定表名
func (MediaRecord) TableName() string {
	return "media"
}
