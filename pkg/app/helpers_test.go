package app

import (
	"strings"

	"mediaref/pkg/media"
	"mediaref/pkg/types"
)

// mediaUpload 构造一个最小的照片上传请求
func mediaUpload(owner, name, body string) media.UploadRequest {
	return media.UploadRequest{
		OwnerID:  owner,
		Kind:     types.KindPhoto,
		FileName: name,
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
		Public:   true,
	}
}
