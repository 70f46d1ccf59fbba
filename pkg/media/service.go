// Package media 负责上传与读取媒体对象：上传时生成存储引用并落库，
// 读取时把记录里的引用批量解析成签名 URL。
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"mediaref/pkg/meta"
	"mediaref/pkg/refcodec"
	"mediaref/pkg/resolver"
	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrUnknownKind     = errors.New("unknown media kind")
	ErrMissingOwner    = errors.New("owner id is required")
)

// Policy 定义某类媒体的存放位置与限制
type Policy struct {
	Bucket        string
	MaxBytes      int64
	ContentPrefix string // 例如 "image/"
}

// DefaultPolicies 照片 5MB，视频 10MB
var DefaultPolicies = map[types.MediaKind]Policy{
	types.KindPhoto: {Bucket: "photos", MaxBytes: 5 << 20, ContentPrefix: "image/"},
	types.KindVideo: {Bucket: "videos", MaxBytes: 10 << 20, ContentPrefix: "video/"},
}

// Buckets 返回策略里用到的全部 Bucket
func Buckets(policies map[types.MediaKind]Policy) []string {
	seen := map[string]bool{}
	var out []string
	for _, kind := range []types.MediaKind{types.KindPhoto, types.KindVideo} {
		if p, ok := policies[kind]; ok && !seen[p.Bucket] {
			seen[p.Bucket] = true
			out = append(out, p.Bucket)
		}
	}
	return out
}

// Service 组合对象存储、元数据仓库和解析器
type Service struct {
	store    storage.ObjectStore
	repo     *meta.Repository
	resolver *resolver.Resolver
	policies map[types.MediaKind]Policy
	log      *zap.Logger
	newID    func() string
}

func NewService(store storage.ObjectStore, repo *meta.Repository, r *resolver.Resolver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		repo:     repo,
		resolver: r,
		policies: DefaultPolicies,
		log:      log,
		newID:    uuid.NewString,
	}
}

// UploadRequest 描述一次上传
type UploadRequest struct {
	OwnerID     string
	Kind        types.MediaKind
	FileName    string
	ContentType string // 为空时按扩展名推断
	Size        int64  // < 0 表示未知
	Body        io.Reader
	Public      bool
}

// Upload 写入对象并记录其存储引用
// 对象 Key 形如 <owner>/<uuid>.<ext>，引用形如 photos:<owner>/<uuid>.<ext>
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*meta.MediaRecord, error) {
	// 1. 校验
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, ErrMissingOwner
	}
	policy, ok := s.policies[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if req.Size > policy.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, req.Size, policy.MaxBytes)
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(ext)
	}
	if !strings.HasPrefix(contentType, policy.ContentPrefix) {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedType, contentType, req.Kind)
	}

	// 2. 生成 Key 与引用
	id := s.newID()
	loc := types.Location{Bucket: policy.Bucket, Path: req.OwnerID + "/" + id + ext}
	ref := refcodec.Encode(loc.Bucket, loc.Path)

	// 3. 上传
	// S3 在明文 HTTP 下只接受可 Seek 的 Body (需要先算校验和再回放)
	body, size, err := seekableBody(req.Body, req.Size, policy.MaxBytes)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, loc, body, size, contentType); err != nil {
		return nil, fmt.Errorf("upload %s failed: %w", loc, err)
	}

	// 4. 落库
	attrs, _ := json.Marshal(map[string]string{"file_name": filepath.Base(req.FileName)})
	rec := &meta.MediaRecord{
		ID:          id,
		OwnerID:     req.OwnerID,
		Kind:        req.Kind.String(),
		Ref:         ref,
		IsPublic:    req.Public,
		SizeBytes:   size,
		ContentType: contentType,
		Attrs:       datatypes.JSON(attrs),
	}
	if err := s.repo.SaveMedia(ctx, rec); err != nil {
		// 对象已经上传成功，只是没有记录；留给后台清理
		s.log.Warn("media record not saved, object orphaned", zap.String("ref", ref), zap.Error(err))
		return nil, err
	}

	s.log.Info("media uploaded",
		zap.String("id", id),
		zap.String("ref", ref),
		zap.Int64("bytes", size),
	)
	return rec, nil
}

// Item 是一条带有可访问 URL 的媒体记录
type Item struct {
	Record meta.MediaRecord
	URL    string
}

// Gallery 列出 owner 的媒体并批量解析 URL
// viewer 与 owner 相同时包含私有媒体
func (s *Service) Gallery(ctx context.Context, ownerID, viewerID string, limit int) ([]Item, error) {
	recs, err := s.repo.ListByOwner(ctx, ownerID, ownerID == viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list media failed: %w", err)
	}

	refs := make([]string, len(recs))
	for i, rec := range recs {
		refs[i] = rec.Ref
	}
	urls := s.resolver.ResolveAll(ctx, refs)

	items := make([]Item, len(recs))
	for i, rec := range recs {
		items[i] = Item{Record: rec, URL: urls[i]}
	}
	return items, nil
}

// ResolveFor 以 viewerID 的身份批量解析引用，供对外的 gRPC / HTTP 接口使用
// 只有存在媒体记录、且公开或属于 viewer 的引用才会签名；其余可识别的引用按签名失败处理，
// 原样返回。viewerID 为空表示匿名访问。输出与输入等长同序，永不失败。
func (s *Service) ResolveFor(ctx context.Context, viewerID string, refs []string) []string {
	// 1. 归一化 (旧格式 URL -> bucket:path)，收集需要查询的引用
	keys := make([]string, len(refs))
	var lookup []string
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		if k, ok := refcodec.Normalize(ref); ok {
			keys[i] = k
			lookup = append(lookup, k)
		}
	}

	// 2. 查询访问权限；查询失败时全部拒绝
	allowed := make(map[string]bool, len(lookup))
	if len(lookup) > 0 {
		recs, err := s.repo.FindByRefs(ctx, lookup)
		if err != nil {
			s.log.Warn("media lookup failed, refusing to sign", zap.Int("refs", len(lookup)), zap.Error(err))
		}
		for _, rec := range recs {
			if rec.IsPublic || (viewerID != "" && rec.OwnerID == viewerID) {
				allowed[rec.Ref] = true
			}
		}
	}

	// 3. 被拒绝的引用不交给解析器 (空串不会触发签名)，之后填回原引用
	toSign := make([]string, len(refs))
	denied := make([]bool, len(refs))
	for i, ref := range refs {
		if keys[i] != "" && !allowed[keys[i]] {
			denied[i] = true
			continue
		}
		toSign[i] = ref
	}

	out := s.resolver.ResolveAll(ctx, toSign)
	for i := range out {
		if denied[i] {
			out[i] = refs[i]
		}
	}
	return out
}

// mediaTypes 补充标准库 mime 表里没有的音视频扩展名 (不依赖系统 mime.types)
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".heic": "image/heic",
}

// KindOf 按文件扩展名推断媒体类型，不是图片或视频时返回 false
func KindOf(fileName string) (types.MediaKind, bool) {
	ct := DetectContentType(filepath.Ext(fileName))
	for _, kind := range []types.MediaKind{types.KindPhoto, types.KindVideo} {
		if p, ok := DefaultPolicies[kind]; ok && ct != "" && strings.HasPrefix(ct, p.ContentPrefix) {
			return kind, true
		}
	}
	return "", false
}

// DetectContentType 按扩展名 (含 ".") 推断 Content-Type，未知时返回 ""
func DetectContentType(ext string) string {
	ext = strings.ToLower(ext)
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// seekableBody 把上传内容转换为可 Seek 的 Reader，并返回其长度
// 已知长度且底层支持 ReadAt (例如 *os.File) 时零拷贝；否则最多读入 max+1 字节判断是否超限
func seekableBody(r io.Reader, size, limit int64) (io.ReadSeeker, int64, error) {
	if ra, ok := r.(io.ReaderAt); ok && size >= 0 {
		return io.NewSectionReader(ra, 0, size), size, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, 0, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, limit)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
