package disk

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediaref/pkg/storage"
	"mediaref/pkg/types"
)

// Adapter 实现了 storage.Backend 接口
// 对象布局: <root>/<bucket>/<path>，签名 URL 由本服务的 /objects 路由负责校验
type Adapter struct {
	rootPath   string // 比如: /home/user/.mref/objects
	baseURL    string // 比如: http://localhost:8081
	signingKey []byte
	now        func() time.Time
}

// Config 用于初始化 Adapter
type Config struct {
	Root       string
	BaseURL    string
	SigningKey string // 为空时随机生成 (重启后旧 URL 失效)
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("disk root path is required")
	}
	// 确保根目录存在
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}

	return &Adapter{
		rootPath:   cfg.Root,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		signingKey: key,
		now:        time.Now,
	}, nil
}

// layout 返回对象对应的物理路径
// 拒绝任何试图逃出 root 的路径 (例如 "../../etc/passwd")
func (s *Adapter) layout(loc types.Location) (string, error) {
	if loc.Bucket == "" || loc.Path == "" || strings.ContainsAny(loc.Bucket, `/\`) {
		return "", fmt.Errorf("invalid location %q: %w", loc.String(), storage.ErrNotFound)
	}
	target := filepath.Join(s.rootPath, loc.Bucket, filepath.FromSlash(loc.Path))
	bucketRoot := filepath.Join(s.rootPath, loc.Bucket) + string(filepath.Separator)
	if !strings.HasPrefix(target, bucketRoot) {
		return "", fmt.Errorf("location %q escapes bucket: %w", loc.String(), storage.ErrNotFound)
	}
	return target, nil
}

func (s *Adapter) Put(ctx context.Context, loc types.Location, r io.Reader, size int64, contentType string) error {
	targetPath, err := s.layout(loc)
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到临时文件，然后 Rename，保证要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := io.Copy(tempFile, r); err != nil {
		tempFile.Close()
		return fmt.Errorf("disk put failed: %w", err)
	}
	tempFile.Close() // 必须先关闭才能 Rename

	// 3. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, loc types.Location) (io.ReadCloser, error) {
	targetPath, err := s.layout(loc)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, loc types.Location) (bool, error) {
	targetPath, err := s.layout(loc)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(targetPath)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// SignURL 生成形如 <base>/objects/<bucket>/<path>?expires=<unix>&sig=<hex> 的 URL
// 与托管存储的行为保持一致：对象不存在时返回 ErrNotFound
func (s *Adapter) SignURL(ctx context.Context, loc types.Location, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	exists, err := s.Has(ctx, loc)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("sign %s: %w", loc, storage.ErrNotFound)
	}

	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", s.signature(loc, expires))

	return s.baseURL + ObjectRoute + url.PathEscape(loc.Bucket) + "/" + escapePath(loc.Path) + "?" + q.Encode(), nil
}

// ObjectRoute 是 HTTP 层暴露磁盘对象的路由前缀
const ObjectRoute = "/objects/"

// Verify 校验 SignURL 生成的签名与过期时间
func (s *Adapter) Verify(loc types.Location, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return storage.ErrBadSignature
	}
	if s.now().Unix() > exp {
		return storage.ErrBadSignature
	}
	want, err := hex.DecodeString(s.signature(loc, expires))
	if err != nil {
		return storage.ErrBadSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(want, got) {
		return storage.ErrBadSignature
	}
	return nil
}

func (s *Adapter) signature(loc types.Location, expires string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(loc.Bucket + "\n" + loc.Path + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// escapePath 逐段转义，保留 "/" 分隔符
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
