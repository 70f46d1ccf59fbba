package disk

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	store, err := NewAdapter(Config{
		Root:       t.TempDir(),
		BaseURL:    "http://localhost:8081/",
		SigningKey: "test-secret",
	})
	require.NoError(t, err)
	return store
}

func TestDiskAdapter(t *testing.T) {
	store := newTestAdapter(t)
	ctx := context.Background()
	loc := types.Location{Bucket: "photos", Path: "u1/a.png"}

	// 1. 测试 Put
	err := store.Put(ctx, loc, strings.NewReader("hello world"), 11, "image/png")
	require.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘: root/photos/u1/a.png
	_, err = os.Stat(filepath.Join(store.rootPath, "photos", "u1", "a.png"))
	assert.NoError(t, err, "文件应该存在于 bucket 目录中")

	// 2. 测试 Has
	exists, err := store.Has(ctx, loc)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, types.Location{Bucket: "photos", Path: "missing.png"})
	assert.NoError(t, err)
	assert.False(t, exists)

	// 3. 测试 Get
	reader, err := store.Get(ctx, loc)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))

	_, err = store.Get(ctx, types.Location{Bucket: "photos", Path: "nope"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiskAdapter_RejectsTraversal(t *testing.T) {
	store := newTestAdapter(t)
	ctx := context.Background()

	err := store.Put(ctx, types.Location{Bucket: "photos", Path: "../../etc/passwd"}, strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Put(ctx, types.Location{Bucket: "a/b", Path: "x"}, strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiskAdapter_SignAndVerify(t *testing.T) {
	store := newTestAdapter(t)
	ctx := context.Background()
	loc := types.Location{Bucket: "videos", Path: "u1/123:456 clip.mp4"}
	require.NoError(t, store.Put(ctx, loc, strings.NewReader("v"), 1, "video/mp4"))

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	signed, err := store.SignURL(ctx, loc, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "http://localhost:8081/objects/videos/u1/"), signed)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/objects/videos/u1/123:456 clip.mp4", u.Path)
	expires := u.Query().Get("expires")
	sig := u.Query().Get("sig")
	assert.Equal(t, "1700003600", expires)

	// 1. 合法签名
	assert.NoError(t, store.Verify(loc, expires, sig))

	// 2. 篡改路径
	assert.ErrorIs(t, store.Verify(types.Location{Bucket: "videos", Path: "u1/other.mp4"}, expires, sig), storage.ErrBadSignature)

	// 3. 篡改签名
	assert.ErrorIs(t, store.Verify(loc, expires, "zz"), storage.ErrBadSignature)

	// 4. 过期
	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.ErrorIs(t, store.Verify(loc, expires, sig), storage.ErrBadSignature)
}

func TestDiskAdapter_SignMissingObject(t *testing.T) {
	store := newTestAdapter(t)

	_, err := store.SignURL(context.Background(), types.Location{Bucket: "photos", Path: "ghost.png"}, time.Hour)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.SignURL(ctx, types.Location{Bucket: "photos", Path: "ghost.png"}, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
