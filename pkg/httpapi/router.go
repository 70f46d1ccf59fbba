// Package httpapi 暴露解析能力的 HTTP 版本，并为磁盘后端提供签名对象下载。
package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MaxBatchSize 单次 POST /v1/resolve 允许的最大引用数
const MaxBatchSize = 1000

// ViewerHeader 携带调用方身份，应由前置的认证网关写入；缺省为匿名
const ViewerHeader = "X-Viewer-ID"

// Resolver 是路由依赖的解析能力 (*media.Service 满足它)
// 私有媒体只为其所有者签名，其余调用方拿到原引用
type Resolver interface {
	ResolveFor(ctx context.Context, viewerID string, refs []string) []string
}

// ObjectServer 校验签名并读取对象 (disk.Adapter 满足它)
type ObjectServer interface {
	Verify(loc types.Location, expires, sig string) error
	Get(ctx context.Context, loc types.Location) (io.ReadCloser, error)
}

type Options struct {
	Resolver Resolver
	Objects  ObjectServer        // 为 nil 时不注册 /objects 路由
	Gatherer prometheus.Gatherer // 为 nil 时不注册 /metrics
	Logger   *zap.Logger
}

type handler struct {
	resolver Resolver
	objects  ObjectServer
	log      *zap.Logger
}

type batchRequest struct {
	Refs []*string `json:"refs" binding:"required"`
}

type batchResponse struct {
	URLs []string `json:"urls"`
}

// NewRouter 组装 gin 引擎
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{resolver: opts.Resolver, objects: opts.Objects, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.GET("/resolve", h.resolveOne)
	v1.POST("/resolve", h.resolveBatch)

	if opts.Objects != nil {
		r.GET("/objects/:bucket/*path", h.serveObject)
	}
	return r
}

func (h *handler) resolveOne(c *gin.Context) {
	ref := c.Query("ref")
	urls := h.resolver.ResolveFor(c.Request.Context(), c.GetHeader(ViewerHeader), []string{ref})
	c.JSON(http.StatusOK, gin.H{"ref": ref, "url": urls[0]})
}

func (h *handler) resolveBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "message": err.Error()})
		return
	}
	if len(req.Refs) > MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"code": "batch_too_large"})
		return
	}

	// null 元素视为空引用
	refs := make([]string, len(req.Refs))
	for i, r := range req.Refs {
		if r != nil {
			refs[i] = *r
		}
	}
	c.JSON(http.StatusOK, batchResponse{URLs: h.resolver.ResolveFor(c.Request.Context(), c.GetHeader(ViewerHeader), refs)})
}

func (h *handler) serveObject(c *gin.Context) {
	loc := types.Location{
		Bucket: c.Param("bucket"),
		Path:   strings.TrimPrefix(c.Param("path"), "/"),
	}
	if loc.Path == "" {
		c.Status(http.StatusNotFound)
		return
	}

	if err := h.objects.Verify(loc, c.Query("expires"), c.Query("sig")); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"code": "bad_signature"})
		return
	}

	rc, err := h.objects.Get(c.Request.Context(), loc)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		h.log.Error("failed to read object", zap.String("bucket", loc.Bucket), zap.String("path", loc.Path), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(loc.Path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, ct, rc, nil)
}

// requestLogger 记录每个请求的状态码与耗时
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP Request", fields...)
		default:
			log.Debug("HTTP Request", fields...)
		}
	}
}
