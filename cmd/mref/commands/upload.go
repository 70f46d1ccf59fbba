// cmd/mref/commands/upload.go

package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"mediaref/pkg/ignore"
	"mediaref/pkg/media"
	"mediaref/pkg/meta"
	"mediaref/pkg/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	uploadOwner  string
	uploadKind   string
	uploadPublic bool
	uploadJobs   int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file|dir>",
	Short: "Upload media files and print their stored references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if MREF == nil {
			return fmt.Errorf("app not initialized")
		}
		if uploadOwner == "" {
			return fmt.Errorf("--owner is required")
		}
		if uploadJobs < 1 {
			return fmt.Errorf("--jobs must be at least 1, got %d", uploadJobs)
		}
		var kind types.MediaKind
		if uploadKind != "" {
			k, ok := types.ParseMediaKind(uploadKind)
			if !ok {
				return fmt.Errorf("unknown kind %q (photo|video)", uploadKind)
			}
			kind = k
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		target := args[0]
		start := time.Now()

		// 1. 收集文件
		files, isDir, err := collectFiles(target)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "⚠️  No files to upload.")
			return nil
		}

		// 2. 并发上传
		var (
			mu       sync.Mutex
			uploaded int64
			skipped  int64
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uploadJobs)
		for _, path := range files {
			path := path
			g.Go(func() error {
				k, ok := media.KindOf(path)
				switch {
				case !isDir && kind != "":
					// 单文件：以显式指定的类型为准，交给服务做校验
					k = kind
				case !ok, kind != "" && k != kind:
					// 目录模式下跳过非媒体文件 (或类型不符的文件)
					atomic.AddInt64(&skipped, 1)
					Log.Debug("skip file", zap.String("path", path))
					return nil
				}
				rec, err := uploadFile(gctx, path, k)
				if err != nil {
					return fmt.Errorf("failed to upload %s: %w", path, err)
				}
				atomic.AddInt64(&uploaded, 1)

				mu.Lock()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, rec.Ref)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Uploaded %d files (%d skipped) in %s\n", uploaded, skipped, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// collectFiles 展开目录，并应用 .mrefignore 规则
func collectFiles(target string) ([]string, bool, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return []string{target}, false, nil
	}

	matcher, err := ignore.NewMatcher(target)
	if err != nil {
		return nil, true, err
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(target, path)
		if err != nil || rel == "." {
			return err
		}
		if matcher.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, true, fmt.Errorf("walk failed: %w", err)
	}
	return files, true, nil
}

func uploadFile(ctx context.Context, path string, kind types.MediaKind) (*meta.MediaRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return MREF.Media.Upload(ctx, media.UploadRequest{
		OwnerID:  uploadOwner,
		Kind:     kind,
		FileName: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
		Public:   uploadPublic,
	})
}

func init() {
	uploadCmd.Flags().StringVar(&uploadOwner, "owner", "", "owner id of the uploaded media")
	uploadCmd.Flags().StringVar(&uploadKind, "kind", "", "media kind: photo|video (default: infer from extension)")
	uploadCmd.Flags().BoolVar(&uploadPublic, "public", false, "make the media visible to other users")
	uploadCmd.Flags().IntVarP(&uploadJobs, "jobs", "j", 4, "parallel uploads")
	rootCmd.AddCommand(uploadCmd)
}
