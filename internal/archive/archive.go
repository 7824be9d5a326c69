// Package archive snapshots run directories to S3-compatible object
// storage before they are deleted. Snapshots are tar archives compressed
// with zstd, keyed by run directory name plus a random suffix so repeated
// snapshots of the same run never collide.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

const snapshotContentType = "application/zstd"

// Uploader is the slice of object storage the archiver needs. Satisfied
// by *Client; tests substitute a local implementation.
type Uploader interface {
	UploadFile(ctx context.Context, bucket, key, filePath, contentType string) error
}

// Client wraps a minio connection to an S3-compatible endpoint.
type Client struct {
	mc *minio.Client
}

// NewClient connects to an S3-compatible endpoint with static credentials.
func NewClient(endpoint, accessKey, secretKey string, useSSL bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	return &Client{mc: mc}, nil
}

// UploadFile puts a local file into the bucket under key.
func (c *Client) UploadFile(ctx context.Context, bucket, key, filePath, contentType string) error {
	_, err := c.mc.FPutObject(ctx, bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Archiver packs run directories and uploads them. It satisfies the
// run package's Archiver interface.
type Archiver struct {
	Uploader Uploader
	Bucket   string
	// Prefix is prepended to every object key, e.g. "snapshots/".
	Prefix string
	Logger *slog.Logger
}

// Snapshot packs runDir into a tar.zst and uploads it. Returns the
// object key the snapshot was stored under.
func (a *Archiver) Snapshot(ctx context.Context, runDir string) (string, error) {
	tmp, err := os.CreateTemp("", "vulntune-snapshot-*.tar.zst")
	if err != nil {
		return "", fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	err = Pack(runDir, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("packing %s: %w", runDir, err)
	}

	key := a.Prefix + filepath.Base(runDir) + "-" + uuid.NewString() + ".tar.zst"
	if err := a.Uploader.UploadFile(ctx, a.Bucket, key, tmpPath, snapshotContentType); err != nil {
		return "", fmt.Errorf("uploading snapshot %s: %w", key, err)
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("archived run", "dir", runDir, "bucket", a.Bucket, "key", key)
	return key, nil
}

// SnapshotAll snapshots several run directories concurrently. It stops
// on the first failure and returns the keys in the same order as dirs;
// on error the returned slice is nil.
func (a *Archiver) SnapshotAll(ctx context.Context, dirs []string) ([]string, error) {
	keys := make([]string, len(dirs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, dir := range dirs {
		g.Go(func() error {
			key, err := a.Snapshot(ctx, dir)
			if err != nil {
				return err
			}
			mu.Lock()
			keys[i] = key
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Pack writes dir as a zstd-compressed tar stream to w. Entry names are
// relative to dir's parent so extraction recreates the run directory.
func Pack(dir string, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	base := filepath.Dir(dir)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

// Unpack extracts a zstd-compressed tar stream into dir. Entries that
// would escape dir are rejected.
func Unpack(r io.Reader, dir string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		rel, err := filepath.Rel(dir, target)
		if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
			return fmt.Errorf("archive entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			_, err = io.Copy(f, tr)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
		}
	}
}
