// Package upload moves captured media to object storage. Each file is
// written through a short-lived URL issued by the API; the result is the
// stable URL the listing will reference.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/capture"
	"github.com/bazarteer/bazaar/internal/metrics"
)

// Storage issues write URLs and accepts the bytes.
type Storage interface {
	UploadURL(ctx context.Context, filename string) (api.UploadTarget, error)
	PutBlob(ctx context.Context, uploadURL, contentType string, data []byte) error
}

// Asset is one uploaded media unit.
type Asset struct {
	RemoteURL   string
	Filename    string
	ContentType string
	Size        int
}

// Options configures an Uploader.
type Options struct {
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	// NewID generates the unique part of remote filenames. Defaults to a
	// random UUID.
	NewID func() string
}

// Uploader uploads media.
type Uploader struct {
	storage     Storage
	concurrency int
	log         *zap.Logger
	metrics     *metrics.Metrics
	newID       func() string
}

// New returns an Uploader writing through storage.
func New(storage Storage, opts Options) *Uploader {
	n := opts.Concurrency
	if n <= 0 {
		n = 4
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Uploader{storage: storage, concurrency: n, log: log, metrics: opts.Metrics, newID: newID}
}

// unit is one file to upload.
type unit struct {
	path     string
	filename string
}

// Upload uploads every file of m. Assets are returned in selection order;
// if any unit fails the whole call fails and no assets are returned.
func (u *Uploader) Upload(ctx context.Context, m capture.Media) ([]Asset, error) {
	units, err := u.plan(m)
	if err != nil {
		return nil, err
	}
	if len(units) == 1 {
		a, err := u.uploadOne(ctx, units[0])
		if err != nil {
			return nil, err
		}
		return []Asset{a}, nil
	}
	return u.uploadAll(ctx, units)
}

// plan assigns remote filenames: photo_<id>.<ext>, video_<id>.<ext> and
// gallery_<id>_<index>.<ext>.
func (u *Uploader) plan(m capture.Media) ([]unit, error) {
	id := u.newID()
	switch m.Kind {
	case capture.KindPhoto:
		return []unit{{path: m.Path, filename: "photo_" + id + extOr(m.Path, ".jpg")}}, nil
	case capture.KindVideo:
		return []unit{{path: m.Path, filename: "video_" + id + extOr(m.Path, ".mp4")}}, nil
	case capture.KindGallery:
		if len(m.Paths) == 0 {
			return nil, errors.New("gallery has no files")
		}
		units := make([]unit, len(m.Paths))
		for i, p := range m.Paths {
			units[i] = unit{path: p, filename: fmt.Sprintf("gallery_%s_%d%s", id, i, extOr(p, ".jpg"))}
		}
		return units, nil
	default:
		return nil, fmt.Errorf("unknown media kind %q", m.Kind)
	}
}

func (u *Uploader) uploadAll(ctx context.Context, units []unit) ([]Asset, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(u.concurrency, ants.WithPanicHandler(func(p any) {
		u.log.Error("upload worker panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("start upload pool: %w", err)
	}
	defer pool.Release()

	assets := make([]Asset, len(units))
	done := make([]bool, len(units))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, un := range units {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			a, err := u.uploadOne(ctx, un)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			assets[i] = a
			done[i] = true
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("schedule upload of %s: %w", un.path, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for i, ok := range done {
		if !ok {
			return nil, &Error{Stage: StageTransfer, Path: units[i].path, Err: errors.New("upload did not complete")}
		}
	}
	return assets, nil
}

// uploadOne requests a write URL, reads the file and transfers it.
func (u *Uploader) uploadOne(ctx context.Context, un unit) (Asset, error) {
	path, err := homedir.Expand(un.path)
	if err != nil {
		return Asset{}, &Error{Stage: StageRead, Path: un.path, Err: err}
	}

	target, err := u.storage.UploadURL(ctx, un.filename)
	if err != nil {
		u.metrics.ObserveUpload(false, 0)
		return Asset{}, newError(StageRequestURL, un.path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.metrics.ObserveUpload(false, 0)
		return Asset{}, &Error{Stage: StageRead, Path: un.path, Err: err}
	}
	contentType := ContentType(path, data)

	if err := u.storage.PutBlob(ctx, target.UploadURL, contentType, data); err != nil {
		u.metrics.ObserveUpload(false, 0)
		return Asset{}, newError(StageTransfer, un.path, err)
	}
	u.metrics.ObserveUpload(true, len(data))
	u.log.Info("media uploaded",
		zap.String("file", un.filename),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)))

	return Asset{RemoteURL: target.BlobURL, Filename: un.filename, ContentType: contentType, Size: len(data)}, nil
}

// ContentType reports the media type of a file, by extension first and by
// sniffing its leading bytes otherwise.
func ContentType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}

// Go's built-in table has no video types.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func extOr(path, fallback string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" || len(ext) > 6 {
		return fallback
	}
	return ext
}
