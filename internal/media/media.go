// Package media downloads chat attachments to local disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/hrbot/pkg/retry"
)

// ErrTooLarge is returned when a file exceeds the configured size limit.
var ErrTooLarge = errors.New("attachment too large")

// Source resolves a transport file id to a downloadable URL.
type Source interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, fileID string) (string, error)

func (f SourceFunc) FileURL(ctx context.Context, fileID string) (string, error) { return f(ctx, fileID) }

// Store saves attachments as <dir>/<kind>/<user>_<uuid><ext>.
type Store struct {
	dir      string
	maxBytes int64
	source   Source
	client   *http.Client
	retry    retry.Config
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func WithRetry(cfg retry.Config) Option {
	return func(s *Store) { s.retry = cfg }
}

func NewStore(dir string, maxBytes int64, src Source, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		dir:      dir,
		maxBytes: maxBytes,
		source:   src,
		client:   &http.Client{Timeout: 60 * time.Second},
		retry:    retry.DefaultConfig(),
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var defaultExt = map[string]string{
	"photo":    ".jpg",
	"voice":    ".ogg",
	"document": ".bin",
}

// extension picks the file extension from the original name, then the
// download URL, then the kind.
func extension(kind, fileName, rawURL string) string {
	if ext := strings.ToLower(filepath.Ext(fileName)); validExt(ext) {
		return ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); validExt(ext) {
			return ext
		}
	}
	if ext, ok := defaultExt[kind]; ok {
		return ext
	}
	return ".bin"
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Fetch downloads fileID and returns the stored path.
func (s *Store) Fetch(ctx context.Context, userID int64, kind, fileID, fileName string) (string, error) {
	if _, ok := defaultExt[kind]; !ok {
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
	rawURL, err := s.source.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	dir := filepath.Join(s.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	name := strconv.FormatInt(userID, 10) + "_" + uuid.NewString() + extension(kind, fileName, rawURL)
	dest := filepath.Join(dir, name)

	n, err := retry.Do(ctx, s.retry, func() (int64, error) {
		return s.download(ctx, rawURL, dest)
	})
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	s.logger.Debug("media stored", slog.Int64("user_id", userID), slog.String("kind", kind), slog.String("path", dest), slog.Int64("bytes", n))
	return dest, nil
}

// download writes one attempt to a temp file and renames it into place.
func (s *Store) download(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, retry.Retryable(fmt.Errorf("download: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download: status %d", resp.StatusCode)
		if retry.RetryableStatus(resp.StatusCode) {
			return 0, retry.Retryable(err)
		}
		return 0, err
	}
	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return 0, ErrTooLarge
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var body io.Reader = resp.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, retry.Retryable(fmt.Errorf("write file: %w", err))
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return 0, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("move file into place: %w", err)
	}
	return n, nil
}

// Remove deletes stored files. Missing files are not an error.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove media", slog.String("path", p), slog.Any("err", err))
		}
	}
}
