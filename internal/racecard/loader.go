package racecard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/metrics"
	"github.com/KaramelBytes/keiba-ai/internal/sheet"
	"github.com/sirupsen/logrus"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBytes     = 16 << 20
)

// Loader fetches a race card from URL and falls back to FallbackPath on any
// fetch failure. Bundled is tried when FallbackPath cannot be read. A Loader
// must not be copied after first use.
type Loader struct {
	HTTPClient   *http.Client
	URL          string
	FallbackPath string
	// Bundled is the sample compiled into the binary, reported as BundledName.
	Bundled     []byte
	BundledName string
	Timeout     time.Duration
	MaxBytes    int64
	// CacheTTL keeps a loaded dataset for reuse; zero disables caching.
	CacheTTL time.Duration
	Log      logrus.FieldLogger

	mu       sync.Mutex
	cached   *Dataset
	cachedAt time.Time
	now      func() time.Time
}

// Load returns the remote dataset, or the local sample when the URL is unset
// or fails. It errors with KindDataUnavailable only when every source fails.
// Successful loads are reused for CacheTTL; failures are never cached.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil && l.clock().Sub(l.cachedAt) < l.CacheTTL {
		metrics.RecordDataLoad(metrics.SourceCached)
		return l.cached, nil
	}
	ds, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if l.CacheTTL > 0 {
		l.cached, l.cachedAt = ds, l.clock()
	}
	return ds, nil
}

// Invalidate drops the cached dataset.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

func (l *Loader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *Loader) load(ctx context.Context) (*Dataset, error) {
	var fetchErr error
	if l.URL != "" {
		ds, err := l.Fetch(ctx)
		if err == nil {
			metrics.RecordDataLoad(metrics.SourceRemote)
			return ds, nil
		}
		fetchErr = err
		l.logger().WithError(err).WithField("url", l.URL).Warn("remote race card unavailable, using local sample")
	}
	ds, err := l.local()
	if err != nil {
		metrics.RecordDataLoad(metrics.SourceFailed)
		if fetchErr != nil {
			err = fmt.Errorf("%v; %w", fetchErr, err)
		}
		return nil, apperr.New(apperr.KindDataUnavailable, "load race card", err)
	}
	metrics.RecordDataLoad(metrics.SourceFallback)
	ds.Fallback = l.URL != ""
	if fetchErr != nil {
		ds.Warnings = append([]string{"remote data unavailable, showing bundled sample: " + fetchErr.Error()}, ds.Warnings...)
	}
	return ds, nil
}

// Fetch downloads and parses the remote race card. Every failure is a KindFetch error.
func (l *Loader) Fetch(ctx context.Context) (*Dataset, error) {
	if l.URL == "" {
		return nil, apperr.Errorf(apperr.KindFetch, "fetch", "no data URL configured")
	}
	data, err := l.Download(ctx)
	if err != nil {
		return nil, err
	}
	t, err := sheet.Read(l.URL, data)
	if err != nil {
		return nil, apperr.New(apperr.KindFetch, "parse "+l.URL, err)
	}
	ds, err := Build(l.URL, t)
	if err != nil {
		return nil, apperr.New(apperr.KindFetch, "parse "+l.URL, err)
	}
	return ds, nil
}

// Download fetches the raw bytes at URL within the configured timeout.
func (l *Loader) Download(ctx context.Context) ([]byte, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindFetch, "build request", err)
	}
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindFetch, "GET "+l.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Errorf(apperr.KindFetch, "GET "+l.URL, "unexpected status %s", resp.Status)
	}
	limit := l.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, apperr.New(apperr.KindFetch, "read body", err)
	}
	if int64(len(data)) > limit {
		return nil, apperr.Errorf(apperr.KindFetch, "read body", "response exceeds %d bytes", limit)
	}
	return data, nil
}

func (l *Loader) local() (*Dataset, error) {
	var fileErr error
	if l.FallbackPath == "" {
		fileErr = fmt.Errorf("no local sample configured")
	} else {
		data, err := os.ReadFile(l.FallbackPath)
		if err == nil {
			return FromUpload(filepath.Base(l.FallbackPath), data)
		}
		fileErr = fmt.Errorf("read local sample: %w", err)
	}
	if len(l.Bundled) == 0 {
		return nil, fileErr
	}
	if l.FallbackPath != "" {
		l.logger().WithError(fileErr).Warn("local sample unreadable, using bundled copy")
	}
	name := l.BundledName
	if name == "" {
		name = "bundled"
	}
	return FromUpload(name, l.Bundled)
}

func (l *Loader) logger() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

// FromUpload parses an uploaded spreadsheet. Unreadable input is KindDataUnavailable.
func FromUpload(name string, data []byte) (*Dataset, error) {
	t, err := sheet.Read(name, data)
	if err != nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "read "+name, err)
	}
	ds, err := Build(name, t)
	if err != nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "read "+name, err)
	}
	return ds, nil
}
