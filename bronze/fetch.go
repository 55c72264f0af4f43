package bronze

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// Fetched describes a completed body download: the temp file holding the raw
// bytes plus the validators the remote reported.
type Fetched struct {
	Path         string
	ETag         string
	LastModified string
	Checksum     string
}

// Fetcher retrieves a spec's raw artifact. FetchIfChanged returns (nil, nil)
// when the remote is unchanged relative to prev (change detection priority:
// ETag, Last-Modified, declared checksum URL). A nil prev always fetches.
type Fetcher interface {
	FetchIfChanged(ctx context.Context, spec Spec, prev *Meta, dir string) (*Fetched, error)
}

// HTTPFetcher fetches http(s) URLs with bounded retries. The client is
// injectable so tests can count round trips through a fake transport.
type HTTPFetcher struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration
	Logger  *log.Logger
}

// NewHTTPFetcher returns a fetcher with the default retry budget (3
// attempts, linear backoff from 500ms).
func NewHTTPFetcher(logger *log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 10 * time.Minute},
		Retries: 3,
		Backoff: 500 * time.Millisecond,
		Logger:  logger,
	}
}

// FetchIfChanged implements Fetcher.
func (f *HTTPFetcher) FetchIfChanged(ctx context.Context, spec Spec, prev *Meta, dir string) (*Fetched, error) {
	conditional := false
	etag, lastMod := "", ""
	if prev != nil {
		if spec.CheckETag && prev.ETag != "" {
			etag = prev.ETag
			conditional = true
		}
		if spec.CheckLastModified && prev.LastModified != "" {
			lastMod = prev.LastModified
			conditional = true
		}
		if !conditional && spec.ChecksumURL != "" && prev.Checksum != "" {
			remote, err := f.fetchChecksum(ctx, spec.ChecksumURL)
			if err != nil {
				return nil, err
			}
			if remote == prev.Checksum {
				return nil, nil
			}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= f.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * f.Backoff):
			}
			f.Logger.Printf("retrying %s (attempt %d/%d): %v", spec.URL, attempt, f.Retries, lastErr)
		}
		fetched, retriable, err := f.fetchOnce(ctx, spec, etag, lastMod, dir)
		if err == nil {
			return fetched, nil
		}
		if !retriable {
			return nil, err
		}
		lastErr = err
	}
	return nil, &bdk.DownloadError{URL: spec.URL, Attempts: f.Retries, Err: lastErr}
}

// fetchOnce performs one conditional GET. A nil error with nil Fetched means
// 304 Not Modified.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, spec Spec, etag, lastMod, dir string) (fetched *Fetched, retriable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "building request")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, "performing request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, false, nil
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, errors.Errorf("server error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, &bdk.DownloadError{URL: spec.URL, Attempts: 1,
			Err: errors.Errorf("unexpected status: %s", resp.Status)}
	}

	fetched, err = spoolBody(resp.Body, dir, spec)
	if err != nil {
		return nil, true, err
	}
	fetched.ETag = resp.Header.Get("ETag")
	fetched.LastModified = resp.Header.Get("Last-Modified")

	if spec.ChecksumURL != "" {
		declared, cerr := f.fetchChecksum(ctx, spec.ChecksumURL)
		if cerr != nil {
			os.Remove(fetched.Path)
			return nil, false, cerr
		}
		if declared != fetched.Checksum {
			os.Remove(fetched.Path)
			return nil, false, &bdk.ChecksumMismatchError{
				URL:  spec.URL,
				Algo: checksumAlgo(spec.ChecksumType),
				Want: declared,
				Got:  fetched.Checksum,
			}
		}
	}
	return fetched, false, nil
}

// spoolBody streams the body to a temp file in dir while hashing it.
func spoolBody(body io.Reader, dir string, spec Spec) (*Fetched, error) {
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating download temp file")
	}
	h := newChecksumHash(spec.ChecksumType)
	_, err = io.Copy(io.MultiWriter(tmp, h), body)
	cerr := tmp.Close()
	if err != nil || cerr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = cerr
		}
		return nil, errors.Wrap(err, "spooling body")
	}
	return &Fetched{
		Path:     tmp.Name(),
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func (f *HTTPFetcher) fetchChecksum(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.Retries; attempt++ {
		sum, err := f.fetchChecksumOnce(ctx, url)
		if err == nil {
			return sum, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * f.Backoff):
		}
	}
	return "", &bdk.DownloadError{URL: url, Attempts: f.Retries, Err: lastErr}
}

func (f *HTTPFetcher) fetchChecksumOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "building checksum request")
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching checksum")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status fetching checksum: %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", errors.Wrap(err, "reading checksum body")
	}
	return parseChecksum(string(b)), nil
}

func newChecksumHash(typ string) hash.Hash {
	if typ == "md5" {
		return md5.New()
	}
	return sha256.New()
}

func checksumAlgo(typ string) string {
	if typ == "md5" {
		return "md5"
	}
	return "sha256"
}
