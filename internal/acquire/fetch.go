package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const chunkSize = 32 * 1024

const userAgent = "andrust/1.0"

// Fetch streams url into dest chunk by chunk, calling progress after every
// chunk written. Parent directories are created. On failure the partially
// written file is left in place.
func Fetch(ctx context.Context, client *http.Client, url, dest string, progress ProgressFunc) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	fail := func(err error) (int64, error) {
		return 0, &DownloadError{URL: url, Dest: dest, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fail(fmt.Errorf("prepare download destination: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("unexpected status %s", resp.Status))
	}

	out, err := os.Create(dest)
	if err != nil {
		return fail(fmt.Errorf("create file: %w", err))
	}

	written, err := copyChunks(out, resp.Body, resp.ContentLength, progress)
	if err != nil {
		out.Close()
		return 0, &DownloadError{URL: url, Dest: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return fail(fmt.Errorf("close file: %w", err))
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fail(fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength))
	}
	return written, nil
}

func copyChunks(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write chunk: %w", werr)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read body: %w", rerr)
		}
	}
}
