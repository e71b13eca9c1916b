// Package download performs outbound HTTP(S) file downloads on behalf of the
// content process, with hard bounds on redirects, size and idle time.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	// MaxRedirects caps the redirect chain; the scheme is re-validated on
	// every hop so a redirect cannot escape to file: or the like.
	MaxRedirects = 10
	// MaxBytes is the response-size ceiling.
	MaxBytes = 512 << 20
	// IdleTimeout aborts a connection that stops producing data.
	IdleTimeout = 30 * time.Second
)

var (
	// ErrSchemeNotAllowed rejects URLs that are not http or https.
	ErrSchemeNotAllowed = errors.New("download URL scheme must be http or https")
	// ErrTooManyRedirects rejects chains longer than MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrTooLarge rejects responses over the size ceiling.
	ErrTooLarge = errors.New("response exceeds size ceiling")
)

func schemeAllowed(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// Fetch downloads rawurl to destPath, streaming the body to disk. The file is
// written to a temporary sibling and renamed into place on success; any
// failure removes the partial file.
func Fetch(ctx context.Context, rawurl, destPath string) (int64, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return 0, fmt.Errorf("invalid download URL: %w", err)
	}
	if !u.IsAbs() || !schemeAllowed(u) {
		return 0, ErrSchemeNotAllowed
	}

	// The watchdog cancels the request context whenever no read progress is
	// made for IdleTimeout.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(IdleTimeout, cancel)
	defer watchdog.Stop()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return ErrTooManyRedirects
			}
			if !schemeAllowed(req.URL) {
				return ErrSchemeNotAllowed
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("download failed with status %s", resp.Status)
	}
	if resp.ContentLength > MaxBytes {
		return 0, ErrTooLarge
	}

	tmpPath := destPath + ".part"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	written, err := copyBounded(out, resp.Body, watchdog)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("Failed to remove partial download '%s': %v", tmpPath, removeErr)
		}
		return 0, err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	log.Printf("Downloaded %d bytes to %s.", written, destPath)
	return written, nil
}

// copyBounded streams body to out. The synchronous read-then-write loop is
// the backpressure: upstream reads pause while the disk write is in flight.
// Each successful read rearms the idle watchdog.
func copyBounded(out io.Writer, body io.Reader, watchdog *time.Timer) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			watchdog.Reset(IdleTimeout)
			written += int64(n)
			if written > MaxBytes {
				return written, ErrTooLarge
			}
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("download interrupted: %w", readErr)
		}
	}
}
