package transcriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

type progressWriter struct {
	total      int64
	written    int64
	lastStep   int
	onProgress func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 && p.onProgress != nil {
		// Report in whole-percent steps.
		step := int(p.written * 100 / p.total)
		if step != p.lastStep {
			p.lastStep = step
			p.onProgress(float64(p.written) / float64(p.total))
		}
	}
	return len(b), nil
}

// DownloadModel fetches url into dest, reporting progress in [0, 1]. The
// file is written under a temporary name and renamed once complete.
func DownloadModel(ctx context.Context, url, dest string, onProgress func(float64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	pw := &progressWriter{total: resp.ContentLength, onProgress: onProgress}
	if _, err := io.Copy(f, io.TeeReader(resp.Body, pw)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if onProgress != nil {
		onProgress(1)
	}
	return os.Rename(tmp, dest)
}
