package models

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// baseURL hosts the ggml conversions of the whisper weights.
var baseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Approximate download sizes shown in the interactive menu.
var variantSizes = map[string]string{
	"tiny":   "~75 MB",
	"base":   "~142 MB",
	"small":  "~466 MB",
	"medium": "~1.5 GB",
	"large":  "~2.9 GB",
}

// DownloadWhisper fetches the preferred ggml file for variant into dir and
// returns its path. An existing non-empty file is kept. Progress is written
// to out.
func DownloadWhisper(ctx context.Context, variant, dir string, out io.Writer) (string, error) {
	if out == nil {
		out = io.Discard
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	name := Candidates(variant)[0]
	destPath := filepath.Join(dir, name)

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Whisper model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	url := baseURL + name
	fmt.Fprintf(out, "  Downloading %s from HuggingFace...\n", name)
	fmt.Fprintf(out, "  URL: %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading whisper model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  name,
	}
	written, err := io.Copy(pw, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return "", errors.New("download failed: empty response")
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}

// RunInteractiveDownload asks which variant to fetch and downloads it
// into dir.
func RunInteractiveDownload(ctx context.Context, in io.Reader, out io.Writer, dir string, variants []string) (string, error) {
	fmt.Fprintln(out, "=== Model Download ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Models will be downloaded to: %s\n", dir)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Which model would you like to download?")
	for i, v := range variants {
		fmt.Fprintf(out, "  [%d] %s (%s, %s)\n", i+1, v, Candidates(v)[0], variantSizes[v])
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Choice [1-%d]: ", len(variants))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading choice: %w", err)
	}
	choice := strings.TrimSpace(line)
	fmt.Fprintln(out)

	for i, v := range variants {
		if choice == fmt.Sprint(i+1) || choice == v {
			return DownloadWhisper(ctx, v, dir, out)
		}
	}
	return "", fmt.Errorf("invalid choice: %q (expected 1-%d or a variant name)", choice, len(variants))
}
