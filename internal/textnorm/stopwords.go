package textnorm

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suPer8Hu/mood-chat/internal/logger"
)

// corpusEntry is the path of the English list inside the NLTK corpus archive.
const corpusEntry = "stopwords/english"

// maxDownloadSize bounds the corpus download; larger bodies are rejected.
const maxDownloadSize = 8 * 1024 * 1024

// LoadStopwords reads the English stopword list from path. When the file is
// missing, the corpus archive is downloaded from url and the list is cached at
// path before reading it.
func LoadStopwords(ctx context.Context, log *logger.Logger, client *http.Client, path, url string) ([]string, error) {
	words, err := readStopwords(path)
	if err == nil {
		return words, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	log.Warn("stopwords not found locally, downloading", "path", path, "url", url)
	raw, err := downloadStopwords(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("stopwords download: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("stopwords cache dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("stopwords cache: %w", err)
	}
	return parseStopwords(bytes.NewReader(raw))
}

func readStopwords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseStopwords(f)
}

func parseStopwords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" {
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("stopwords: empty list")
	}
	return out, nil
}

// downloadStopwords accepts either the zipped NLTK corpus or a plain list.
func downloadStopwords(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDownloadSize {
		return nil, fmt.Errorf("download exceeds %d bytes", maxDownloadSize)
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		return body, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != corpusEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", corpusEntry)
}
