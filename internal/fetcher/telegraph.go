// Package fetcher pulls content down from telegra.ph: parsing album
// pages into manifests and downloading the images they reference.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/pkg/logger"
	"golang.org/x/net/html"
)

var log = logger.Get("Fetcher")

const telegraphBaseURL = "https://telegra.ph"

var ErrNoTitle = errors.New("album page has no title element")

type (
	// Config tunes the shared HTTP client used for page fetches and
	// image downloads.
	Config struct {
		ConnectTimeoutSecs int    `yaml:"connect_timeout_secs" env:"HTTP_CONNECT_TIMEOUT_SECS" env-default:"10"`
		TimeoutSecs        int    `yaml:"timeout_secs" env:"HTTP_TIMEOUT_SECS" env-default:"60"`
		UserAgent          string `yaml:"user_agent" env:"HTTP_USER_AGENT" env-default:"telegrab/1.0"`
	}

	// DownloadResult is the accounting record for one completed
	// download.
	DownloadResult struct {
		URL      string        `json:"url"`
		Size     int64         `json:"size"`
		SavePath string        `json:"savePath"`
		Duration time.Duration `json:"duration"`
		Speed    float64       `json:"speed"`
	}

	// HTTPError is returned when the remote answers with a
	// non-success status.
	HTTPError struct {
		StatusCode int
		Status     string
	}

	// Fetcher is the outbound capability the task handlers depend on.
	Fetcher interface {
		ParseAlbum(ctx context.Context, url string) (*gallery.AlbumManifest, error)
		Download(ctx context.Context, url string, savePath string) (*DownloadResult, error)
	}

	telegraphFetcher struct {
		client    *http.Client
		userAgent string
	}
)

func (err *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP response: %s", err.Status)
}

func New(config Config) Fetcher {
	return &telegraphFetcher{
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSecs) * time.Second,
			Transport: &http.Transport{
				ResponseHeaderTimeout: time.Duration(config.ConnectTimeoutSecs) * time.Second,
			},
		},
		userAgent: config.UserAgent,
	}
}

// ParseAlbum fetches the page at the URL and extracts its manifest:
// the first <h1> as the title (mandatory), the first <time> as the
// date (the datetime attribute when present, else its text), and the
// src of every <img>. Relative image sources are resolved against
// telegra.ph; sources that are neither absolute nor rooted are
// skipped. Duplicate image URLs keep their first occurrence only.
func (fetcher *telegraphFetcher) ParseAlbum(ctx context.Context, url string) (*gallery.AlbumManifest, error) {
	document, err := fetcher.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	titleNode := findFirstElement(document, "h1")
	if titleNode == nil {
		return nil, ErrNoTitle
	}

	manifest := &gallery.AlbumManifest{Title: strings.TrimSpace(collectText(titleNode))}

	if timeNode := findFirstElement(document, "time"); timeNode != nil {
		if datetime, ok := findAttr(timeNode, "datetime"); ok {
			manifest.Date = datetime
		} else {
			manifest.Date = strings.TrimSpace(collectText(timeNode))
		}
	}

	seen := make(map[string]bool)
	for _, img := range findAllElements(document, "img") {
		src, ok := findAttr(img, "src")
		if !ok {
			continue
		}

		var fullURL string
		switch {
		case strings.HasPrefix(src, "http"):
			fullURL = src
		case strings.HasPrefix(src, "/"):
			fullURL = telegraphBaseURL + src
		default:
			continue
		}

		if !seen[fullURL] {
			seen[fullURL] = true
			manifest.ImageURLs = append(manifest.ImageURLs, fullURL)
		}
	}

	log.Debugf("Parsed album %s: title=%q, %d image(s)\n", url, manifest.Title, len(manifest.ImageURLs))
	return manifest, nil
}

// Download fetches the URL and writes the body to savePath, returning
// the accounting record. Speed is bytes per second, except for
// sub-second downloads where it degrades to the raw byte count.
func (fetcher *telegraphFetcher) Download(ctx context.Context, url string, savePath string) (*DownloadResult, error) {
	log.Infof("Downloading %s -> %s\n", url, savePath)
	startTime := time.Now()

	body, err := fetcher.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(savePath, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write downloaded file: %w", err)
	}

	duration := time.Since(startTime)
	size := int64(len(body))
	speed := float64(size)
	if duration >= time.Second {
		speed = float64(size) / duration.Seconds()
	}

	log.Debugf("Downloaded %d bytes in %s (%.2f bytes/sec)\n", size, duration, speed)
	return &DownloadResult{
		URL:      url,
		Size:     size,
		SavePath: savePath,
		Duration: duration,
		Speed:    speed,
	}, nil
}

func (fetcher *telegraphFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct request for %s: %w", url, err)
	}
	request.Header.Set("User-Agent", fetcher.userAgent)

	response, err := fetcher.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: response.StatusCode, Status: response.Status}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	return body, nil
}

func (fetcher *telegraphFetcher) fetchDocument(ctx context.Context, url string) (*html.Node, error) {
	body, err := fetcher.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	document, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	return document, nil
}

func findFirstElement(node *html.Node, tag string) *html.Node {
	if node.Type == html.ElementNode && node.Data == tag {
		return node
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirstElement(child, tag); found != nil {
			return found
		}
	}

	return nil
}

func findAllElements(node *html.Node, tag string) []*html.Node {
	var found []*html.Node
	if node.Type == html.ElementNode && node.Data == tag {
		found = append(found, node)
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		found = append(found, findAllElements(child, tag)...)
	}

	return found
}

func findAttr(node *html.Node, key string) (string, bool) {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}

	return "", false
}

func collectText(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}

	var builder strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		builder.WriteString(collectText(child))
	}

	return builder.String()
}
