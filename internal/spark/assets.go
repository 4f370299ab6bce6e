package spark

import (
	"bytes"
	"crypto/md5"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AssetDir is the directory, next to the report, that holds offline assets
const AssetDir = "spark"

//go:embed assets/spark.css assets/spark.js
var assetFS embed.FS

//go:embed templates/spark.html.tmpl
var pageSource string

var assetNames = []string{"spark.css", "spark.js"}

// assetVersion is a short content hash used to bust browser caches
var assetVersion = func() string {
	h := md5.New()
	for _, name := range assetNames {
		h.Write(mustAsset(name))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}()

func mustAsset(name string) []byte {
	data, err := assetFS.ReadFile("assets/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded asset %s: %v", name, err))
	}
	return data
}

// assetCache remembers directories that already hold the current assets
type assetCache struct {
	mu   sync.Mutex
	dirs map[string]bool
}

var extracted = &assetCache{
	dirs: make(map[string]bool),
}

// extractAssets writes the embedded assets into dir unless they are
// already present with identical content.
func extractAssets(dir string) error {
	extracted.mu.Lock()
	defer extracted.mu.Unlock()

	if extracted.dirs[dir] && assetsPresent(dir) {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	for _, name := range assetNames {
		content := mustAsset(name)
		target := filepath.Join(dir, name)

		if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, content) {
			continue
		}
		if err := os.WriteFile(target, content, 0644); err != nil {
			return fmt.Errorf("failed to write asset %s: %w", name, err)
		}
	}

	extracted.dirs[dir] = true
	return nil
}

func assetsPresent(dir string) bool {
	for _, name := range assetNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}
