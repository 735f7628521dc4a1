package lister

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// DirProvider serves the most recently modified CSV file from a per-source
// subdirectory, the drop location of the excluded download step.
type DirProvider struct {
	baseDir string
}

var _ ports.ListingProvider = (*DirProvider)(nil)

// NewDirProvider points at the listings base directory.
func NewDirProvider(baseDir string) *DirProvider {
	return &DirProvider{baseDir: baseDir}
}

// Fetch opens the freshest CSV for the source. A missing directory or an
// empty one is an error: without a listing there is nothing to ingest.
func (p *DirProvider) Fetch(ctx context.Context, source domain.Source) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(p.baseDir, string(source))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read listings dir %s: %w", dir, err)
	}

	var (
		newest     string
		newestTime int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().UnixNano() > newestTime {
			newest = entry.Name()
			newestTime = info.ModTime().UnixNano()
		}
	}

	if newest == "" {
		return nil, fmt.Errorf("no listing CSV found in %s", dir)
	}

	f, err := os.Open(filepath.Join(dir, newest))
	if err != nil {
		return nil, fmt.Errorf("open listing %s: %w", newest, err)
	}
	return f, nil
}
