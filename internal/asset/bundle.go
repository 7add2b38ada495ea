package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Built-in resource identifiers. They live inside the engine, not the
// project, and are never bundled.
const (
	BuiltinDefaultResources = "0000000000000000e000000000000000"
	BuiltinExtraResources   = "0000000000000000f000000000000000"
)

// IsBuiltin reports whether id names a built-in resource.
func IsBuiltin(id string) bool {
	return id == BuiltinDefaultResources || id == BuiltinExtraResources
}

// BundleResult reports what Bundle did with each identifier.
type BundleResult struct {
	Copied  []string `json:"copied"`  // written to <out>/<id>
	Builtin []string `json:"builtin"` // skipped, built into the engine
	Missing []string `json:"missing"` // no project file has this identifier
}

// BundleOptions tunes Bundle.
type BundleOptions struct {
	// Concurrency caps parallel copies. Zero means GOMAXPROCS.
	Concurrency int
}

// Bundle copies the project file behind each identifier into outDir, named
// by identifier. Identifiers are mapped to files through the ".meta"
// sidecar files under projectDir. Built-in and unknown identifiers are
// reported, not treated as errors; any I/O failure aborts the bundle.
func Bundle(ctx context.Context, ids []string, projectDir, outDir string, opts BundleOptions) (BundleResult, error) {
	var res BundleResult

	index, err := IndexProject(projectDir)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("create bundle dir: %w", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, id := range ids {
		if IsBuiltin(id) {
			slog.Warn("built-in assets are not bundled", "id", id)
			res.Builtin = append(res.Builtin, id)
			continue
		}
		src, ok := index[id]
		if !ok {
			slog.Warn("asset not found in project", "id", id, "project", projectDir)
			res.Missing = append(res.Missing, id)
			continue
		}

		g.Go(func() error {
			if err := copyFile(gctx, src, filepath.Join(outDir, id)); err != nil {
				return fmt.Errorf("bundle %s (%s): %w", id, src, err)
			}
			slog.Debug("asset bundled", "id", id, "path", src)
			mu.Lock()
			res.Copied = append(res.Copied, id)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	slices.Sort(res.Copied)
	return res, nil
}

type metaFile struct {
	GUID string `yaml:"guid"`
}

// IndexProject maps identifiers to asset paths by reading every ".meta"
// file under projectDir. The asset is the meta file's path without the
// suffix. Folder metas and unreadable metas are ignored.
func IndexProject(projectDir string) (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != projectDir && (strings.HasPrefix(name, ".") || name == "Library" || name == "Temp") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".meta") {
			return nil
		}

		assetPath := strings.TrimSuffix(path, ".meta")
		info, err := os.Stat(assetPath)
		if err != nil || info.IsDir() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var meta metaFile
		if err := yaml.Unmarshal(data, &meta); err != nil {
			slog.Warn("skipping unreadable meta file", "path", path, "error", err)
			return nil
		}
		if meta.GUID != "" {
			index[meta.GUID] = assetPath
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index project %s: %w", projectDir, err)
	}
	return index, nil
}

// copyFile writes src to dst through a temp file and rename, so a reader
// never sees a partial blob.
func copyFile(ctx context.Context, src, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".bundle-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// ErrNoProject is returned when a bundle is requested without a project
// directory.
var ErrNoProject = errors.New("no project directory configured")
