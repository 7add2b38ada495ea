package asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ryohey/warp/internal/coerce"
)

// DirStore resolves identifiers to files named <Dir>/<id>.
type DirStore struct {
	Dir string

	// Kinds restricts the asset kinds the store serves. Empty means any.
	Kinds []string
}

var _ coerce.AssetResolver = (*DirStore)(nil)

// NewDirStore returns a store over dir.
func NewDirStore(dir string, kinds ...string) *DirStore {
	return &DirStore{Dir: dir, Kinds: kinds}
}

// Resolve implements coerce.AssetResolver.
func (d *DirStore) Resolve(ctx context.Context, id, kind string) (coerce.Asset, error) {
	if err := checkRequest(id, kind, d.Kinds); err != nil {
		return coerce.Asset{}, err
	}
	if err := ctx.Err(); err != nil {
		return coerce.Asset{}, err
	}

	f, err := os.Open(filepath.Join(d.Dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return coerce.Asset{}, fmt.Errorf("%w: %s", coerce.ErrAssetNotFound, id)
		}
		return coerce.Asset{}, err
	}
	defer f.Close()

	size, digest, err := digestOf(f)
	if err != nil {
		return coerce.Asset{}, fmt.Errorf("read asset %s: %w", id, err)
	}
	return coerce.Asset{ID: id, Kind: kind, Size: size, Digest: digest}, nil
}

// checkRequest rejects identifiers that could escape the store and kinds the
// store does not serve.
func checkRequest(id, kind string, kinds []string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid id %q", coerce.ErrAssetNotFound, id)
	}
	if len(kinds) > 0 && !slices.Contains(kinds, kind) {
		return fmt.Errorf("%w: %s", coerce.ErrUnsupportedAssetKind, kind)
	}
	return nil
}

func digestOf(r io.Reader) (int64, string, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
