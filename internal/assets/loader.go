package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader is the backend that retrieves the bytes behind an address.
type Loader interface {
	Load(ctx context.Context, address string) (*Asset, error)
}

// Releaser is implemented by loaders that want assets handed back when the
// cache drops them.
type Releaser interface {
	Release(a *Asset)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, address string) (*Asset, error)

func (f LoaderFunc) Load(ctx context.Context, address string) (*Asset, error) {
	return f(ctx, address)
}

// BlobFunc fetches raw bytes for an address, e.g. from a database table.
type BlobFunc func(ctx context.Context, address string) ([]byte, error)

// Blob wraps a BlobFunc as a Loader whose assets report source.
func Blob(source string, fetch BlobFunc) Loader {
	return LoaderFunc(func(ctx context.Context, address string) (*Asset, error) {
		data, err := fetch(ctx, address)
		if err != nil {
			return nil, err
		}
		return &Asset{Address: address, Source: source, Data: data}, nil
	})
}

// Fallback tries Primary and, only if it yields no asset, Secondary.
type Fallback struct {
	Primary   Loader
	Secondary Loader
}

func (f Fallback) Load(ctx context.Context, address string) (*Asset, error) {
	a, err := f.Primary.Load(ctx, address)
	if err == nil && a != nil {
		return a, nil
	}
	if f.Secondary == nil {
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	b, err2 := f.Secondary.Load(ctx, address)
	if err2 == nil && b != nil {
		return b, nil
	}
	if err2 == nil {
		err2 = ErrNotFound
	}
	return nil, fmt.Errorf("primary: %w; secondary: %w", errOrNotFound(err), err2)
}

func errOrNotFound(err error) error {
	if err == nil {
		return ErrNotFound
	}
	return err
}

// DirLoader reads <root>/<address>.json from a content directory.
type DirLoader struct {
	root string // absolute path to content directory
}

// ContentExt is the file extension DirLoader appends to addresses.
const ContentExt = ".json"

// NewDirLoader creates a loader rooted at dir. The directory must already exist.
func NewDirLoader(dir string) (*DirLoader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("assets: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets: root is not a directory: %s", abs)
	}
	return &DirLoader{root: abs}, nil
}

// Root returns the absolute content directory.
func (l *DirLoader) Root() string {
	return l.root
}

// Path resolves address to a file under root, rejecting traversal.
func (l *DirLoader) Path(address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", fmt.Errorf("assets: empty address")
	}
	cleaned := filepath.Clean(filepath.FromSlash(address))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("assets: absolute address not allowed: %s", address)
	}
	joined := filepath.Join(l.root, cleaned+ContentExt)
	if !strings.HasPrefix(joined, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("assets: address escapes content root: %s", address)
	}
	return joined, nil
}

// AddressFor maps a file path under root back to its address.
func (l *DirLoader) AddressFor(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil || !strings.HasSuffix(abs, ContentExt) {
		return "", false
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, ContentExt)), true
}

func (l *DirLoader) Load(ctx context.Context, address string) (*Asset, error) {
	p, err := l.Path(address)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("assets: read %s: %w", address, err)
	}
	return &Asset{Address: address, Source: "dir", Data: data}, nil
}
