package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrExists      = errors.New("file already exists")
	ErrInvalidName = errors.New("invalid file name")
)

// AllowedExtensions are the upload types accepted for product images.
var AllowedExtensions = []string{"txt", "pdf", "png", "jpg", "jpeg", "gif"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeName reduces an uploaded name to a safe base name. It returns ""
// when nothing usable is left.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// Files stores uploads flat under one directory.
type Files struct {
	fs afero.Fs
}

// NewFiles roots the store at dir on the OS filesystem.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return NewFilesFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func NewFilesFs(fs afero.Fs) *Files {
	return &Files{fs: fs}
}

// Fs exposes the underlying filesystem for read-only serving.
func (f *Files) Fs() afero.Fs { return afero.NewReadOnlyFs(f.fs) }

func (f *Files) Exists(name string) (bool, error) {
	return afero.Exists(f.fs, "/"+name)
}

// Save writes r under name. It never overwrites: an existing file yields
// ErrExists.
func (f *Files) Save(name string, r io.Reader) error {
	if name == "" || name != SanitizeName(name) {
		return ErrInvalidName
	}
	out, err := f.fs.OpenFile("/"+name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = f.fs.Remove("/" + name)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return out.Close()
}

func (f *Files) Open(name string) (afero.File, error) {
	return f.fs.Open("/" + name)
}

// Delete removes name. A missing file is not an error.
func (f *Files) Delete(name string) error {
	if name == "" {
		return nil
	}
	err := f.fs.Remove("/" + name)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
