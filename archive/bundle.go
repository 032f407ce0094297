// Package archive reads and rewrites build output packed into zip files.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding"
)

// Options select entries of interest.
type Options struct {
	// Prefix is path inside archive, only entries under it are considered.
	Prefix string
	// Match filters entries by name, all files are accepted when nil.
	Match func(name string) bool
	// Names decodes entry names not marked as UTF-8. Zip does not define
	// name encoding and old archives often use legacy code pages.
	Names *encoding.Decoder
}

func (o *Options) name(f *zip.File) string {
	name := f.Name
	if o.Names != nil && f.NonUTF8 {
		if n, err := o.Names.String(name); err == nil {
			name = n
		}
	}
	return name
}

func (o *Options) accepts(name string) bool {
	prefix := strings.TrimPrefix(path.Clean("/"+o.Prefix), "/")
	if prefix != "" && name != prefix && !strings.HasPrefix(name, prefix+"/") {
		return false
	}
	return o.Match == nil || o.Match(name)
}

// isSafePath rejects absolute names and names escaping archive root.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// ReadFiles returns content of selected regular files keyed by their names
// inside archive.
func ReadFiles(arc string, opts Options) (map[string]string, error) {
	r, err := zip.OpenReader(arc)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files := make(map[string]string)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := opts.name(f)
		if !isSafePath(name) {
			return nil, fmt.Errorf("zip entry '%s': unsafe path (absolute or contains path traversal)", name)
		}
		if !opts.accepts(name) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("unable to read zip entry '%s': %w", name, err)
		}
		files[name] = string(data)
	}
	return files, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Rewrite copies archive src to dst replacing content of entries present in
// changed, names are the same ReadFiles returns. Untouched entries are
// copied without recompression.
func Rewrite(src, dst string, changed map[string]string, opts Options) (err error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(out)
	for _, f := range r.File {
		text, ok := changed[opts.name(f)]
		if !ok {
			if err := w.Copy(f); err != nil {
				return fmt.Errorf("unable to copy zip entry '%s': %w", f.Name, err)
			}
			continue
		}
		hdr := f.FileHeader
		hdr.CompressedSize64, hdr.UncompressedSize64, hdr.CRC32 = 0, 0, 0
		hdr.Method = zip.Deflate
		fw, err := w.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("unable to create zip entry '%s': %w", f.Name, err)
		}
		if _, err := io.WriteString(fw, text); err != nil {
			return fmt.Errorf("unable to write zip entry '%s': %w", f.Name, err)
		}
	}
	return w.Close()
}

// IsArchive reports if file at path is zip archive.
func IsArchive(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// matchers never look beyond 262 bytes
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}
