// SPDX-License-Identifier: MPL-2.0

// Package archive reads and writes .mkp package files.
//
// A package file is a gzip-compressed tar with these members, in order:
//
//	info        the package record as CUE text
//	info.json   the same record as JSON
//	<part>.tar  one uncompressed tar per part with files, holding the
//	            part-relative paths
//
// Containers are deterministic: identical records and file contents give
// byte-identical output.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mkptool/mkp/pkg/fspath"
	"github.com/mkptool/mkp/pkg/pkginfo"
)

const (
	// Ext is the package file extension.
	Ext = ".mkp"

	// InfoMember holds the CUE record.
	InfoMember = "info"
	// InfoJSONMember holds the JSON record.
	InfoJSONMember = "info.json"

	partSuffix = ".tar"
)

var (
	// ErrCorrupt is returned for input that is not a valid package file.
	ErrCorrupt = errors.New("corrupt package file")
	// ErrUnsafePath is returned for members that would land outside their
	// part root. It wraps ErrCorrupt.
	ErrUnsafePath = fmt.Errorf("%w: unsafe member path", ErrCorrupt)

	epoch = time.Unix(0, 0)
)

type (
	// OpenFunc opens one packaged file for reading. The returned info must
	// describe a regular file; its size and permission bits are recorded.
	OpenFunc func(part, path string) (io.ReadCloser, fs.FileInfo, error)

	// FileFunc receives one payload file during Extract. r is only valid
	// until FileFunc returns.
	FileFunc func(part, path string, mode fs.FileMode, r io.Reader) error

	// Option configures Write.
	Option func(*writeOptions)

	writeOptions struct {
		level int
	}
)

// WithCompressionLevel sets the gzip level (gzip.NoCompression through
// gzip.BestCompression, or gzip.DefaultCompression).
func WithCompressionLevel(level int) Option {
	return func(o *writeOptions) {
		o.level = level
	}
}

// FileName returns the conventional package file name "<name>-<version>.mkp".
func FileName(info *pkginfo.Info) string {
	return info.Name + "-" + info.Version + Ext
}

// Write streams the package file for info to w. order lists the part idents
// in output order; every part with files must appear in it. Paths within a
// part are written sorted.
func Write(w io.Writer, info *pkginfo.Info, order []string, open OpenFunc, opts ...Option) (err error) {
	options := writeOptions{level: gzip.DefaultCompression}
	for _, opt := range opts {
		opt(&options)
	}

	for _, ident := range info.PartIdents() {
		if !slices.Contains(order, ident) {
			return fmt.Errorf("package %s lists files in unknown part %q", info.Name, ident)
		}
	}

	jsonInfo, err := pkginfo.EncodeJSON(info)
	if err != nil {
		return fmt.Errorf("encode info.json: %w", err)
	}

	gz, err := gzip.NewWriterLevel(w, options.level)
	if err != nil {
		return fmt.Errorf("invalid compression level: %w", err)
	}
	defer func() {
		if closeErr := gz.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(gz)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := writeMember(tw, InfoMember, 0o644, pkginfo.Encode(info)); err != nil {
		return err
	}
	if err := writeMember(tw, InfoJSONMember, 0o644, jsonInfo); err != nil {
		return err
	}

	for _, ident := range order {
		files := info.Files[ident]
		if len(files) == 0 {
			continue
		}
		if err := writePart(tw, ident, files, open); err != nil {
			return err
		}
	}

	return nil
}

// writePart spools the inner tar of one part to a temporary file, since the
// outer header needs its size, and then copies it into tw.
func writePart(tw *tar.Writer, ident string, files []string, open OpenFunc) error {
	spool, err := os.CreateTemp("", "mkp-"+ident+"-*.tar")
	if err != nil {
		return fmt.Errorf("spool %s%s: %w", ident, partSuffix, err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	inner := tar.NewWriter(spool)
	for _, p := range slices.Sorted(slices.Values(files)) {
		if err := copyFile(inner, ident, p, open); err != nil {
			return err
		}
	}
	if err := inner.Close(); err != nil {
		return fmt.Errorf("finish %s%s: %w", ident, partSuffix, err)
	}

	size, err := spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("spool %s%s: %w", ident, partSuffix, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("spool %s%s: %w", ident, partSuffix, err)
	}

	name := ident + partSuffix
	if err := tw.WriteHeader(header(name, 0o644, size)); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := io.Copy(tw, spool); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func copyFile(tw *tar.Writer, ident, p string, open OpenFunc) error {
	rc, fi, err := open(ident, p)
	if err != nil {
		return fmt.Errorf("open %s/%s: %w", ident, p, err)
	}
	defer func() { _ = rc.Close() }()

	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s/%s: not a regular file", ident, p)
	}

	if err := tw.WriteHeader(header(p, fi.Mode().Perm(), fi.Size())); err != nil {
		return fmt.Errorf("write header %s/%s: %w", ident, p, err)
	}
	n, err := io.Copy(tw, rc)
	if err != nil {
		return fmt.Errorf("copy %s/%s: %w", ident, p, err)
	}
	if n != fi.Size() {
		return fmt.Errorf("copy %s/%s: file changed size while packing", ident, p)
	}
	return nil
}

func writeMember(tw *tar.Writer, name string, mode fs.FileMode, data []byte) error {
	if err := tw.WriteHeader(header(name, mode, int64(len(data)))); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// header returns a tar header with every host-specific field zeroed.
func header(name string, mode fs.FileMode, size int64) *tar.Header {
	return &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     size,
		ModTime:  epoch,
	}
}

// ReadInfo returns the record of a package file. It stops at the info
// member and never reads payload members after it.
func ReadInfo(r io.Reader) (*pkginfo.Info, error) {
	tr, closeFn, err := openTar(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var jsonInfo []byte
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		switch hdr.Name {
		case InfoMember:
			return parseInfo(tr, InfoMember)
		case InfoJSONMember:
			jsonInfo, err = io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %w", ErrCorrupt, InfoJSONMember, err)
			}
		}
	}

	if jsonInfo != nil {
		return parseInfo(bytes.NewReader(jsonInfo), InfoJSONMember)
	}
	return nil, fmt.Errorf("%w: no %q member", ErrCorrupt, InfoMember)
}

// Extract reads the whole package file, calling fn for every payload file,
// and returns the record. Member paths that are absolute or leave their part
// root fail with ErrUnsafePath.
func Extract(r io.Reader, fn FileFunc) (*pkginfo.Info, error) {
	tr, closeFn, err := openTar(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var info, jsonInfo *pkginfo.Info
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		switch {
		case hdr.Name == InfoMember:
			if info, err = parseInfo(tr, InfoMember); err != nil {
				return nil, err
			}
		case hdr.Name == InfoJSONMember:
			// Only a fallback; a broken copy is ignored.
			jsonInfo, _ = parseInfo(tr, InfoJSONMember)
		case strings.HasSuffix(hdr.Name, partSuffix):
			ident := strings.TrimSuffix(hdr.Name, partSuffix)
			if ident == "" || strings.ContainsAny(ident, `/\`) {
				return nil, fmt.Errorf("%w: %q", ErrUnsafePath, hdr.Name)
			}
			if err := extractPart(ident, tr, fn); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case info != nil:
		return info, nil
	case jsonInfo != nil:
		return jsonInfo, nil
	default:
		return nil, fmt.Errorf("%w: no %q member", ErrCorrupt, InfoMember)
	}
}

func extractPart(ident string, r io.Reader, fn FileFunc) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrCorrupt, ident, partSuffix, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return fmt.Errorf("%w: %s/%s: unsupported entry type %q", ErrUnsafePath, ident, hdr.Name, hdr.Typeflag)
		}

		rel, err := fspath.CleanRel(strings.TrimPrefix(hdr.Name, "./"))
		if err != nil {
			return fmt.Errorf("%w: %s/%s: %w", ErrUnsafePath, ident, hdr.Name, err)
		}

		if err := fn(ident, rel, fs.FileMode(hdr.Mode).Perm(), tr); err != nil {
			return err
		}
	}
}

func openTar(r io.Reader) (*tar.Reader, func(), error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return tar.NewReader(gz), func() { _ = gz.Close() }, nil
}

func parseInfo(r io.Reader, member string) (*pkginfo.Info, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCorrupt, member, err)
	}
	info, err := pkginfo.Parse(raw, member)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return info, nil
}
