package widget

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// CreateZip writes the contents of srcDir to a zip archive at dest. Entry
// names are relative to srcDir and use forward slashes. A partially written
// archive is removed on failure.
func CreateZip(srcDir, dest string) (err error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", srcDir)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absDest {
			return nil
		}
		return addEntry(zw, path, filepath.ToSlash(rel), d)
	})
	closeErr := zw.Close()
	fileErr := out.Close()
	if err = errors.Join(walkErr, closeErr, fileErr); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if d.IsDir() {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name + "/"
		_, err = zw.CreateHeader(header)
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	_, err = io.Copy(w, f)
	return err
}
