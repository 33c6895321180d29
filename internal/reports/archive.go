package reports

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Unpack turns a downloaded payload into report documents. The payload may
// be a single document, a gzip-compressed document, or a (gzipped) tar
// archive whose regular files are the documents. maxSize bounds the total
// uncompressed size.
func Unpack(data []byte, maxSize int64) (Bundle, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Bundle{}, nil
	}

	name := "report"
	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &DownloadError{Cause: fmt.Errorf("corrupt gzip payload: %w", err)}
		}
		defer zr.Close()

		if zr.Name != "" {
			name = zr.Name
		}

		plain, err := io.ReadAll(io.LimitReader(zr, maxSize+1))
		if err != nil {
			return nil, &DownloadError{Cause: fmt.Errorf("corrupt gzip payload: %w", err)}
		}
		if int64(len(plain)) > maxSize {
			return nil, &DownloadError{Cause: fmt.Errorf("uncompressed report exceeds limit of %d bytes", maxSize)}
		}
		data = plain
	}

	if isTar(data) {
		return untar(data)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Bundle{}, nil
	}
	return Bundle{{Name: name, Data: data}}, nil
}

func untar(data []byte) (Bundle, error) {
	bundle := Bundle{}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return bundle, nil
		}
		if err != nil {
			return nil, &DownloadError{Cause: fmt.Errorf("corrupt tar archive: %w", err)}
		}
		if hdr.Typeflag != tar.TypeReg || skipEntry(hdr.Name) {
			continue
		}

		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, &DownloadError{Cause: fmt.Errorf("corrupt tar archive: %w", err)}
		}
		if len(bytes.TrimSpace(body)) == 0 {
			continue
		}
		bundle = append(bundle, Blob{Name: hdr.Name, Data: body})
	}
}

// skipEntry drops archive metadata files that are not reports.
func skipEntry(name string) bool {
	base := path.Base(name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	ext := strings.ToLower(path.Ext(base))
	return ext == ".json" || ext == ".txt" || ext == ".sig"
}

func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

func isTar(data []byte) bool {
	return len(data) > 262 && string(data[257:262]) == "ustar"
}
