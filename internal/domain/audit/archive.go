package audit

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// UnpackLimits bounds archive expansion so a small upload cannot decompress
// into an arbitrarily large prompt.
type UnpackLimits struct {
	MaxInvoices    int
	MaxMemberBytes int64
}

// UnpackInvoices reads a ZIP archive and returns its PDF members in archive
// order. Directories, macOS resource-fork entries and non-PDF files are
// skipped. An archive with no PDF members is an input error. Member ids are
// base filenames; when two members share a base name the ids fall back to the
// archive-relative path, plus an ordinal for exact duplicates, so every
// invoice keeps a distinct id.
func UnpackInvoices(data []byte, limits UnpackLimits) ([]InvoiceFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid zip archive", ErrBadInput)
	}

	var files []InvoiceFile
	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(f.Name, "__MACOSX/") {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, "._") {
			continue
		}
		if !strings.EqualFold(path.Ext(base), ".pdf") {
			continue
		}
		if limits.MaxInvoices > 0 && len(files) >= limits.MaxInvoices {
			return nil, fmt.Errorf("%w: archive holds more than %d pdf invoices", ErrBadInput, limits.MaxInvoices)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: reading invoice %q: %v", ErrBadInput, base, err)
		}
		body, err := readMember(rc, limits.MaxMemberBytes)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: invoice %q: %v", ErrBadInput, base, err)
		}
		files = append(files, InvoiceFile{Data: body})
		names = append(names, cleanMemberName(f.Name))
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no pdf invoices found in archive", ErrBadInput)
	}
	for i, id := range memberIDs(names) {
		files[i].ID = id
	}
	return files, nil
}

// memberIDs derives invoice ids from archive-relative member names. A base
// filename is kept while it is unique across the archive; colliding base
// names switch to the full member path, and ids still identical after that
// get an ordinal suffix.
func memberIDs(names []string) []string {
	byBase := make(map[string]int, len(names))
	for _, name := range names {
		byBase[path.Base(name)]++
	}

	prospective := make([]string, len(names))
	uses := make(map[string]int, len(names))
	for i, name := range names {
		id := path.Base(name)
		if byBase[id] > 1 {
			id = name
		}
		prospective[i] = id
		uses[id]++
	}

	ids := make([]string, len(names))
	occurrence := make(map[string]int, len(names))
	for i, id := range prospective {
		occurrence[id]++
		if uses[id] == 1 || occurrence[id] == 1 {
			ids[i] = id
			continue
		}
		for n := occurrence[id]; ; n++ {
			candidate := fmt.Sprintf("%s (%d)", id, n)
			if uses[candidate] == 0 {
				ids[i] = candidate
				uses[candidate]++
				break
			}
		}
	}
	return ids
}

func readMember(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", max)
	}
	return b, nil
}

// cleanMemberName strips control characters; the name travels into the
// prompt and back out in the JSON response.
func cleanMemberName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
}
