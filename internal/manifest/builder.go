// Package manifest indexes a directory tree of exam JSON files.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/1323216010/exam/internal/domain"
)

const (
	DefaultPathPrefix = "json"
	DefaultOutputName = "exam-list.json"
)

// SubjectCount is the number of entries for one subject.
type SubjectCount struct {
	Subject string
	Count   int
}

// Build lists every *.json file in the immediate subdirectories of rootDir.
// Subdirectories and files are visited in lexicographic order; files directly under
// rootDir are ignored. File paths are <prefix>/<subdir>/<file> with forward slashes.
func Build(rootDir, prefix string) ([]domain.ManifestEntry, error) {
	if err := checkRoot(rootDir); err != nil {
		return nil, err
	}

	dirs, err := os.ReadDir(rootDir) // sorted by name
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", rootDir), err)
	}

	entries := []domain.ManifestEntry{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(rootDir, d.Name()))
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to read %s", d.Name()), err)
		}

		names := make([]string, 0, len(files))
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			names = append(names, f.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			entries = append(entries, domain.ManifestEntry{
				File:    path.Join(prefix, d.Name(), name),
				Subject: d.Name(),
			})
		}
	}

	return entries, nil
}

// Write encodes entries as an indented JSON array to <rootDir>/<outputName>.
// Non-ASCII and HTML characters are written literally.
func Write(rootDir, outputName string, entries []domain.ManifestEntry) (string, error) {
	if entries == nil {
		entries = []domain.ManifestEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return "", domain.IOError("failed to encode manifest", err)
	}

	outPath := filepath.Join(rootDir, outputName)
	data := bytes.TrimRight(buf.Bytes(), "\n")
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to write %s", outPath), err)
	}
	return outPath, nil
}

// Summarize counts entries per subject in first-seen order.
func Summarize(entries []domain.ManifestEntry) []SubjectCount {
	var counts []SubjectCount
	index := map[string]int{}
	for _, e := range entries {
		i, ok := index[e.Subject]
		if !ok {
			i = len(counts)
			index[e.Subject] = i
			counts = append(counts, SubjectCount{Subject: e.Subject})
		}
		counts[i].Count++
	}
	return counts
}

func checkRoot(rootDir string) error {
	info, err := os.Stat(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(rootDir, domain.ErrRootNotFound)
		}
		return domain.IOError(fmt.Sprintf("cannot access %s", rootDir), err)
	}
	if !info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("%s is not a directory", rootDir), domain.ErrRootNotFound)
	}
	return nil
}
