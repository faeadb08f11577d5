// Package source reads raw documents from disk. Unreadable documents are
// logged and skipped; only an input that yields nothing at all is an error.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/normalize"
)

// Record is one line of a JSONL corpus.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Load reads path as a directory, a JSONL file or a single document.
func Load(path string, logger *zap.Logger) ([]normalize.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrIO, err)
	}
	switch {
	case info.IsDir():
		return LoadDir(path, logger)
	case strings.EqualFold(filepath.Ext(path), ".jsonl"):
		return LoadJSONL(path, logger)
	}
	doc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return []normalize.Document{doc}, nil
}

// LoadDir reads every .txt, .html and .htm file under root in lexical order.
// Document ids are paths relative to root.
func LoadDir(root string, logger *zap.Logger) ([]normalize.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var docs []normalize.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable entry", zap.String("path", path),
				zap.Error(fmt.Errorf("%w: %v", internalerr.ErrIO, err)))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !supported(path) {
			return nil
		}

		doc, err := readFile(path)
		if err != nil {
			logger.Warn("skipping unreadable document", zap.String("path", path), zap.Error(err))
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			doc.ID = filepath.ToSlash(rel)
		}
		if n := normalize.CountPageMarkers(doc.Text); n > 0 {
			logger.Debug("page markers found", zap.String("doc", doc.ID), zap.Int("markers", n))
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", internalerr.ErrIO, root, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents found in %s: %w", root, internalerr.ErrEmptyCorpus)
	}
	logger.Info("documents loaded", zap.String("root", root), zap.Int("documents", len(docs)))
	return docs, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".html", ".htm":
		return true
	}
	return false
}

func readFile(path string) (normalize.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return normalize.Document{}, fmt.Errorf("%w: %v", internalerr.ErrIO, err)
	}
	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text = normalize.StripMarkup(text)
	}
	return normalize.Document{ID: filepath.Base(path), Text: text}, nil
}

// maxLine bounds a single JSONL record.
const maxLine = 64 << 20

// LoadJSONL loads documents from a JSONL file of {"id", "text"} records.
// Malformed lines are skipped; a record without an id gets "line-N".
func LoadJSONL(path string, logger *zap.Logger) ([]normalize.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrIO, err)
	}
	defer f.Close()

	var docs []normalize.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logger.Warn("skipping malformed record",
				zap.String("path", path), zap.Int("line", line),
				zap.Error(fmt.Errorf("%w: %v", internalerr.ErrIO, err)))
			continue
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("line-%d", line)
		}
		docs = append(docs, normalize.Document{ID: rec.ID, Text: rec.Text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", internalerr.ErrIO, path, err)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no valid records in %s: %w", path, internalerr.ErrEmptyCorpus)
	}
	return docs, nil
}
