// Package treefile persists the assembled tree as JSON. It is the only
// format the viewer consumes.
package treefile

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Encode renders the tree as indented JSON. Map keys are emitted in sorted
// order and children are pre-sorted, so equal trees encode to equal bytes.
func Encode(tree doctree.Tree) ([]byte, error) {
	if tree == nil {
		tree = doctree.Tree{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a persisted tree.
func Decode(data []byte) (doctree.Tree, error) {
	var tree doctree.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return tree, nil
}

// Read loads a persisted tree from disk.
func Read(path string) (doctree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// WriteResult describes a terminal write.
type WriteResult struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Bytes   int    `json:"bytes"`
	Changed bool   `json:"changed"`
}

// Write replaces path with data in one step: the bytes go to a temporary
// file in the same directory, which is then renamed over the target. A
// failure at any point leaves the previous file untouched. When the file
// already holds identical bytes nothing is written.
func Write(path string, data []byte) (WriteResult, error) {
	res := WriteResult{Path: path, Hash: ContentHashHex(data), Bytes: len(data)}

	if existing, err := os.ReadFile(path); err == nil && ContentHashHex(existing) == res.Hash {
		return res, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return res, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return res, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return res, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return res, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return res, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return res, fmt.Errorf("replace %s: %w", path, err)
	}
	res.Changed = true
	return res, nil
}
