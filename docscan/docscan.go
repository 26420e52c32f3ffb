// Package docscan walks language-specific documentation trees and builds
// ordered indexes of the Markdown documents they contain.
//
// Each language lives in its own subdirectory of the docs root
// (docs/en, docs/zh, ...) with mirrored relative paths. The relative
// path is the document identity across languages; a content fingerprint
// detects change without storing history.
package docscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// FingerprintMode selects how document content is fingerprinted.
type FingerprintMode string

const (
	// FingerprintExact hashes the raw bytes.
	FingerprintExact FingerprintMode = "byte-exact"
	// FingerprintNormalized normalizes line endings and trailing
	// whitespace before hashing, so editor churn does not look like a
	// content change.
	FingerprintNormalized FingerprintMode = "normalize-whitespace"
)

// docExtensions lists the file extensions treated as documents.
var docExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// IsDocFile reports whether name has a recognized document extension.
func IsDocFile(name string) bool {
	return docExtensions[strings.ToLower(filepath.Ext(name))]
}

// Node describes one document within a language tree.
type Node struct {
	// RelPath is the slash-separated path relative to the language root.
	// Together with Language it identifies the document.
	RelPath string
	// Language is the language tag of the tree this node belongs to.
	Language string
	// Fingerprint is the content hash, per the scan's FingerprintMode.
	Fingerprint string
	// Size is the file size in bytes.
	Size int64
	// ModifiedAt is the file modification time.
	ModifiedAt time.Time
}

// Tree is the ordered document index of one language directory.
// It is immutable once built.
type Tree struct {
	// Language is the language tag this tree was scanned for.
	Language string
	// Root is the directory that was scanned.
	Root string
	// Nodes holds all documents sorted by RelPath.
	Nodes []Node

	index map[string]int
}

// Len returns the number of documents in the tree.
func (t *Tree) Len() int { return len(t.Nodes) }

// Lookup returns the node for a relative path, if present.
func (t *Tree) Lookup(relPath string) (Node, bool) {
	i, ok := t.index[relPath]
	if !ok {
		return Node{}, false
	}
	return t.Nodes[i], true
}

// Path returns the absolute path of a document in this tree.
func (t *Tree) Path(relPath string) string {
	return filepath.Join(t.Root, filepath.FromSlash(relPath))
}

// trailingSpace matches spaces and tabs before a line break.
var trailingSpace = regexp.MustCompile(`[ \t]+\n`)

// normalize canonicalizes line endings and trailing whitespace.
func normalize(content []byte) []byte {
	s := strings.ReplaceAll(string(content), "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = strings.TrimRight(s, " \t\n")
	if s != "" {
		s += "\n"
	}
	return []byte(s)
}

// Fingerprint computes the content hash for the given mode.
func Fingerprint(content []byte, mode FingerprintMode) string {
	if mode == FingerprintNormalized {
		content = normalize(content)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Scan walks root and builds the document tree for one language.
// Reads only; the returned tree owns its nodes.
func Scan(root, language string, mode FingerprintMode) (*Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s tree at %s: %w", language, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s tree: %s is not a directory", language, root)
	}

	tree := &Tree{Language: language, Root: root, index: make(map[string]int)}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (.git etc.) are not documentation.
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsDocFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}

		tree.Nodes = append(tree.Nodes, Node{
			RelPath:     filepath.ToSlash(rel),
			Language:    language,
			Fingerprint: Fingerprint(content, mode),
			Size:        fi.Size(),
			ModifiedAt:  fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s tree at %s: %w", language, root, err)
	}

	sort.Slice(tree.Nodes, func(i, j int) bool {
		return tree.Nodes[i].RelPath < tree.Nodes[j].RelPath
	})
	for i, n := range tree.Nodes {
		tree.index[n.RelPath] = i
	}
	return tree, nil
}

// emptyTree returns a tree with no documents for a language whose
// directory does not exist yet.
func emptyTree(root, language string) *Tree {
	return &Tree{Language: language, Root: root, index: make(map[string]int)}
}

// ScanAll scans the primary language and every target language under
// baseDir concurrently. A failed primary scan is fatal. A failed target
// scan leaves that language with an empty tree (every primary document
// will classify as missing); onWarn, if non-nil, receives the reason.
func ScanAll(ctx context.Context, baseDir, primary string, languages []string, mode FingerprintMode, onWarn func(language string, err error)) (map[string]*Tree, error) {
	trees := make(map[string]*Tree, len(languages)+1)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tree, err := Scan(filepath.Join(baseDir, primary), primary, mode)
		if err != nil {
			return err
		}
		mu.Lock()
		trees[primary] = tree
		mu.Unlock()
		return nil
	})

	for _, lang := range languages {
		if lang == primary {
			continue
		}
		lang := lang
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			root := filepath.Join(baseDir, lang)
			tree, err := Scan(root, lang, mode)
			if err != nil {
				if onWarn != nil {
					onWarn(lang, err)
				}
				tree = emptyTree(root, lang)
			}
			mu.Lock()
			trees[lang] = tree
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}
