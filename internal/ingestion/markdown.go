// Package ingestion loads markdown papers from disk into the records the
// pipeline consumes. Papers are plain .md files, optionally carrying a
// YAML frontmatter block; everything below the frontmatter is the paper
// body handed to the model stages.
package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/binliang/learnpilot/internal/types"
)

// frontmatter is the YAML block a converted paper may carry at the top of
// the file. Only the title is consulted.
type frontmatter struct {
	Title string `yaml:"title"`
}

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n`)
	headingRe     = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)
	// PDF-to-markdown converters sometimes emit "# Title: ..." headings.
	titlePrefixRe = regexp.MustCompile(`(?i)^(?:paper\s*title|title)\s*:\s*`)
)

// LoadDirectory loads every .md file directly under dir, in filename
// order, and returns one record per file. IDs are positional (paper_1,
// paper_2, ...) so two runs over the same directory see the same papers.
func LoadDirectory(dir string) ([]types.PaperRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read papers directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	papers := make([]types.PaperRecord, 0, len(names))
	for i, name := range names {
		rec, err := parseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		rec.ID = fmt.Sprintf("paper_%d", i+1)
		rec.IngestIndex = i
		papers = append(papers, rec)
	}
	return papers, nil
}

// LoadFile loads a single markdown paper. The record gets the ID a
// one-paper directory would produce.
func LoadFile(path string) (types.PaperRecord, error) {
	rec, err := parseFile(path)
	if err != nil {
		return types.PaperRecord{}, err
	}
	rec.ID = "paper_1"
	return rec, nil
}

func parseFile(path string) (types.PaperRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.PaperRecord{}, fmt.Errorf("failed to read paper %s: %w", path, err)
	}

	meta, body := splitFrontmatter(string(raw))
	body = CleanText(body)
	if body == "" {
		return types.PaperRecord{}, fmt.Errorf("paper %s has no content", path)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = titleFromFilename(path)
	}

	return types.PaperRecord{
		Title:      title,
		Content:    body,
		SourcePath: path,
		Status:     types.PaperPending,
	}, nil
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// body. A malformed block is still stripped; it just contributes nothing.
func splitFrontmatter(content string) (frontmatter, string) {
	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return frontmatter{}, content
	}
	var meta frontmatter
	_ = yaml.Unmarshal([]byte(m[1]), &meta)
	return meta, content[len(m[0]):]
}

// firstHeading returns the text of the first level-one heading.
func firstHeading(content string) string {
	m := headingRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(titlePrefixRe.ReplaceAllString(m[1], ""))
}

// titleFromFilename turns "attention_is_all_you_need.md" into
// "attention is all you need".
func titleFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
