package monitor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// CategoryRule assigns files whose name matches Pattern to Category.
type CategoryRule struct {
	Pattern  string
	Category string
}

// ExtensionMapping lists the extensions that belong to a category.
type ExtensionMapping struct {
	Category   string
	Extensions []string
}

type compiledRule struct {
	matcher  glob.Glob
	category string
}

// CategoryPolicy decides the destination category of a root-level file.
// Rules are tried first in order; the extension table is the fallback.
type CategoryPolicy struct {
	rules      []compiledRule
	extensions map[string]string
	categories []string
}

// NewCategoryPolicy compiles rules and the extension table. Bad patterns fail with
// ErrInvalidPattern; a category that is not a plain folder name fails with
// ErrUnsafeCategory. When two mappings claim an extension the first one wins.
func NewCategoryPolicy(rules []CategoryRule, table []ExtensionMapping) (*CategoryPolicy, error) {
	p := &CategoryPolicy{extensions: make(map[string]string)}
	seen := make(map[string]bool)
	addCategory := func(c string) {
		if !seen[c] {
			seen[c] = true
			p.categories = append(p.categories, c)
		}
	}

	for _, m := range table {
		if err := ValidateCategory(m.Category); err != nil {
			return nil, err
		}
		addCategory(m.Category)
		for _, ext := range m.Extensions {
			ext = normalizeExtension(ext)
			if ext == "" {
				continue
			}
			if _, ok := p.extensions[ext]; !ok {
				p.extensions[ext] = m.Category
			}
		}
	}

	for _, r := range rules {
		if err := ValidateCategory(r.Category); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("%w: empty pattern for category %q", ErrInvalidPattern, r.Category)
		}
		g, err := glob.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, r.Pattern, err)
		}
		p.rules = append(p.rules, compiledRule{matcher: g, category: r.Category})
		addCategory(r.Category)
	}

	return p, nil
}

// Categories returns every category the policy can produce, in first-seen order:
// extension table first, then rule-only categories.
func (p *CategoryPolicy) Categories() []string {
	out := make([]string, len(p.categories))
	copy(out, p.categories)
	return out
}

// Categorize returns the category for a file name, or false if the file stays at
// the root.
func (p *CategoryPolicy) Categorize(name string) (string, bool) {
	for _, r := range p.rules {
		if r.matcher.Match(name) {
			return r.category, true
		}
	}
	if c, ok := p.extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return c, true
	}
	return "", false
}

// ValidateCategory accepts only names that are a single, local path element.
func ValidateCategory(category string) error {
	switch {
	case strings.TrimSpace(category) == "":
		return fmt.Errorf("%w: empty name", ErrUnsafeCategory)
	case category == "." || category == ".." || category == RootCategory:
		return fmt.Errorf("%w: %q", ErrUnsafeCategory, category)
	case strings.ContainsAny(category, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeCategory, category)
	case filepath.IsAbs(category) || filepath.VolumeName(category) != "":
		return fmt.Errorf("%w: %q is absolute", ErrUnsafeCategory, category)
	case !filepath.IsLocal(category):
		return fmt.Errorf("%w: %q does not stay inside the root", ErrUnsafeCategory, category)
	}
	return nil
}

// containedDestination joins root, category and name and verifies that the result
// is exactly root/category/name.
func containedDestination(root, category, name string) (string, error) {
	if err := ValidateCategory(category); err != nil {
		return "", err
	}
	root = filepath.Clean(root)
	dir := filepath.Join(root, category)
	dest := filepath.Join(dir, name)
	if filepath.Dir(dir) != root || filepath.Dir(dest) != dir || filepath.Base(dest) != name {
		return "", fmt.Errorf("%w: %q escapes %s", ErrUnsafeCategory, filepath.Join(category, name), root)
	}
	return dest, nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
