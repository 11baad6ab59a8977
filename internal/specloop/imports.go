package specloop

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// relatedContextBudget is the maximum size of the assembled related-import
// block attached to the executor's task payload.
const relatedContextBudget = 6000

// jsImportPattern matches ES module and CommonJS import statements whose
// source is a relative path. Absolute/package imports (no leading dot)
// never resolve to a file in-repo, so they're skipped. Used only when the
// tree-sitter grammar for a file's extension can't be loaded.
var jsImportPattern = regexp.MustCompile(`(?:import\s+(?:[\w*{}\s,]+\s+from\s+)?|require\()\s*['"](\.[^'"]+)['"]`)

// pyImportPattern matches "from .foo import x" / "from ..pkg.mod import y",
// the only Python import shape that names an in-repo relative module.
var pyImportPattern = regexp.MustCompile(`(?m)^\s*from\s+(\.[\w.]*)\s+import`)

// importGrammars maps a file extension to the tree-sitter language used to
// find its import declarations precisely. Extensions with no entry fall
// back to a regex scan of the raw text.
var importGrammars = map[string]*sitter.Language{
	".go":  golang.GetLanguage(),
	".py":  python.GetLanguage(),
	".js":  javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".ts":  typescript.GetLanguage(),
	".tsx": typescript.GetLanguage(),
}

// relatedImportCandidates returns the set of file paths relPath imports,
// resolved relative to repoRoot. A registered tree-sitter grammar parses
// the file and walks its import declarations; when no grammar is
// registered for the extension, or the parse itself fails, a regex scan
// over relative import specifiers stands in instead.
func relatedImportCandidates(repoRoot, relPath, content string) []string {
	ext := strings.ToLower(filepath.Ext(relPath))
	if lang, ok := importGrammars[ext]; ok {
		if candidates, ok := treeSitterImportCandidates(lang, repoRoot, relPath, content); ok {
			return candidates
		}
	}
	return regexImportCandidates(relPath, content)
}

// treeSitterImportCandidates parses content with lang and extracts every
// import/require/from-import specifier, resolving Go paths against
// repoRoot's directory tree and passing every other language's specifier
// straight to resolveExisting as a relative path. ok is false when the
// parse itself failed, signaling the caller to fall back to regex.
func treeSitterImportCandidates(lang *sitter.Language, repoRoot, relPath, content string) (candidates []string, ok bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	dir := filepath.Dir(relPath)
	src := []byte(content)
	getText := func(n *sitter.Node) string { return n.Content(src) }

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_spec": // Go: import "path" or import alias "path"
			if pathNode := n.ChildByFieldName("path"); pathNode != nil {
				importPath := strings.Trim(getText(pathNode), `"`)
				candidates = append(candidates, goImportCandidate(repoRoot, dir, importPath))
			}
		case "import_from_statement": // Python: from .pkg import x
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "relative_import" || child.Type() == "dotted_name" {
					candidates = append(candidates, pyImportCandidate(dir, getText(child)))
					break
				}
			}
		case "import_statement": // JS/TS: import x from "./y"
			if sourceNode := n.ChildByFieldName("source"); sourceNode != nil {
				source := strings.Trim(getText(sourceNode), `"'`)
				if strings.HasPrefix(source, ".") {
					candidates = append(candidates, filepath.Clean(filepath.Join(dir, source)))
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return candidates, true
}

// goImportCandidate resolves a Go import path to an in-repo directory
// suffix when one matches, falling back to a sibling-directory guess
// (the package's final path segment next to dir) otherwise; vendored and
// stdlib imports never correspond to an in-repo file either way, and
// resolveExisting silently drops whatever doesn't exist on disk.
func goImportCandidate(repoRoot, dir, importPath string) string {
	if found, ok := findGoPackageDir(repoRoot, importPath); ok {
		return found
	}
	return filepath.Join(dir, "..", filepath.Base(importPath))
}

// pyImportCandidate turns a Python relative-import node's text ("." / ".foo"
// / "..pkg.mod") into a path relative to dir, walking up one directory per
// leading dot beyond the first.
func pyImportCandidate(dir, spec string) string {
	leadingDots := len(spec) - len(strings.TrimLeft(spec, "."))
	rest := strings.TrimLeft(spec, ".")
	base := dir
	for i := 1; i < leadingDots; i++ {
		base = filepath.Dir(base)
	}
	if rest == "" {
		return filepath.Clean(base)
	}
	return filepath.Clean(filepath.Join(base, strings.ReplaceAll(rest, ".", string(filepath.Separator))))
}

// findGoPackageDir looks for a directory under repoRoot whose path suffix
// matches the imported package path's final segments, the cheap heuristic
// this related-context helper uses instead of full module-graph resolution.
func findGoPackageDir(repoRoot, importPath string) (string, bool) {
	segments := strings.Split(importPath, "/")
	for n := len(segments); n >= 1; n-- {
		suffix := filepath.Join(segments[len(segments)-n:]...)
		candidate := filepath.Join(repoRoot, suffix)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return suffix, true
		}
	}
	return "", false
}

// regexImportCandidates is the fallback path for extensions with no
// registered tree-sitter grammar (and the rescue path if a grammar parse
// fails outright).
func regexImportCandidates(relPath, content string) []string {
	dir := filepath.Dir(relPath)
	var candidates []string

	for _, m := range jsImportPattern.FindAllStringSubmatch(content, -1) {
		resolved := filepath.Clean(filepath.Join(dir, m[1]))
		candidates = append(candidates, resolved)
	}
	for _, m := range pyImportPattern.FindAllStringSubmatch(content, -1) {
		rel := strings.ReplaceAll(strings.TrimLeft(m[1], "."), ".", string(filepath.Separator))
		leadingDots := len(m[1]) - len(strings.TrimLeft(m[1], "."))
		base := dir
		for i := 1; i < leadingDots; i++ {
			base = filepath.Dir(base)
		}
		candidates = append(candidates, filepath.Clean(filepath.Join(base, rel)))
	}

	return candidates
}

// candidateExtensions are appended, in order, to an extension-less import
// candidate until a real file is found on disk.
var candidateExtensions = []string{"", ".go", ".ts", ".tsx", ".js", ".jsx", ".py"}

// resolveExisting returns the first on-disk file matching candidate (tried
// bare, then with each of candidateExtensions, then as an index/__init__
// file inside a same-named directory).
func resolveExisting(repoRoot, candidate string) (string, bool) {
	for _, ext := range candidateExtensions {
		rel := candidate + ext
		if info, err := os.Stat(filepath.Join(repoRoot, rel)); err == nil && !info.IsDir() {
			return rel, true
		}
	}

	// candidate may name a package directory rather than a file (Go
	// imports, or a JS/Python index module) — look inside it.
	dirAbs := filepath.Join(repoRoot, candidate)
	if info, err := os.Stat(dirAbs); err == nil && info.IsDir() {
		for _, name := range []string{"index.ts", "index.js", "__init__.py"} {
			rel := filepath.Join(candidate, name)
			if info, err := os.Stat(filepath.Join(repoRoot, rel)); err == nil && !info.IsDir() {
				return rel, true
			}
		}
		if entries, err := os.ReadDir(dirAbs); err == nil {
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") {
					return filepath.Join(candidate, e.Name()), true
				}
			}
		}
	}
	return "", false
}

// BuildRelatedContext resolves every import relPath's content declares to
// an in-repo file, reads each, and concatenates labeled excerpts up to
// relatedContextBudget characters. The excerpt that crosses the budget is
// cut off at the budget, mid-content, rather than dropped; later excerpts
// are not included.
func BuildRelatedContext(repoRoot, relPath, content string) string {
	candidates := relatedImportCandidates(repoRoot, relPath, content)

	var b strings.Builder
	seen := map[string]bool{}
	for _, candidate := range candidates {
		resolved, ok := resolveExisting(repoRoot, candidate)
		if !ok || seen[resolved] || resolved == relPath {
			continue
		}
		seen[resolved] = true

		data, err := os.ReadFile(filepath.Join(repoRoot, resolved))
		if err != nil {
			continue
		}

		section := "--- related: " + resolved + " ---\n" + string(data) + "\n"
		if b.Len()+len(section) > relatedContextBudget {
			remaining := relatedContextBudget - b.Len()
			if remaining <= 0 {
				break
			}
			b.WriteString(section[:remaining])
			break
		}
		b.WriteString(section)
	}
	return b.String()
}
