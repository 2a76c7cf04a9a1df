package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tessel-lang/tessel/internal/ast"
	"github.com/tessel-lang/tessel/internal/lower"
)

// fileImporter resolves import statements against the filesystem.
// Imported scripts are lowered into the current module via SubScript;
// their exported names are merged back under "alias.name" keys.
type fileImporter struct {
	baseDir string
	visited map[string]bool
}

func newFileImporter(baseDir string) *fileImporter {
	return &fileImporter{baseDir: baseDir, visited: make(map[string]bool)}
}

// Import implements lower.Importer.
func (im *fileImporter) Import(lw *lower.Lowerer, stmt *ast.ImportStmt) error {
	path := stmt.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(im.baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("import of %q: %w", stmt.Path, err)
	}
	if im.visited[abs] {
		return fmt.Errorf("import of %q: file has already been imported", stmt.Path)
	}
	im.visited[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("import of %q: %w", stmt.Path, err)
	}
	script, err := ast.DecodeScript(abs, data)
	if err != nil {
		return fmt.Errorf("import of %q: %w", stmt.Path, err)
	}

	// Nested imports resolve relative to the imported file.
	prevBase := im.baseDir
	im.baseDir = filepath.Dir(abs)
	exported, fns, err := lw.SubScript(script)
	im.baseDir = prevBase
	if err != nil {
		return err
	}

	alias := stmt.Alias
	if alias == "" {
		base := filepath.Base(abs)
		alias = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for _, name := range exported.Names() {
		lw.Bindings().Put(alias+"."+name, exported[name])
	}
	for _, fi := range fns {
		lw.Funcs().Register(&lower.FuncInfo{
			Name:    alias + "." + fi.Name,
			Symbol:  fi.Symbol,
			Params:  fi.Params,
			Results: fi.Results,
			Op:      fi.Op,
		})
	}
	return nil
}
