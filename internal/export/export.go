package export

import (
	"fmt"
	"os"
	"path/filepath"

	"template_shop_server/internal/render"
	"template_shop_server/internal/types"
	"template_shop_server/internal/utils"
)

// Artifact names accepted by the download endpoint.
const (
	ArtifactHTML = "html"
	ArtifactCSS  = "css"
	ArtifactJS   = "js"
)

// Files lists the downloadable files of a template. A document-mode
// template is one <slug>_template.html; a structured one is index.html,
// style.css and, when present, script.js.
func Files(t types.GeneratedTemplate) []types.GeneratedFile {
	if !t.Structured() {
		name := utils.Slug(t.Name) + "_template.html"
		return []types.GeneratedFile{file(name, t.HTMLContent)}
	}

	files := []types.GeneratedFile{
		file("index.html", linkedIndex(t)),
		file("style.css", t.CSS),
	}
	if t.JavaScript != "" {
		files = append(files, file("script.js", t.JavaScript))
	}
	return files
}

// Find returns the file for artifact ("html", "css", "js"). An empty
// artifact selects the first file.
func Find(t types.GeneratedTemplate, artifact string) (types.GeneratedFile, bool) {
	files := Files(t)
	if artifact == "" {
		return files[0], true
	}
	want := map[string]string{ArtifactHTML: ".html", ArtifactCSS: ".css", ArtifactJS: ".js"}[artifact]
	for _, f := range files {
		if want != "" && filepath.Ext(f.Filename) == want {
			return f, true
		}
	}
	return types.GeneratedFile{}, false
}

// WriteDir writes every file of t into dir/<template id>/ and returns that
// directory. Each file is replaced atomically.
func WriteDir(dir string, t types.GeneratedTemplate) (string, error) {
	target := filepath.Join(dir, filepath.Base(t.ID))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	for _, f := range Files(t) {
		path := filepath.Join(target, f.Filename)
		if err := writeFileAtomic(path, []byte(f.Content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", f.Filename, err)
		}
	}
	return target, nil
}

func file(name, content string) types.GeneratedFile {
	return types.GeneratedFile{Filename: name, Type: utils.MIMEType(name), Content: content}
}

// linkedIndex wraps structured markup in a page that references the sibling
// style.css and script.js files instead of inlining them.
func linkedIndex(t types.GeneratedTemplate) string {
	js := ""
	if t.JavaScript != "" {
		js = "script.js"
	}
	return render.LinkedDocument(t.HTMLContent, t.Name, "style.css", js)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
