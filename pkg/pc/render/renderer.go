package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

const basePage = "base.html"

// Renderer holds one parsed template set per page, each layered on base.html.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses base.html and every named page from fsys, rooted at dir.
// Page names are paths without extension, e.g. "catalog/list".
func NewRenderer(fsys fs.FS, dir string, funcs template.FuncMap, pages ...string) (*Renderer, error) {
	funcMap := MergeFuncMaps(FuncMap(), funcs)

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys,
			dir+"/"+basePage,
			dir+"/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("cannot parse template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render executes page into w with the given status. Output is buffered so a
// failing template never leaves a half-written body behind.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, basePage, data); err != nil {
		return fmt.Errorf("cannot execute template %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
