package handlers

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates returns the HTML views served to browsers.
func Templates() *template.Template {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))
}
