package render

import (
	"html/template"
)

// FuncMap returns the functions available to every page.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		// Forms
		"autofocus": func(focus, field string) template.HTMLAttr {
			if focus != "" && focus == field {
				return "autofocus"
			}
			return ""
		},
	}
}

// MergeFuncMaps merges multiple FuncMaps into one.
// Later maps override earlier ones for duplicate keys.
func MergeFuncMaps(maps ...template.FuncMap) template.FuncMap {
	result := make(template.FuncMap)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
