// internal/view/funcs.go
//
// Template helpers.  The UA helpers take the *requestinfo.RequestInfo that
// handlers place in page data, so templates can write:
//
//	{{ browser .Info }} on {{ platform .Info }}
//	{{ if isBot .Info }}Robot!{{ end }}
package view

import (
	"html/template"

	"github.com/yanizio/signin/internal/requestinfo"
)

func buildFuncMap() template.FuncMap {
	return template.FuncMap{
		"dict":     dict,
		"browser":  func(i *requestinfo.RequestInfo) string { return uaField(i, func(u requestinfo.UA) string { return u.Browser }) },
		"platform": func(i *requestinfo.RequestInfo) string { return uaField(i, func(u requestinfo.UA) string { return u.Platform }) },
		"device":   func(i *requestinfo.RequestInfo) string { return uaField(i, func(u requestinfo.UA) string { return u.Device }) },
		"isBot":    func(i *requestinfo.RequestInfo) bool { return i != nil && i.UA.IsBot },
	}
}

func uaField(i *requestinfo.RequestInfo, f func(requestinfo.UA) string) string {
	if i == nil {
		return ""
	}
	return f(i.UA)
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
