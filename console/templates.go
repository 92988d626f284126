package console

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

// Page templates, each rendered inside layout.html
const (
	pageHome       = "home.html"
	pageLogin      = "login.html"
	pageRegister   = "register.html"
	pageForbidden  = "forbidden.html"
	pageAccount    = "account.html"
	pageAdmin      = "admin.html"
	pageAdminUsers = "admin_users.html"
)

var pageNames = []string{pageHome, pageLogin, pageRegister, pageForbidden, pageAccount, pageAdmin, pageAdminUsers}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// parsePages pairs the layout with every page so each can define its own content block.
func parsePages() (map[string]*template.Template, error) {
	files := TemplateFilesFS()
	layout, err := template.ParseFS(files, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		base, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		page, err := base.ParseFS(files, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = page
	}
	return pages, nil
}
