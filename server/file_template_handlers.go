package server

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

type pageTemplates struct {
	login   *template.Template
	page    *template.Template
	loading *template.Template
}

func parsePageTemplates() (*pageTemplates, error) {
	var (
		p   pageTemplates
		err error
	)
	if p.login, err = ParseTemplate("login.html"); err != nil {
		return nil, err
	}
	if p.page, err = ParseTemplate("page.html"); err != nil {
		return nil, err
	}
	if p.loading, err = ParseTemplate("loading.html"); err != nil {
		return nil, err
	}
	return &p, nil
}
