package main

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"sort"
	"strconv"
	"text/template"

	"github.com/gocrud/beans/scan"
)

const header = "// Code generated by beangen. DO NOT EDIT.\n\n"

var fileTemplate = template.Must(template.New("components").Parse(`package {{.Package}}

import (
	"github.com/gocrud/beans/di"
{{- range .Imports}}
	{{.Alias}} {{printf "%q" .Path}}
{{- end}}
)

// {{.Func}} 注册扫描发现的全部组件
func {{.Func}}(r *di.Registry) {
{{- range .Entries}}
	r.RegisterType({{printf "%q" .Name}}, di.TypeOf[*{{.Qualifier}}{{.Type}}]())
{{- end}}
}
`))

type options struct {
	Module    string // 模块路径，即 go.mod 中的 module
	Package   string // 生成文件的包名
	OutputDir string // 生成文件所在目录（相对扫描根）
	Func      string
}

type importSpec struct {
	Alias string
	Path  string
}

type entry struct {
	Name      string
	Qualifier string
	Type      string
}

// generate 渲染注册文件。与输出文件同目录的组件不需要导入。
func generate(components []scan.Component, opts options) ([]byte, error) {
	outDir := path.Clean(opts.OutputDir)

	aliases := make(map[string]string)
	var imports []importSpec
	var entries []entry

	for _, c := range components {
		dir := path.Dir(c.File)
		if c.Package == "main" && dir != outDir {
			return nil, fmt.Errorf("component %s in %s: package main cannot be imported", c.TypeName(), c.File)
		}

		e := entry{Name: c.Name, Type: c.Type}
		if dir != outDir {
			importPath := opts.Module
			if dir != "." {
				importPath = path.Join(opts.Module, dir)
			}
			alias, ok := aliases[importPath]
			if !ok {
				alias = c.Package + strconv.Itoa(len(imports))
				aliases[importPath] = alias
				imports = append(imports, importSpec{Alias: alias, Path: importPath})
			}
			e.Qualifier = alias + "."
		} else if c.Package != opts.Package {
			return nil, fmt.Errorf("component %s in %s: package %s differs from output package %s",
				c.TypeName(), c.File, c.Package, opts.Package)
		}
		entries = append(entries, e)
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })

	var buf bytes.Buffer
	buf.WriteString(header)
	err := fileTemplate.Execute(&buf, map[string]any{
		"Package": opts.Package,
		"Func":    opts.Func,
		"Imports": imports,
		"Entries": entries,
	})
	if err != nil {
		return nil, err
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return src, nil
}
