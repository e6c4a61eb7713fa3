package scan

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gocrud/beans/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultMarker 组件标记指令，写在类型声明的文档注释中：
//
//	//di:component
//	//di:component name=userService
//	type UserService struct { ... }
const DefaultMarker = "di:component"

// Component 是扫描发现的一个组件
type Component struct {
	Name    string `json:"name"`    // Bean 名称，默认为 Package.Type
	Package string `json:"package"` // 声明所在的 Go 包名
	Type    string `json:"type"`    // 类型名
	File    string `json:"file"`    // 相对 FS 根的文件路径
	Line    int    `json:"line"`
}

// TypeName 返回 "pkg.Type"，与 di.TypeName 的格式一致
func (c Component) TypeName() string {
	return c.Package + "." + c.Type
}

// Scanner 在 FS 中查找带组件标记的类型声明。
// Scanner 只负责发现，不会修改任何 Registry。
type Scanner struct {
	FS     fs.FS
	Root   string // 扫描起点，默认 "."
	Marker string // 标记指令，默认 DefaultMarker
	Logger logging.Logger

	// Concurrency 同时解析的文件数，<= 0 时不限制
	Concurrency int
}

// Scan 遍历 FS 并返回所有组件，按文件和行号排序。
// 任一文件读取或解析失败时整个扫描失败，不返回部分结果。
func (s *Scanner) Scan(ctx context.Context) ([]Component, error) {
	if s.FS == nil {
		return nil, fmt.Errorf("scan: no file system configured")
	}
	root := s.Root
	if root == "" {
		root = "."
	}
	marker := s.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	logger := s.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	files, err := s.collect(root)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	found := make([][]Component, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			components, err := s.parseFile(fset, file, marker)
			if err != nil {
				return err
			}
			found[i] = components
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var components []Component
	for _, list := range found {
		components = append(components, list...)
	}
	sort.SliceStable(components, func(i, j int) bool {
		if components[i].File != components[j].File {
			return components[i].File < components[j].File
		}
		return components[i].Line < components[j].Line
	})

	logger.Debug("scan completed",
		logging.Field{Key: "root", Value: root},
		logging.Field{Key: "files", Value: len(files)},
		logging.Field{Key: "components", Value: len(components)})
	return components, nil
}

// collect 列出需要解析的 Go 源文件，忽略测试文件以及 go 工具同样忽略的目录
func (s *Scanner) collect(root string) ([]string, error) {
	var files []string
	err := fs.WalkDir(s.FS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scan: walk %s: %w", p, err)
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && (name == "testdata" || name == "vendor" ||
				strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Scanner) parseFile(fset *token.FileSet, file, marker string) ([]Component, error) {
	src, err := fs.ReadFile(s.FS, file)
	if err != nil {
		return nil, fmt.Errorf("scan: read %s: %w", file, err)
	}

	f, err := parser.ParseFile(fset, file, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("scan: parse %s: %w", file, err)
	}

	var components []Component
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)

			doc := ts.Doc
			// 单个类型声明时注释挂在 GenDecl 上
			if doc == nil && !gen.Lparen.IsValid() {
				doc = gen.Doc
			}
			args, ok := findMarker(doc, marker)
			if !ok {
				continue
			}
			if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
				return nil, fmt.Errorf("scan: %s: generic type %s cannot be a component",
					fset.Position(ts.Pos()), ts.Name.Name)
			}

			c := Component{
				Package: f.Name.Name,
				Type:    ts.Name.Name,
				File:    path.Clean(file),
				Line:    fset.Position(ts.Pos()).Line,
			}
			c.Name, err = componentName(args, c)
			if err != nil {
				return nil, fmt.Errorf("scan: %s: %w", fset.Position(ts.Pos()), err)
			}
			components = append(components, c)
		}
	}
	return components, nil
}

// findMarker 在注释组中查找标记指令，返回指令后面的参数
func findMarker(doc *ast.CommentGroup, marker string) ([]string, bool) {
	if doc == nil {
		return nil, false
	}
	for _, comment := range doc.List {
		// 指令必须紧跟 "//"，与 //go: 指令的写法一致
		text, ok := strings.CutPrefix(comment.Text, "//")
		if !ok {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) == 0 || fields[0] != marker {
			continue
		}
		if strings.HasPrefix(text, " ") {
			continue
		}
		return fields[1:], true
	}
	return nil, false
}

func componentName(args []string, c Component) (string, error) {
	name := c.TypeName()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return "", fmt.Errorf("malformed marker argument %q", arg)
		}
		switch key {
		case "name":
			if value == "" {
				return "", fmt.Errorf("empty component name on %s", c.TypeName())
			}
			name = value
		default:
			return "", fmt.Errorf("unknown marker argument %q", key)
		}
	}
	return name, nil
}
