// beangen 扫描源码中带 //di:component 标记的类型，生成注册函数。
//
//	//go:generate go run github.com/gocrud/beans/cmd/beangen -root ../.. -out beans_gen.go
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/scan"
)

func main() {
	var (
		root   = flag.String("root", ".", "module root to scan")
		module = flag.String("module", "", "module path (default: read from go.mod under root)")
		out    = flag.String("out", "beans_gen.go", "output file")
		pkg    = flag.String("pkg", "", "package name of the output file (default: directory name)")
		fn     = flag.String("func", "RegisterComponents", "name of the generated function")
		marker = flag.String("marker", scan.DefaultMarker, "marker directive")
		level  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := newLogger(*level)
	if err := run(*root, *module, *out, *pkg, *fn, *marker, logger); err != nil {
		logger.Error("beangen failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}

func newLogger(level string) logging.Logger {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		lvl = logging.LogLevelInfo
	}
	factory := logging.NewLoggingBuilder().
		SetMinimumLevel(lvl).
		AddConsole().
		Build()
	return factory.CreateLogger("beangen")
}

func run(root, module, out, pkg, fn, marker string, logger logging.Logger) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	outDir, err := filepath.Rel(absRoot, filepath.Dir(absOut))
	if err != nil || strings.HasPrefix(outDir, "..") {
		return fmt.Errorf("output %s is outside of %s", out, root)
	}

	if module == "" {
		module, err = readModulePath(filepath.Join(absRoot, "go.mod"))
		if err != nil {
			return err
		}
	}
	if pkg == "" {
		pkg = filepath.Base(filepath.Dir(absOut))
	}

	s := &scan.Scanner{FS: os.DirFS(absRoot), Marker: marker, Logger: logger}
	components, err := s.Scan(context.Background())
	if err != nil {
		return err
	}

	src, err := generate(components, options{
		Module:    module,
		Package:   pkg,
		OutputDir: filepath.ToSlash(outDir),
		Func:      fn,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(absOut, src, 0o644); err != nil {
		return err
	}

	logger.Info("registration file generated",
		logging.Field{Key: "file", Value: out},
		logging.Field{Key: "components", Value: len(components)})
	return nil
}

// readModulePath 读取 go.mod 中的 module 指令
func readModulePath(gomod string) (string, error) {
	f, err := os.Open(gomod)
	if err != nil {
		return "", fmt.Errorf("read module path: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module"); ok && rest != "" && (rest[0] == ' ' || rest[0] == '\t') {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no module directive in " + gomod)
}
