package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	components := []scan.Component{
		{Name: "repo.User", Package: "repo", Type: "User", File: "internal/repo/user.go"},
		{Name: "svc", Package: "service", Type: "Service", File: "internal/service/service.go"},
		{Name: "repo.Order", Package: "repo", Type: "Order", File: "internal/repo/order.go"},
		{Name: "app.Local", Package: "app", Type: "Local", File: "app/local.go"},
	}

	src, err := generate(components, options{
		Module:    "example.com/shop",
		Package:   "app",
		OutputDir: "app",
		Func:      "RegisterComponents",
	})
	require.NoError(t, err)

	code := string(src)
	assert.Contains(t, code, "// Code generated by beangen. DO NOT EDIT.")
	assert.Contains(t, code, "package app")
	assert.Contains(t, code, `repo0 "example.com/shop/internal/repo"`)
	assert.Contains(t, code, `service1 "example.com/shop/internal/service"`)
	assert.Contains(t, code, `r.RegisterType("repo.User", di.TypeOf[*repo0.User]())`)
	assert.Contains(t, code, `r.RegisterType("repo.Order", di.TypeOf[*repo0.Order]())`)
	assert.Contains(t, code, `r.RegisterType("svc", di.TypeOf[*service1.Service]())`)
	assert.Contains(t, code, `r.RegisterType("app.Local", di.TypeOf[*Local]())`)
}

func TestGenerateRejectsForeignMain(t *testing.T) {
	components := []scan.Component{
		{Name: "main.Tool", Package: "main", Type: "Tool", File: "cmd/tool/main.go"},
	}
	_, err := generate(components, options{Module: "example.com/shop", Package: "app", OutputDir: "app", Func: "Register"})
	require.Error(t, err)
}

func TestGenerateRejectsPackageMismatch(t *testing.T) {
	components := []scan.Component{
		{Name: "x", Package: "other", Type: "X", File: "app/x.go"},
	}
	_, err := generate(components, options{Module: "example.com/shop", Package: "app", OutputDir: "app", Func: "Register"})
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("go.mod", "module example.com/shop\n\ngo 1.25\n")
	write("store/store.go", "package store\n\n//di:component name=store\ntype Store struct{}\n")
	write("app/app.go", "package app\n")

	out := filepath.Join(root, "app", "beans_gen.go")
	require.NoError(t, run(root, "", out, "", "RegisterComponents", scan.DefaultMarker, logging.Nop()))

	src, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(src), `store0 "example.com/shop/store"`)
	assert.Contains(t, string(src), `r.RegisterType("store", di.TypeOf[*store0.Store]())`)
}

func TestReadModulePath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "go.mod")
	require.NoError(t, os.WriteFile(p, []byte("// comment\nmodule \"example.com/quoted\"\n"), 0o644))

	module, err := readModulePath(p)
	require.NoError(t, err)
	assert.Equal(t, "example.com/quoted", module)

	_, err = readModulePath(filepath.Join(t.TempDir(), "missing.mod"))
	assert.Error(t, err)
}
