package scan_test

import (
	"context"
	"errors"
	htmltemplate "html/template"
	"testing"
	"testing/fstest"
	texttemplate "text/template"

	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Repo struct {
	DSN string
}

type Service struct {
	Repo *Repo `di:"scan_test.Repo"`
}

type Handler struct {
	Service *Service `di:"svc"`
}

const repoSrc = `package scan_test

//di:component
type Repo struct {
	DSN string
}

// helper 不是组件
type helper struct{}
`

const serviceSrc = `package scan_test

type (
	// Service 业务服务
	//
	//di:component name=svc
	Service struct {
		Repo *Repo ` + "`di:\"scan_test.Repo\"`" + `
	}

	//di:component
	Handler struct {
		Service *Service ` + "`di:\"svc\"`" + `
	}

	plain struct{}
)
`

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"repo.go":                   {Data: []byte(repoSrc)},
		"svc/service.go":            {Data: []byte(serviceSrc)},
		"svc/service_test.go":       {Data: []byte("package scan_test\n\n//di:component\ntype Fake struct{}\n")},
		"testdata/ignored.go":       {Data: []byte("not go at all")},
		"_build/ignored.go":         {Data: []byte("not go at all")},
		"README.md":                 {Data: []byte("//di:component")},
		"svc/internal/commented.go": {Data: []byte("package scan_test\n\n// di:component\ntype Spaced struct{}\n")},
	}
}

func TestScanFindsMarkedTypes(t *testing.T) {
	s := &scan.Scanner{FS: sampleFS()}

	components, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, components, 3)

	assert.Equal(t, "scan_test.Repo", components[0].Name)
	assert.Equal(t, "repo.go", components[0].File)
	assert.Equal(t, 4, components[0].Line)

	assert.Equal(t, "svc", components[1].Name)
	assert.Equal(t, "Service", components[1].Type)
	assert.Equal(t, "scan_test.Service", components[1].TypeName())

	assert.Equal(t, "scan_test.Handler", components[2].Name)
	assert.Equal(t, "svc/service.go", components[2].File)
}

func TestScanWithRootAndMarker(t *testing.T) {
	fsys := fstest.MapFS{
		"app/a.go":   {Data: []byte("package app\n\n//bean:export name=a\ntype A struct{}\n")},
		"other/b.go": {Data: []byte("package other\n\n//bean:export\ntype B struct{}\n")},
	}
	s := &scan.Scanner{FS: fsys, Root: "app", Marker: "bean:export", Concurrency: 1}

	components, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, "a", components[0].Name)
	assert.Equal(t, "app", components[0].Package)
}

func TestScanFailsOnParseError(t *testing.T) {
	fsys := sampleFS()
	fsys["broken.go"] = &fstest.MapFile{Data: []byte("package scan_test\n\ntype Broken struct {\n")}

	components, err := (&scan.Scanner{FS: fsys}).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
	assert.Nil(t, components)
}

func TestScanFailsOnMalformedMarker(t *testing.T) {
	fsys := fstest.MapFS{
		"a.go": {Data: []byte("package p\n\n//di:component alias\ntype A struct{}\n")},
	}
	_, err := (&scan.Scanner{FS: fsys}).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestScanRejectsGenericComponent(t *testing.T) {
	fsys := fstest.MapFS{
		"a.go": {Data: []byte("package p\n\n//di:component\ntype Box[T any] struct{ V T }\n")},
	}
	_, err := (&scan.Scanner{FS: fsys}).Scan(context.Background())
	require.Error(t, err)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := (&scan.Scanner{FS: fstest.MapFS{}, Root: "nowhere"}).Scan(context.Background())
	require.Error(t, err)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&scan.Scanner{FS: sampleFS()}).Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func testCatalog(t *testing.T) scan.Catalog {
	t.Helper()
	c, err := scan.NewCatalog(di.TypeOf[Repo]())
	require.NoError(t, err)
	require.NoError(t, scan.AddType[*Service](c))
	require.NoError(t, scan.AddType[Handler](c))
	return c
}

func TestAutoRegister(t *testing.T) {
	reg := di.New()

	components, err := scan.AutoRegister(context.Background(), reg, &scan.Scanner{FS: sampleFS()}, testCatalog(t))
	require.NoError(t, err)
	assert.Len(t, components, 3)
	assert.Equal(t, []string{"scan_test.Handler", "scan_test.Repo", "svc"}, reg.Names())

	handler, err := di.Resolve[*Handler](reg, "scan_test.Handler")
	require.NoError(t, err)
	require.NotNil(t, handler.Service)
	require.NotNil(t, handler.Service.Repo)

	repo := di.MustResolve[*Repo](reg, "scan_test.Repo")
	assert.Same(t, repo, handler.Service.Repo)
}

func TestRegisterIsAllOrNothing(t *testing.T) {
	reg := di.New()
	catalog, err := scan.NewCatalog(di.TypeOf[Repo]())
	require.NoError(t, err)

	components, err := (&scan.Scanner{FS: sampleFS()}).Scan(context.Background())
	require.NoError(t, err)

	err = scan.Register(reg, catalog, components)
	var unknown *scan.UnknownTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "scan_test.Service", unknown.Component.TypeName())
	assert.Empty(t, reg.Names())
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	reg := di.New()
	components := []scan.Component{
		{Name: "x", Package: "scan_test", Type: "Repo", File: "a.go", Line: 1},
		{Name: "x", Package: "scan_test", Type: "Service", File: "b.go", Line: 2},
	}

	err := scan.Register(reg, testCatalog(t), components)
	var dup *scan.DuplicateComponentError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "x", dup.Name)
	assert.Empty(t, reg.Names())
}

func TestCatalogRejectsAmbiguousTypeNames(t *testing.T) {
	c, err := scan.NewCatalog(di.TypeOf[texttemplate.Template](), di.TypeOf[*Repo]())
	require.NoError(t, err)

	// T 与 *T 是同一类型
	require.NoError(t, scan.AddType[Repo](c))
	require.NoError(t, scan.AddType[*texttemplate.Template](c))

	err = scan.AddType[htmltemplate.Template](c)
	var ambiguous *scan.AmbiguousTypeError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "template.Template", ambiguous.TypeName)
	assert.Contains(t, err.Error(), "text/template.Template")
	assert.Contains(t, err.Error(), "html/template.Template")

	reg := di.New()
	err = scan.Register(reg, c, []scan.Component{
		{Name: "tpl", Package: "template", Type: "Template", File: "tpl.go", Line: 3},
	})
	require.ErrorAs(t, err, &ambiguous)
	assert.Empty(t, reg.Names())

	_, err = scan.NewCatalog(di.TypeOf[texttemplate.Template](), di.TypeOf[htmltemplate.Template]())
	assert.ErrorAs(t, err, &ambiguous)
}
