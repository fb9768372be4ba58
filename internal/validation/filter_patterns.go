// Package validation checks filter plugin sources for patterns that break the
// preflight/execute contract.
package validation

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Error is one violation found in filter source code.
type Error struct {
	File    string
	Line    int
	Message string
	Code    string
}

func (e Error) String() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// graphMutators are methods that change the data graph or array contents.
// Preflight must leave both alone and describe its changes as actions.
var graphMutators = map[string]struct{}{
	"Insert":             {},
	"InsertWithID":       {},
	"Remove":             {},
	"RemovePath":         {},
	"Rename":             {},
	"DeepCopy":           {},
	"DeepCopyAs":         {},
	"Restore":            {},
	"Apply":              {},
	"SetStore":           {},
	"SetValues":          {},
	"SetFloat64":         {},
	"SetTuple":           {},
	"SetComponent":       {},
	"Fill":               {},
	"SetVertexCoords":    {},
	"SetElementPointIDs": {},
	"SetVertices":        {},
	"SetElements":        {},
	"SetRef":             {},
	"SetDimensions":      {},
	"SetSpacing":         {},
	"SetOrigin":          {},
	"SetUnits":           {},
}

// graphConstructors are datagraph package functions that insert objects.
var graphConstructors = map[string]struct{}{
	"CreateGroup":           {},
	"CreateAttributeMatrix": {},
	"CreateDataArray":       {},
	"CreateTypedArray":      {},
	"CreateImageGeometry":   {},
	"CreateNodeGeometry":    {},
}

var textAntiPatterns = []struct {
	re      *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`\bfmt\.Print(f|ln)?\(`), "Report through the MessageHandler instead of printing to stdout"},
	{regexp.MustCompile(`\blog\.(Print|Fatal|Panic)(f|ln)?\(`), "Report through the MessageHandler instead of the standard logger"},
	{regexp.MustCompile(`\bos\.Exit\(`), "Filters return errors; they never exit the process"},
	{regexp.MustCompile(`\btime\.Sleep\(`), "Do not block filters on timers; honour ctx instead"},
}

// ValidateFilterDirectory walks dir and validates every non-test Go file.
// Results are ordered by file then line.
func ValidateFilterDirectory(dir string) []Error {
	var errs []Error
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != dir && d.Name() == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		errs = append(errs, ValidateFilterFile(path)...)
		return nil
	})
	if err != nil {
		errs = append(errs, Error{File: dir, Message: "walk directory: " + err.Error()})
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].File != errs[j].File {
			return errs[i].File < errs[j].File
		}
		return errs[i].Line < errs[j].Line
	})
	return errs
}

// ValidateFilterFile runs the text and AST checks on one file.
func ValidateFilterFile(path string) []Error {
	errs := validateFileText(path)
	return append(errs, validateFileAST(path)...)
}

func validateFileText(path string) []Error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return []Error{{File: path, Message: "open file: " + err.Error()}}
	}
	defer func() { _ = f.Close() }()

	var errs []Error
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || isCommentLine(line) {
			continue
		}
		for _, p := range textAntiPatterns {
			if p.re.MatchString(line) {
				errs = append(errs, Error{File: path, Line: lineNum, Message: p.message, Code: strings.TrimSpace(line)})
			}
		}
	}
	return errs
}

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*")
}

func validateFileAST(path string) []Error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return []Error{{File: path, Message: "parse: " + err.Error()}}
	}
	var errs []Error
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || fn.Name.Name != "Preflight" || fn.Body == nil {
			continue
		}
		errs = append(errs, checkPreflightSignature(fset, path, fn)...)
		errs = append(errs, checkPreflightBody(fset, path, fn)...)
	}
	return errs
}

// checkPreflightSignature flags Preflight methods that take a concrete
// *datagraph.Graph rather than the read-only View.
func checkPreflightSignature(fset *token.FileSet, path string, fn *ast.FuncDecl) []Error {
	var errs []Error
	for _, field := range fn.Type.Params.List {
		star, ok := field.Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		if sel, ok := star.X.(*ast.SelectorExpr); ok && sel.Sel.Name == "Graph" {
			pos := fset.Position(field.Pos())
			errs = append(errs, Error{
				File:    path,
				Line:    pos.Line,
				Message: "Preflight must take datagraph.View, not *datagraph.Graph",
				Code:    "Preflight(..., *" + exprName(sel) + ", ...)",
			})
		}
	}
	return errs
}

func checkPreflightBody(fset *token.FileSet, path string, fn *ast.FuncDecl) []Error {
	var errs []Error
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		fun := call.Fun
		if idx, ok := fun.(*ast.IndexExpr); ok {
			fun = idx.X
		}
		if idx, ok := fun.(*ast.IndexListExpr); ok {
			fun = idx.X
		}
		sel, ok := fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		name := sel.Sel.Name
		pos := fset.Position(call.Pos())
		if pkg, ok := sel.X.(*ast.Ident); ok && pkg.Name == "datagraph" {
			if _, bad := graphConstructors[name]; bad {
				errs = append(errs, Error{
					File:    path,
					Line:    pos.Line,
					Message: "Preflight must not create objects; return a filterapi action instead",
					Code:    exprName(sel) + "(...)",
				})
			}
			return true
		}
		if _, bad := graphMutators[name]; bad {
			errs = append(errs, Error{
				File:    path,
				Line:    pos.Line,
				Message: "Preflight must not mutate the graph or array contents",
				Code:    exprName(sel) + "(...)",
			})
		}
		return true
	})
	return errs
}

func exprName(sel *ast.SelectorExpr) string {
	if id, ok := sel.X.(*ast.Ident); ok {
		return id.Name + "." + sel.Sel.Name
	}
	return sel.Sel.Name
}
