package expression

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/autobrr/prunetree/pkg/regex"
)

type CompiledExpression struct {
	Program *vm.Program
	Text    string
}

// FileEnv is the environment ignore expressions are evaluated against.
type FileEnv struct {
	Path     string
	Name     string
	Dir      string
	Ext      string
	Size     int64
	ModTime  time.Time
	AgeHours float64
	Nlink    uint64
	Mode     string
}

var patternCache sync.Map

func NewFileEnv(path string, info fs.FileInfo, nlink uint64, now time.Time) *FileEnv {
	return &FileEnv{
		Path:     path,
		Name:     info.Name(),
		Dir:      filepath.Dir(path),
		Ext:      strings.ToLower(filepath.Ext(path)),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		AgeHours: now.Sub(info.ModTime()).Hours(),
		Nlink:    nlink,
		Mode:     info.Mode().String(),
	}
}

func (e *FileEnv) HasPrefix(s string, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

func (e *FileEnv) HasSuffix(s string, suffix string) bool {
	return strings.HasSuffix(s, suffix)
}

func (e *FileEnv) Contains(s string, substr string) bool {
	return strings.Contains(s, substr)
}

// RegexMatch matches the file path against pattern.
func (e *FileEnv) RegexMatch(pattern string) bool {
	var compiled *regex.Pattern
	if cached, ok := patternCache.Load(pattern); ok {
		compiled = cached.(*regex.Pattern)
	} else {
		p, err := regex.Compile(pattern)
		if err != nil {
			return false
		}
		patternCache.Store(pattern, p)
		compiled = p
	}

	match, err := regex.Check(e.Path, compiled)
	if err != nil {
		return false
	}
	return match
}

// Compile compiles every expression against FileEnv; each must evaluate to a bool.
func Compile(expressions []string) ([]CompiledExpression, error) {
	compiled := make([]CompiledExpression, 0, len(expressions))

	for _, text := range expressions {
		program, err := expr.Compile(text, expr.Env(&FileEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", text, err)
		}

		compiled = append(compiled, CompiledExpression{
			Program: program,
			Text:    text,
		})
	}

	return compiled, nil
}

// CheckAnyMatch returns true and the matching expression when env matches any expression.
func CheckAnyMatch(env *FileEnv, expressions []CompiledExpression) (bool, string, error) {
	for _, expression := range expressions {
		result, err := expr.Run(expression.Program, env)
		if err != nil {
			return false, "", fmt.Errorf("check expression %q: %w", expression.Text, err)
		}

		match, ok := result.(bool)
		if !ok {
			return false, "", fmt.Errorf("expression %q returned %T, not bool", expression.Text, result)
		}

		if match {
			return true, expression.Text, nil
		}
	}

	return false, "", nil
}
