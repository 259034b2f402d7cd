// Package confkit provides the small set of configuration-loading helpers shared by
// every package that reads a YAML config file or project-relative path: dotenv
// bootstrap, project-root discovery, and env-var expansion.
package confkit

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file from the process working directory, if present.
// Missing files are not an error: local dev convenience only, never required in prod.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

var moduleRoot = sync.OnceValue(func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		wd, _ := os.Getwd()
		return wd
	}
	// internal/confkit/confkit.go -> walk up two directories to the module root.
	return filepath.Dir(filepath.Dir(filepath.Dir(file)))
})

// ProjectPath resolves a path relative to the module root, falling back to the
// process working directory if the module root cannot be determined. An absolute
// path is returned unchanged.
func ProjectPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(moduleRoot(), rel)
}

// MustProjectPath resolves rel relative to the module root and panics if rel is empty.
func MustProjectPath(rel string) string {
	if rel == "" {
		panic("confkit: empty project path")
	}
	return ProjectPath(rel)
}
