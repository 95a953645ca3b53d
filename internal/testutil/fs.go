package testutil

import (
	"io/fs"
	"os"
	"testing"
)

// ModuleFS returns the module root as a filesystem so tests can read the same
// assets/ tree that main embeds.
func ModuleFS(t *testing.T) fs.FS {
	t.Helper()
	root := findModuleRoot()
	if root == "" {
		t.Fatal("module root with assets/ not found")
	}
	return os.DirFS(root)
}

// ReadAsset reads one file below the module root.
func ReadAsset(t *testing.T, name string) []byte {
	t.Helper()
	data, err := fs.ReadFile(ModuleFS(t), name)
	if err != nil {
		t.Fatalf("cannot read %s: %v", name, err)
	}
	return data
}
