package main

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// expandArgs resolves "dir/..." patterns to every directory below dir that
// holds Go files. Other arguments pass through unchanged.
func expandArgs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		root, ok := strings.CutSuffix(arg, "/...")
		if !ok {
			out = append(out, arg)
			continue
		}
		if root == "" {
			root = "."
		}

		seen := map[string]bool{}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".go") && !seen[filepath.Dir(path)] {
				seen[filepath.Dir(path)] = true
				out = append(out, filepath.Dir(path))
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "confinegen: expand %s", arg)
		}
	}
	return out, nil
}
