// Package pathjoin implements the one piece of path composition shared by
// both address spaces: concatenate a configured root directory with a
// mount-relative path that always begins with "/". There is no
// normalization and no symlink resolution — callers own the lifetime of
// the resulting string.
package pathjoin

// Join concatenates root and rel verbatim. rel is expected to start with
// "/"; root is expected to have no trailing "/".
func Join(root, rel string) string {
	return root + rel
}
