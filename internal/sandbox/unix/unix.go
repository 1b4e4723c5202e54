package unix

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConvertPathToUnix takes a complete path and converts it to the form docker
// expects for bind mounts. Windows drive paths C:\a\b become /c/a/b, paths
// without a drive are only made absolute.
func ConvertPathToUnix(path string) string {
	abs, err := filepath.Abs(path)

	if err != nil {
		abs = path
	}

	drive, rest, found := strings.Cut(abs, ":")

	if !found || len(drive) != 1 {
		return strings.ReplaceAll(abs, "\\", "/")
	}

	return strings.ReplaceAll(fmt.Sprintf("/%s%s", strings.ToLower(drive), rest), "\\", "/")
}
