//go:build tools
// +build tools

// Package tools records build-time dependencies that aren't used by the
// library itself, but are tracked by go mod and required to generate the
// verdict enum strings.
package build

import (
	_ "golang.org/x/tools/cmd/stringer"
)
