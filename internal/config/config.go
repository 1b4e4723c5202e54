package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

var currentEnvironment = ""

const (
	DevelopmentEnvironment = "development"
	StagingEnvironment     = "staging"
	ProductionEnvironment  = "production"

	DefaultEnvironment = DevelopmentEnvironment
)

// environmentVariables are checked in order, the first non empty value wins.
var environmentVariables = []string{"JUDGE_ENVIRONMENT", "environment"}

// envOnce is used to ensure concurrent tests only pull the value once at startup. While it is
// mainly used for tests, it also ensures safely with the chance the value is overwritten during
// runtime.
var envOnce sync.Once

// GetCurrentEnvironment returns the environment the judge is deployed in,
// one of development, staging or production. Unknown values fall back to
// development.
func GetCurrentEnvironment() string {
	envOnce.Do(func() {
		currentEnvironment = DefaultEnvironment

		for _, name := range environmentVariables {
			value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))

			if value == "" {
				continue
			}

			for _, s := range []string{StagingEnvironment, ProductionEnvironment, DevelopmentEnvironment} {
				if value == s {
					currentEnvironment = s
					return
				}
			}

			return
		}
	})

	return currentEnvironment
}

// GetCurrentOs returns the current environment if the system
// is running in windows or a linux environment. E.g defaulting to
// linux for mac.
func GetCurrentOs() string {
	if strings.EqualFold(runtime.GOOS, "windows") {
		return "windows"
	}

	return "linux"
}

// DefaultWorkspaceRoot is the directory under which every submission gets its
// own ephemeral workspace when no root is configured.
func DefaultWorkspaceRoot() string {
	return filepath.Join(os.TempDir(), "judge", "workspaces")
}
