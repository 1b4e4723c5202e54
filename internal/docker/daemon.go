package docker

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type dockerDaemonConfig struct {
	Runtimes map[string]struct {
		Path string `json:"path"`
	} `json:"runtimes"`
}

const GVisorRuntime = "runsc"

// DaemonConfigPath is the location of the docker daemon configuration file.
var DaemonConfigPath = "/etc/docker/daemon.json"

func IsGvisorInstalled() bool {
	return IsRuntimeConfigured(DaemonConfigPath, GVisorRuntime)
}

// IsRuntimeConfigured reports if the daemon configuration at the given path
// registers the named OCI runtime.
func IsRuntimeConfigured(daemonPath string, runtime string) bool {
	if _, err := os.Stat(daemonPath); errors.Is(err, os.ErrNotExist) {
		return false
	}

	fileBytes, err := os.ReadFile(daemonPath)

	if err != nil {
		log.Err(err).Str("path", daemonPath).Msg("failed to read daemon file but it exists")
		return false
	}

	daemon := &dockerDaemonConfig{}

	if err := json.Unmarshal(fileBytes, daemon); err != nil {
		log.Err(err).Str("path", daemonPath).Msg("failed to parse daemon file")
		return false
	}

	_, ok := daemon.Runtimes[runtime]
	return ok
}
