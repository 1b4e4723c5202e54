package sandbox

import (
	"time"

	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/config"
	"compile-and-judge/internal/docker"
	"compile-and-judge/internal/memory"
)

type Runtime string

const (
	Default Runtime = ""
	GVisor  Runtime = "runsc"
)

func (r Runtime) String() string {
	if r == Default {
		return "runc"
	}

	return string(r)
}

// ResourceLimits are the constraints applied to every sandboxed invocation of
// a single judgment. They are immutable for the life of that judgment.
type ResourceLimits struct {
	// The wall clock deadline of a single run of a test case.
	WallTime time.Duration
	// The wall clock deadline of the single compile invocation.
	CompileTime time.Duration
	// The hard memory ceiling of the sandbox, swap is capped to the same
	// value so it cannot be used to escape the limit.
	Memory memory.Memory
	// The number of CPUs the sandbox may use, e.g. 0.5 or 1.
	CPUShare float64
	// The maximum number of processes inside the sandbox.
	PidLimit int64
}

// WithDefaults fills every unset limit from the given defaults.
func (l ResourceLimits) WithDefaults(defaults ResourceLimits) ResourceLimits {
	if l.WallTime <= 0 {
		l.WallTime = defaults.WallTime
	}
	if l.CompileTime <= 0 {
		l.CompileTime = defaults.CompileTime
	}
	if l.Memory <= 0 {
		l.Memory = defaults.Memory
	}
	if l.CPUShare <= 0 {
		l.CPUShare = defaults.CPUShare
	}
	if l.PidLimit <= 0 {
		l.PidLimit = defaults.PidLimit
	}

	return l
}

// minimumMemory is the smallest memory limit docker accepts.
const minimumMemory = memory.Megabyte * 6

// Clamp keeps the limits inside the range the sandbox can enforce.
func (l ResourceLimits) Clamp(maximum ResourceLimits) ResourceLimits {
	if l.Memory < minimumMemory {
		l.Memory = minimumMemory
	}
	if maximum.Memory > 0 && l.Memory > maximum.Memory {
		l.Memory = maximum.Memory
	}
	if maximum.WallTime > 0 && l.WallTime > maximum.WallTime {
		l.WallTime = maximum.WallTime
	}
	if maximum.CompileTime > 0 && l.CompileTime > maximum.CompileTime {
		l.CompileTime = maximum.CompileTime
	}
	if maximum.CPUShare > 0 && l.CPUShare > maximum.CPUShare {
		l.CPUShare = maximum.CPUShare
	}
	if maximum.PidLimit > 0 && l.PidLimit > maximum.PidLimit {
		l.PidLimit = maximum.PidLimit
	}

	return l
}

type Profile struct {
	// The runtime the container image will be used. Please reference Runtime
	// for more information about which runtimes are currently supported.
	Runtime Runtime

	// The limits used when a submission does not specify its own.
	DefaultLimits ResourceLimits

	// The upper bound of any limit a submission can request.
	MaximumLimits ResourceLimits
}

var defaultLimits = ResourceLimits{
	WallTime:    time.Second * 2,
	CompileTime: time.Second * 10,
	Memory:      memory.Megabyte * 256,
	CPUShare:    1,
	PidLimit:    64,
}

var maximumLimits = ResourceLimits{
	WallTime:    time.Second * 30,
	CompileTime: time.Minute,
	Memory:      memory.Gigabyte * 2,
	CPUShare:    4,
	PidLimit:    256,
}

// Profiles is a list of all currently supported profiles in the system
var Profiles = map[string]*Profile{
	"development_linux": {
		Runtime:       GVisor,
		DefaultLimits: defaultLimits,
		MaximumLimits: maximumLimits,
	},
	"development_windows": {
		Runtime:       Default,
		DefaultLimits: defaultLimits,
		MaximumLimits: maximumLimits,
	},
	"production": {
		Runtime:       GVisor,
		DefaultLimits: defaultLimits,
		MaximumLimits: ResourceLimits{
			WallTime:    time.Second * 10,
			CompileTime: time.Second * 30,
			Memory:      memory.Gigabyte,
			CPUShare:    1,
			PidLimit:    128,
		},
	},
	"staging": {
		Runtime:       GVisor,
		DefaultLimits: defaultLimits,
		MaximumLimits: maximumLimits,
	},
}

// GetProfileForMachine resolves the profile for the current environment and
// operating system. When the profile asks for gVisor but the docker daemon
// has no runsc runtime configured the default runtime is used instead.
func GetProfileForMachine() *Profile {
	environment := config.GetCurrentEnvironment()
	key := environment

	if environment == config.DevelopmentEnvironment {
		key = environment + "_" + config.GetCurrentOs()
	}

	profile, ok := Profiles[key]

	if !ok {
		profile = Profiles["production"]
	}

	selected := *profile

	if selected.Runtime == GVisor && !docker.IsGvisorInstalled() {
		log.Warn().
			Str("environment", environment).
			Msg("gVisor runtime is not installed, falling back to the default runtime")

		selected.Runtime = Default
	}

	return &selected
}
