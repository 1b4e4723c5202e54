package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/memory"
)

// dockerAPI is the subset of the docker client the executor depends on.
type dockerAPI interface {
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, container string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStats(ctx context.Context, containerID string, stream bool) (types.ContainerStats, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

var _ dockerAPI = (*client.Client)(nil)

type DockerConfig struct {
	// The OCI runtime the containers are created with, e.g. gVisor.
	Runtime Runtime
	// The user the command runs as inside the container, empty keeps the
	// user defined by the image.
	User string
	// The size of the writable /tmp area, the rest of the root filesystem
	// is read only.
	TmpfsSize memory.Memory
	// The stack size limit of the sandboxed processes.
	StackSize memory.Memory
	// How long a killed container is given to stop before it is forcefully
	// removed.
	KillGracePeriod time.Duration
	// The maximum amount of standard output and error captured, anything
	// beyond is discarded.
	MaxStdout memory.Memory
	MaxStderr memory.Memory
}

var DefaultDockerConfig = DockerConfig{
	Runtime:         Default,
	TmpfsSize:       memory.Megabyte * 64,
	StackSize:       memory.Megabyte * 64,
	KillGracePeriod: time.Millisecond * 250,
	MaxStdout:       memory.Megabyte * 16,
	MaxStderr:       memory.Megabyte,
}

// DockerExecutor provisions a new container for every single invocation.
// Containers have no network, a read only root filesystem, capped memory,
// swap, cpu and process count, and the submission workspace bind-mounted at
// ContainerWorkspacePath.
type DockerExecutor struct {
	client dockerAPI
	config DockerConfig
}

func NewDockerExecutor(dockerClient *client.Client, config DockerConfig) *DockerExecutor {
	return newDockerExecutor(dockerClient, config)
}

func newDockerExecutor(api dockerAPI, config DockerConfig) *DockerExecutor {
	if config.KillGracePeriod <= 0 {
		config.KillGracePeriod = DefaultDockerConfig.KillGracePeriod
	}
	if config.MaxStdout <= 0 {
		config.MaxStdout = DefaultDockerConfig.MaxStdout
	}
	if config.MaxStderr <= 0 {
		config.MaxStderr = DefaultDockerConfig.MaxStderr
	}
	if config.TmpfsSize <= 0 {
		config.TmpfsSize = DefaultDockerConfig.TmpfsSize
	}

	return &DockerExecutor{client: api, config: config}
}

// Execute runs the invocation to completion or until its deadline expires.
func (d *DockerExecutor) Execute(ctx context.Context, invocation *Invocation) (*Execution, error) {
	if len(invocation.Command) == 0 {
		return nil, sandboxError(errors.New("no command provided"), "invalid invocation")
	}

	if invocation.Workspace == nil {
		return nil, sandboxError(errors.New("no workspace provided"), "invalid invocation")
	}

	if invocation.Timeout <= 0 {
		return nil, sandboxError(errors.New("no deadline provided"), "invalid invocation")
	}

	if _, _, err := d.client.ImageInspectWithRaw(ctx, invocation.Image); err != nil {
		return nil, sandboxError(err, fmt.Sprintf("runtime image %s is not available", invocation.Image))
	}

	created, err := d.client.ContainerCreate(
		ctx,
		d.containerConfig(invocation),
		d.hostConfig(invocation),
		nil,
		nil,
		fmt.Sprintf("judge-%s", uuid.NewString()),
	)

	if err != nil {
		return nil, sandboxError(err, "failed to create container")
	}

	containerID := created.ID
	defer d.remove(containerID)

	attach, err := d.client.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})

	if err != nil {
		return nil, sandboxError(err, "failed to attach to container")
	}

	defer attach.Close()

	stdout := newBoundedBuffer(d.config.MaxStdout)
	stderr := newBoundedBuffer(d.config.MaxStderr)
	outputDone := make(chan error, 1)

	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		outputDone <- copyErr
	}()

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()

	var peak peakMemory
	statsDone := make(chan struct{})

	go func() {
		defer close(statsDone)
		d.sampleMemory(statsCtx, containerID, &peak)
	}()

	// the wait is registered before the container starts, otherwise a fast
	// exiting command could finish before anyone is listening.
	waitCtx, cancelWait := context.WithCancel(context.Background())
	defer cancelWait()

	statusCh, waitErrCh := d.client.ContainerWait(waitCtx, containerID, container.WaitConditionNextExit)

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, sandboxError(err, "failed to start container")
	}

	started := time.Now()
	go writeStdin(&attach, invocation.Stdin)

	timer := time.NewTimer(invocation.Timeout)
	defer timer.Stop()

	execution := &Execution{}

	select {
	case status := <-statusCh:
		execution.Elapsed = time.Since(started)

		if status.Error != nil && status.Error.Message != "" {
			return nil, sandboxError(errors.New(status.Error.Message), "failed waiting for container")
		}

		execution.ExitCode = int(status.StatusCode)

	case waitErr := <-waitErrCh:
		return nil, sandboxError(waitErr, "failed waiting for container")

	case <-timer.C:
		execution.Elapsed = time.Since(started)
		execution.TimedOut = true
		execution.ExitCode = -1

		log.Info().
			Object("invocation", invocation).
			Str("containerID", shortID(containerID)).
			Msg("sandbox exceeded its deadline, killing")

		d.terminate(containerID, statusCh)

	case <-ctx.Done():
		d.terminate(containerID, statusCh)
		return nil, sandboxError(ctx.Err(), "judgment cancelled while the sandbox was running")
	}

	d.awaitOutput(&attach, outputDone)

	stopStats()
	select {
	case <-statsDone:
	case <-time.After(d.config.KillGracePeriod):
	}

	if !execution.TimedOut {
		inspect, inspectErr := d.client.ContainerInspect(ctx, containerID)

		if inspectErr != nil {
			return nil, sandboxError(inspectErr, "failed to inspect container")
		}

		if inspect.ContainerJSONBase != nil && inspect.State != nil {
			execution.OOMKilled = inspect.State.OOMKilled
		}
	}

	execution.Stdout = stdout.String()
	execution.Stderr = stderr.String()
	execution.PeakMemory = peak.Load()

	log.Debug().
		Object("invocation", invocation).
		Str("containerID", shortID(containerID)).
		Int("exitCode", execution.ExitCode).
		Dur("elapsed", execution.Elapsed).
		Bool("timedOut", execution.TimedOut).
		Bool("oomKilled", execution.OOMKilled).
		Bool("stdoutTruncated", stdout.truncated).
		Msg("sandbox finished")

	return execution, nil
}

func (d *DockerExecutor) containerConfig(invocation *Invocation) *container.Config {
	return &container.Config{
		Image:           invocation.Image,
		Cmd:             invocation.Command,
		WorkingDir:      ContainerWorkspacePath,
		User:            d.config.User,
		Env:             []string{"HOME=/tmp", "TMPDIR=/tmp"},
		NetworkDisabled: true,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		Tty:             false,
		Labels:          map[string]string{"judge.invocation": invocation.ID},
	}
}

func (d *DockerExecutor) hostConfig(invocation *Invocation) *container.HostConfig {
	pidsLimit := invocation.Limits.PidLimit

	resources := container.Resources{
		Memory: invocation.Limits.Memory.Bytes(),
		// matching swap with memory means no swap at all is available.
		MemorySwap: invocation.Limits.Memory.Bytes(),
		NanoCPUs:   int64(invocation.Limits.CPUShare * 1e9),
		PidsLimit:  &pidsLimit,
	}

	if d.config.StackSize > 0 {
		resources.Ulimits = []*units.Ulimit{{
			Name: "stack",
			Soft: d.config.StackSize.Bytes(),
			Hard: d.config.StackSize.Bytes(),
		}}
	}

	return &container.HostConfig{
		Runtime:        string(d.config.Runtime),
		AutoRemove:     false,
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Binds: []string{
			fmt.Sprintf("%s:%s:rw", invocation.Workspace.MountSource(), ContainerWorkspacePath),
		},
		Tmpfs: map[string]string{
			"/tmp": fmt.Sprintf("rw,exec,nosuid,size=%d", d.config.TmpfsSize.Bytes()),
		},
		Resources: resources,
	}
}

// terminate kills every process of the container. Should the container not
// stop within the grace period it is forcefully removed, which the daemon
// enforces regardless of what the sandboxed program does with signals.
func (d *DockerExecutor) terminate(containerID string, statusCh <-chan container.WaitResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.KillGracePeriod*4)
	defer cancel()

	if err := d.client.ContainerKill(ctx, containerID, "SIGKILL"); err != nil && !errdefs.IsNotFound(err) {
		log.Warn().Err(err).Str("containerID", shortID(containerID)).Msg("failed to kill container")
	}

	select {
	case <-statusCh:
		return
	case <-time.After(d.config.KillGracePeriod):
	}

	log.Warn().Str("containerID", shortID(containerID)).Msg("container did not stop after kill, forcing removal")

	if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil &&
		!errdefs.IsNotFound(err) {
		log.Error().Err(err).Str("containerID", shortID(containerID)).Msg("failed to force remove container")
	}
}

// remove deletes the container, it runs on every exit path of Execute.
func (d *DockerExecutor) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})

	if err != nil && !errdefs.IsNotFound(err) {
		log.Error().Err(err).Str("containerID", shortID(containerID)).Msg("failed to remove container")
	}
}

// awaitOutput waits for the attached output stream to drain. The stream ends
// when the container stops, if it does not the connection is closed.
func (d *DockerExecutor) awaitOutput(attach *types.HijackedResponse, outputDone <-chan error) {
	var err error

	select {
	case err = <-outputDone:
	case <-time.After(d.config.KillGracePeriod):
		attach.Close()
		err = <-outputDone
	}

	if err != nil && !errors.Is(err, io.EOF) {
		log.Debug().Err(err).Msg("output stream ended with an error")
	}
}

func (d *DockerExecutor) sampleMemory(ctx context.Context, containerID string, peak *peakMemory) {
	stats, err := d.client.ContainerStats(ctx, containerID, true)

	if err != nil {
		log.Debug().Err(err).Str("containerID", shortID(containerID)).Msg("memory statistics unavailable")
		return
	}

	defer stats.Body.Close()

	decoder := json.NewDecoder(stats.Body)

	for {
		var sample types.StatsJSON

		if err := decoder.Decode(&sample); err != nil {
			return
		}

		usage := sample.MemoryStats.MaxUsage

		if usage == 0 {
			usage = sample.MemoryStats.Usage
		}

		peak.Observe(memory.Memory(usage))
	}
}

func writeStdin(attach *types.HijackedResponse, stdin string) {
	if stdin != "" {
		if _, err := io.WriteString(attach.Conn, stdin); err != nil {
			// the program exited without consuming all of its input.
			log.Debug().Err(err).Msg("failed to write standard input")
		}
	}

	_ = attach.CloseWrite()
}

func shortID(containerID string) string {
	if len(containerID) > 10 {
		return containerID[:10]
	}

	return containerID
}

type peakMemory struct {
	value atomic.Int64
}

func (p *peakMemory) Observe(usage memory.Memory) {
	for {
		current := p.value.Load()

		if int64(usage) <= current || p.value.CompareAndSwap(current, int64(usage)) {
			return
		}
	}
}

func (p *peakMemory) Load() memory.Memory {
	return memory.Memory(p.value.Load())
}

// boundedBuffer keeps the first limit bytes written to it and silently
// discards the rest, so a program flooding its output cannot exhaust the
// memory of the judge.
type boundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	truncated bool
}

func newBoundedBuffer(limit memory.Memory) *boundedBuffer {
	return &boundedBuffer{limit: int(limit.Bytes())}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buffer.Len()

	if len(p) > remaining {
		if remaining > 0 {
			b.buffer.Write(p[:remaining])
		}

		b.truncated = true
		return len(p), nil
	}

	b.buffer.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buffer.String()
}
