package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/client"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/namsral/flag"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/config"
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/memory"
	"compile-and-judge/internal/sandbox"
)

type localTest struct {
	Input          string `toml:"input"`
	ExpectedOutput string `toml:"expected_output"`
	Points         int    `toml:"points"`
}

type localLimits struct {
	WallTime    string        `toml:"wall_time"`
	CompileTime string        `toml:"compile_time"`
	Memory      memory.Memory `toml:"memory"`
	CPUShare    float64       `toml:"cpu_share"`
	PidLimit    int64         `toml:"pid_limit"`
}

// localTests is the TOML file describing the tests of a local judgment, e.g.
//
//	[limits]
//	wall_time = "2s"
//	memory = "128m"
//
//	[[test]]
//	input = "abc"
//	expected_output = "cba"
//	points = 10
type localTests struct {
	Limits localLimits `toml:"limits"`
	Tests  []localTest `toml:"test"`
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	return time.ParseDuration(value)
}

func parseTests(data []byte) ([]judge.TestCase, sandbox.ResourceLimits, error) {
	var file localTests

	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, sandbox.ResourceLimits{}, errors.Wrap(err, "failed to parse tests")
	}

	wallTime, err := parseDuration(file.Limits.WallTime)

	if err != nil {
		return nil, sandbox.ResourceLimits{}, errors.Wrap(err, "invalid wall time")
	}

	compileTime, err := parseDuration(file.Limits.CompileTime)

	if err != nil {
		return nil, sandbox.ResourceLimits{}, errors.Wrap(err, "invalid compile time")
	}

	tests := make([]judge.TestCase, 0, len(file.Tests))

	for i, test := range file.Tests {
		if test.Points < 0 {
			return nil, sandbox.ResourceLimits{}, errors.Errorf("test #%d has negative points", i+1)
		}

		tests = append(tests, judge.TestCase(test))
	}

	return tests, sandbox.ResourceLimits{
		WallTime:    wallTime,
		CompileTime: compileTime,
		Memory:      file.Limits.Memory,
		CPUShare:    file.Limits.CPUShare,
		PidLimit:    file.Limits.PidLimit,
	}, nil
}

func statusColor(status judge.Status) *color.Color {
	switch status {
	case judge.Accepted:
		return color.New(color.FgGreen, color.Bold)
	case judge.PartiallyAccepted:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printVerdict(verdict *judge.SubmissionVerdict) {
	for _, test := range verdict.Tests {
		status := color.GreenString(test.Status.String())

		if test.Status != judge.TestAccepted {
			status = color.RedString(test.Status.String())
		}

		fmt.Printf("test #%-3d %-24s %8dms %10s\n", test.Index, status, test.Elapsed.Milliseconds(), test.PeakMemory)
	}

	fmt.Println()
	_, _ = statusColor(verdict.Status).Printf("%s", verdict.Status)
	fmt.Printf(" %d/%d points in %dms, peak memory %dKB\n",
		verdict.ScoreEarned, verdict.ScoreTotal, verdict.TotalTimeMs, verdict.PeakMemoryKb)

	if verdict.Message != "" && verdict.Status != judge.Accepted {
		fmt.Println()
		fmt.Println(verdict.Message)
	}
}

func main() {
	var (
		language      string
		sourcePath    string
		testsPath     string
		languagesFile string
		workspaceRoot string
		continueAll   bool
		verbose       bool
	)

	flag.StringVar(&language, "language", "", "the language of the source, e.g. py or cpp")
	flag.StringVar(&sourcePath, "source", "", "the source file to judge")
	flag.StringVar(&testsPath, "tests", "", "the TOML file with the test cases")
	flag.StringVar(&languagesFile, "languages-file", "", "a TOML language registry, the built in languages are used when empty")
	flag.StringVar(&workspaceRoot, "workspace-root", config.DefaultWorkspaceRoot(), "")
	flag.BoolVar(&continueAll, "continue", false, "run every test for partial credit")
	flag.BoolVar(&verbose, "v", false, "")

	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if language == "" || sourcePath == "" || testsPath == "" {
		color.Red("-language, -source and -tests are required")
		os.Exit(2)
	}

	source, err := os.ReadFile(sourcePath)

	if err != nil {
		log.Fatal().Err(err).Msg("failed to read source")
	}

	data, err := os.ReadFile(testsPath)

	if err != nil {
		log.Fatal().Err(err).Msg("failed to read tests")
	}

	tests, limits, err := parseTests(data)

	if err != nil {
		log.Fatal().Err(err).Str("file", testsPath).Msg("invalid tests")
	}

	registry := sandbox.NewDefaultRegistry()

	if languagesFile != "" {
		if registry, err = sandbox.LoadRegistry(languagesFile); err != nil {
			log.Fatal().Err(err).Msg("failed to load language registry")
		}
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create docker client")
	}

	profile := sandbox.GetProfileForMachine()

	dockerConfig := sandbox.DefaultDockerConfig
	dockerConfig.Runtime = profile.Runtime

	policy := judge.StopOnFirstFailure

	if continueAll {
		policy = judge.ContinueOnFailure
	}

	verdict := judge.New(
		registry,
		sandbox.NewWorkspaces(workspaceRoot, ""),
		sandbox.NewDockerExecutor(dockerClient, dockerConfig),
		profile,
		judge.WithPolicy(policy),
	).Evaluate(context.Background(), &judge.Submission{
		ID:         uuid.NewString(),
		Language:   language,
		SourceCode: string(source),
		Tests:      tests,
		Limits:     limits,
	})

	printVerdict(verdict)

	switch verdict.Status {
	case judge.Accepted:
	case judge.SystemError:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
