package parser

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/namsral/flag"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"compile-and-judge/internal/config"
	"compile-and-judge/internal/judge"
)

// Arguments is the configuration shared by every service, each flag can also
// be set through its upper cased environment variable, e.g. NSQ_TOPIC.
type Arguments struct {
	LogLevel string

	APIAddress     string
	MetricsAddress string

	DatabaseConn           string
	MaxConcurrentJudgments int
	Policy                 string
	LanguagesFile          string
	WorkspaceRoot          string
	WorkspaceHostRoot      string

	ForceLocalMode bool

	SqsQueue        string
	SqsRegion       string
	WaitTimeSeconds int

	NsqAddress string
	NsqChannel string
	NsqPort    int
	NsqTopic   string

	S3BucketName   string
	S3Region       string
	LocalFilesRoot string

	RedisAddress string
	RedisPrefix  string

	NatsURL     string
	NatsSubject string
}

func ParseArguments(name string, arguments []string) (*Arguments, error) {
	args := &Arguments{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&args.LogLevel, "log-level", "info", "the minimum level logged, e.g. debug or info")

	fs.StringVar(&args.APIAddress, "api-address", ":8080", "the address the submission api listens on")
	fs.StringVar(&args.MetricsAddress, "metrics-address", ":9090", "the address prometheus metrics are served on, empty disables")

	fs.StringVar(&args.DatabaseConn, "database-connection-string", "host=database user=root password=root port=5432 dbname=judge TimeZone=UTC", "")
	fs.IntVar(&args.MaxConcurrentJudgments, "max-concurrent-judgments", 5, "the number of submissions judged at once")
	fs.StringVar(&args.Policy, "policy", "stop", "stop at the first failing test or continue for partial credit")
	fs.StringVar(&args.LanguagesFile, "languages-file", "", "a TOML language registry, the built in languages are used when empty")
	fs.StringVar(&args.WorkspaceRoot, "workspace-root", config.DefaultWorkspaceRoot(), "the directory submission workspaces are created in")
	fs.StringVar(&args.WorkspaceHostRoot, "workspace-host-root", "", "the workspace root as seen by the docker daemon when different")

	fs.BoolVar(&args.ForceLocalMode, "force-local-mode", false, "use NSQ and local files even when SQS or S3 are configured")

	fs.StringVar(&args.SqsQueue, "sqs-queue", "", "")
	fs.StringVar(&args.SqsRegion, "sqs-region", "eu-west-2", "")
	fs.IntVar(&args.WaitTimeSeconds, "wait-time-seconds", 20, "")

	fs.StringVar(&args.NsqAddress, "nsq-address", "nsqd", "")
	fs.StringVar(&args.NsqChannel, "nsq-channel", "judge", "")
	fs.IntVar(&args.NsqPort, "nsq-port", 4150, "")
	fs.StringVar(&args.NsqTopic, "nsq-topic", "submissions", "")

	fs.StringVar(&args.S3BucketName, "s3-bucket", "", "")
	fs.StringVar(&args.S3Region, "s3-region", "eu-west-2", "")
	fs.StringVar(&args.LocalFilesRoot, "local-files-root", filepath.Join(os.TempDir(), "judge", "submissions"), "")

	fs.StringVar(&args.RedisAddress, "redis-address", "", "progress is stored in redis when set")
	fs.StringVar(&args.RedisPrefix, "redis-prefix", "", "")

	fs.StringVar(&args.NatsURL, "nats-url", "", "progress and verdicts are published to nats when set")
	fs.StringVar(&args.NatsSubject, "nats-subject", "", "")

	if err := fs.Parse(arguments); err != nil {
		return nil, errors.Wrap(err, "failed to parse arguments")
	}

	if _, err := args.JudgePolicy(); err != nil {
		return nil, err
	}

	if _, err := zerolog.ParseLevel(args.LogLevel); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", args.LogLevel)
	}

	if args.MaxConcurrentJudgments <= 0 {
		return nil, errors.Errorf("max concurrent judgments must be positive, got %d", args.MaxConcurrentJudgments)
	}

	log.Info().Msgf("%+v parsed arguments", args.redacted())
	return args, nil
}

// ParseDefaultConfigurationArguments parses the arguments of the running
// process, exiting on failure.
func ParseDefaultConfigurationArguments() *Arguments {
	args, err := ParseArguments(os.Args[0], os.Args[1:])

	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	return args
}

func (a *Arguments) JudgePolicy() (judge.Policy, error) {
	switch strings.ToLower(a.Policy) {
	case "stop", "":
		return judge.StopOnFirstFailure, nil
	case "continue":
		return judge.ContinueOnFailure, nil
	default:
		return judge.StopOnFirstFailure, errors.Errorf("unknown judging policy %q, expected stop or continue", a.Policy)
	}
}

// Level is the parsed log level, validated when the arguments were parsed.
func (a *Arguments) Level() zerolog.Level {
	level, _ := zerolog.ParseLevel(a.LogLevel)
	return level
}

// ConfigureLogger applies the log level to the global logger, development
// logs are written human readable instead of JSON.
func (a *Arguments) ConfigureLogger() {
	zerolog.SetGlobalLevel(a.Level())

	if config.GetCurrentEnvironment() == config.DevelopmentEnvironment {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// redacted keeps the database credentials out of the logs.
func (a *Arguments) redacted() Arguments {
	copied := *a

	if copied.DatabaseConn != "" {
		copied.DatabaseConn = "[redacted]"
	}

	return copied
}
