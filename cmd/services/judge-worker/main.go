package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/docker/client"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"compile-and-judge/internal/files"
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/parser"
	"compile-and-judge/internal/progress"
	"compile-and-judge/internal/queue"
	"compile-and-judge/internal/repository"
	"compile-and-judge/internal/sandbox"
	"compile-and-judge/internal/validation"
)

func loadRegistry(args *parser.Arguments) *sandbox.Registry {
	if args.LanguagesFile == "" {
		return sandbox.NewDefaultRegistry()
	}

	registry, err := sandbox.LoadRegistry(args.LanguagesFile)

	if err != nil {
		log.Fatal().Err(err).Str("file", args.LanguagesFile).Msg("failed to load language registry")
	}

	return registry
}

func main() {
	args := parser.ParseDefaultConfigurationArguments()
	args.ConfigureLogger()

	log.Info().Msg("starting judge-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("starting docker client")
	dockerClient, dockerErr := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())

	if dockerErr != nil {
		log.Fatal().Err(dockerErr).Msg("failed to create docker client")
	}

	profile := sandbox.GetProfileForMachine()

	log.Info().
		Str("runtime", profile.Runtime.String()).
		Dur("wallTime", profile.DefaultLimits.WallTime).
		Str("memory", profile.DefaultLimits.Memory.String()).
		Msg("selected sandbox profile")

	dockerConfig := sandbox.DefaultDockerConfig
	dockerConfig.Runtime = profile.Runtime

	repo, repoErr := repository.NewRepository(args.DatabaseConn)

	if repoErr != nil {
		log.Fatal().Err(repoErr).Msg("failed to create database connection")
	}

	progressReporters := judge.ProgressReporters{}
	verdictReporters := judge.Reporters{repo, judge.LogReporter{}}

	if args.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: args.RedisAddress})
		defer redisClient.Close()

		progressReporters = append(progressReporters, progress.NewRedisReporter(redisClient, args.RedisPrefix, 0))
	}

	if args.NatsURL != "" {
		conn, natsErr := nats.Connect(args.NatsURL, nats.Name("judge-worker"))

		if natsErr != nil {
			log.Fatal().Err(natsErr).Msg("failed to connect to nats")
		}

		defer conn.Drain()

		natsReporter := progress.NewNatsReporter(conn, args.NatsSubject)
		progressReporters = append(progressReporters, natsReporter)
		verdictReporters = append(verdictReporters, natsReporter)
	}

	policy, _ := args.JudgePolicy()

	j := judge.New(
		loadRegistry(args),
		sandbox.NewWorkspaces(args.WorkspaceRoot, args.WorkspaceHostRoot),
		sandbox.NewDockerExecutor(dockerClient, dockerConfig),
		profile,
		judge.WithPolicy(policy),
		judge.WithProgressReporter(progressReporters),
	)

	pool := judge.NewPool(j, args.MaxConcurrentJudgments, verdictReporters)

	fileHandler, err := files.NewFilesHandler(&files.Config{
		Local:          &files.LocalConfig{LocalRootPath: args.LocalFilesRoot},
		S3:             &files.S3Config{BucketName: args.S3BucketName, Region: args.S3Region},
		ForceLocalMode: args.ForceLocalMode,
	})

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create file handler")
	}

	validate, _, err := validation.New()

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create validator")
	}

	log.Info().Msg("starting queue consumer")
	queueRunner, err := queue.NewQueue(&queue.Config{
		ForceLocalMode: args.ForceLocalMode,
		Handler:        queue.NewSubmissionHandler(pool, fileHandler, validate),

		Nsq: &queue.NsqConfig{
			Topic:            args.NsqTopic,
			Channel:          args.NsqChannel,
			NsqLookupAddress: args.NsqAddress,
			NsqLookupPort:    args.NsqPort,
			MaxInFlight:      args.MaxConcurrentJudgments,
			Consumer:         true,
		},
		Sqs: &queue.SqsConfig{
			QueueURL:        args.SqsQueue,
			Region:          args.SqsRegion,
			WaitTimeSeconds: args.WaitTimeSeconds,
			MaxInFlight:     args.MaxConcurrentJudgments,
			Consumer:        true,
		},
	})

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if args.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{Addr: args.MetricsAddress, Handler: mux, ReadHeaderTimeout: time.Second * 5}

		group.Go(func() error {
			log.Info().Str("address", args.MetricsAddress).Msg("serving metrics")

			if listenErr := server.ListenAndServe(); listenErr != http.ErrServerClosed {
				return listenErr
			}

			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			return server.Shutdown(context.Background())
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		// stop consuming first so no new judgments are started, then wait
		// for every running judgment to report its verdict.
		queueRunner.Stop()
		pool.Close()

		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("judge-worker stopped with an error")
		os.Exit(1)
	}

	log.Info().Msg("judge-worker stopped")
}
