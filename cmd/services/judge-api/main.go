package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"compile-and-judge/internal/files"
	"compile-and-judge/internal/parser"
	"compile-and-judge/internal/progress"
	"compile-and-judge/internal/queue"
	"compile-and-judge/internal/repository"
	"compile-and-judge/internal/routing"
	"compile-and-judge/internal/sandbox"
	"compile-and-judge/internal/validation"
)

func main() {
	args := parser.ParseDefaultConfigurationArguments()
	args.ConfigureLogger()

	log.Info().Msg("starting judge-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queueRunner, err := queue.NewQueue(&queue.Config{
		ForceLocalMode: args.ForceLocalMode,

		Nsq: &queue.NsqConfig{
			Topic:            args.NsqTopic,
			Channel:          args.NsqChannel,
			NsqLookupAddress: args.NsqAddress,
			NsqLookupPort:    args.NsqPort,
			Producer:         true,
		},
		Sqs: &queue.SqsConfig{
			QueueURL: args.SqsQueue,
			Region:   args.SqsRegion,
		},
	})

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue")
	}

	defer queueRunner.Stop()

	repo, repoErr := repository.NewRepository(args.DatabaseConn)

	if repoErr != nil {
		log.Fatal().Err(repoErr).Msg("failed to create database connection")
	}

	fileHandler, err := files.NewFilesHandler(&files.Config{
		Local:          &files.LocalConfig{LocalRootPath: args.LocalFilesRoot},
		S3:             &files.S3Config{BucketName: args.S3BucketName, Region: args.S3Region},
		ForceLocalMode: args.ForceLocalMode,
	})

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create file handler")
	}

	registry := sandbox.NewDefaultRegistry()

	if args.LanguagesFile != "" {
		if registry, err = sandbox.LoadRegistry(args.LanguagesFile); err != nil {
			log.Fatal().Err(err).Str("file", args.LanguagesFile).Msg("failed to load language registry")
		}
	}

	validate, translator, err := validation.New()

	if err != nil {
		log.Fatal().Err(err).Msg("failed to create validator")
	}

	submissionHandlers := &routing.SubmissionHandlers{
		FileHandler: fileHandler,
		Repo:        repo,
		Queue:       queueRunner,
		Registry:    registry,
		Translator:  translator,
		Validator:   validate,
	}

	if args.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: args.RedisAddress})
		defer redisClient.Close()

		submissionHandlers.Progress = progress.NewRedisReporter(redisClient, args.RedisPrefix, 0)
	}

	r := routing.NewRouter(submissionHandlers)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              args.APIAddress,
		Handler:           handlers.CompressHandler(handlers.LoggingHandler(os.Stdout, r)),
		ReadHeaderTimeout: time.Second * 5,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Str("address", args.APIAddress).Msg("listening")

		if listenErr := server.ListenAndServe(); listenErr != http.ErrServerClosed {
			return listenErr
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("judge-api stopped with an error")
		os.Exit(1)
	}

	log.Info().Msg("judge-api stopped")
}
