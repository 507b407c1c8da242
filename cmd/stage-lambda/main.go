// Package main provides the stage Lambda: one pipeline stage per invocation,
// for orchestration by Step Functions or any caller that chains stages.
//
// Stages exchange their artifacts inline: the discover response carries the
// manifest, the ingest event carries it back, and so on. The documents
// themselves stay on disk, and /tmp is private to one container. The acquire,
// discover and ingest stages are therefore refused unless documents.path is
// on an EFS mount under /mnt that every container sees. Without one, use the
// run stage, which does all of it in a single invocation.
//
// A run or ingest event without a runTag gets a fresh tag per invocation, so
// warm containers never share one, unless ingest.run_tag is configured.
//
// Event format:
//
//	{
//	  "stage": "acquire"|"discover"|"ingest"|"verify"|"run",
//	  "runTag": "run-...",         // optional, ingest/run only
//	  "manifest": [...],           // ingest only
//	  "summary": {...}             // verify only
//	}
//
// Configuration is read from DOCINGEST_* environment variables and, when
// DOCINGEST_CONFIG names one, a bundled config file.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/awsboot"
	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/logging"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

var version = "dev"

var coldStart = true

var stages *stageRunner

func init() {
	initStart := time.Now()
	logging.Init("")

	v := config.NewViper()
	cfg, err := config.Load(v, os.Getenv("DOCINGEST_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pipeline configuration")
	}
	if err := awsboot.Secrets(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve secrets from SSM")
	}

	stages = newStageRunner(v, cfg)
	stages.downloader = func(ctx context.Context) (pipeline.Downloader, error) {
		return awsboot.Downloader(ctx, cfg)
	}
	stages.counter = func(ctx context.Context) (pipeline.StoreCounter, func(), error) {
		return awsboot.Counter(ctx, cfg)
	}
	stages.metrics = os.Stdout
	if !stages.sharedDocuments {
		log.Warn().Str("documentsPath", cfg.Documents.Path).
			Msg("Documents path is container-local, only run and verify stages are available")
	}

	awsboot.LogStartup("stage-lambda", version, cfg)
	log.Debug().Dur("initDuration", time.Since(initStart)).Msg("Stage Lambda initialized")
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event StageEvent) (StageResponse, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "stage-lambda").Msg("Cold start, first invocation")
	}
	log.Info().
		Str("stage", event.Stage).
		Str("runTag", event.RunTag).
		Int("manifestSize", len(event.Manifest)).
		Msg("Stage Lambda invoked")

	return stages.handle(ctx, event)
}
