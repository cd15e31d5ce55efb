// Command genre-repair is a Lambda function attached to the title table's
// DynamoDB stream. It rewrites documents whose genres arrived as joined text.
//
// Configuration is read from MARQUEE_TABLE, MARQUEE_KEY, MARQUEE_MAX_RETRIES
// and MARQUEE_LOG_LEVEL.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/viper"

	"github.com/jacentio/marquee/store"
	"github.com/jacentio/marquee/stream"
)

func settings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := store.DefaultConfig()
	v.SetDefault("table", d.TableName)
	v.SetDefault("key", d.KeyAttribute)
	v.SetDefault("max-retries", d.Retry.MaxRetries)
	v.SetDefault("log-level", "info")
	return v
}

func main() {
	v := settings()

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	cfg := store.DefaultConfig()
	cfg.TableName = v.GetString("table")
	cfg.KeyAttribute = v.GetString("key")
	cfg.Retry.MaxRetries = v.GetInt("max-retries")

	s := store.New(dynamodb.NewFromConfig(awsCfg), cfg, logger)
	logger.Info("genre repair starting", "table", cfg.TableName, "keyAttribute", cfg.KeyAttribute)

	lambda.Start(stream.NewHandler(s, cfg.KeyAttribute, logger).HandleGenreRepair)
}
