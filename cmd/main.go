package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shopping-assistant/internal/config"
	"shopping-assistant/internal/observability"
	"shopping-assistant/internal/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "shopping-assistant",
		Short: "Conversational shopping assistant backed by a reasoning service",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			observability.SetLogger(observability.NewLogger(os.Stdout, observability.ParseLevel(viper.GetString("log-level"))))
			return nil
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := server.New(a.handler, server.Options{
				Addr:    a.cfg.Addr,
				Metrics: a.metrics.Handler(),
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	lambdaCmd = &cobra.Command{
		Use:   "lambda",
		Short: "Serve API Gateway proxy events on AWS Lambda",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd.Context(), loadConfig())
			if err != nil {
				return err
			}
			defer a.close()

			lambda.Start(a.handler.Handle)
			return nil
		},
	}
)

func init() {
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("driver", config.DriverMemory, `record store driver: "memory", "sqlite" or "dynamodb"`)
	flags.String("dsn", "shopping-assistant.db", "sqlite database file")
	flags.String("dynamo-table", "", "DynamoDB table holding collection snapshots")
	flags.String("openai-api-key", "", "OpenAI API key (otherwise read from the parameter store)")
	flags.String("openai-base-url", "", "override the OpenAI API base URL")
	flags.String("param-prefix", "", "SSM parameter prefix for the token and assistant ids")
	flags.String("extraction-model", "gpt-4o", "model used for session-end preference extraction")
	flags.String("chat-assistant-id", "", "assistant id for the shopping conversation")
	flags.String("description-assistant-id", "", "assistant id for product descriptions")
	flags.String("comparison-assistant-id", "", "assistant id for product comparisons")
	flags.Duration("poll-interval", config.DefaultPollInterval, "interval between run status polls")
	flags.Duration("run-timeout", config.DefaultRunTimeout, "maximum wait for a run to finish")
	flags.Bool("mock-llm", false, "use the offline reasoning simulator")
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")

	for _, name := range []string{
		"log-level", "driver", "dsn", "dynamo-table", "openai-api-key", "openai-base-url",
		"param-prefix", "extraction-model", "chat-assistant-id", "description-assistant-id",
		"comparison-assistant-id", "poll-interval", "run-timeout", "mock-llm",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	config.BindEnv(viper.GetViper())

	rootCmd.AddCommand(serveCmd, lambdaCmd)
}

func loadConfig() config.Config {
	return config.FromViper(viper.GetViper())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("shopping-assistant exited", "err", err)
		os.Exit(1)
	}
}
