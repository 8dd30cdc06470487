package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"site-assistant/handler"
	"site-assistant/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "site-assistant",
		Short: "Website chat assistant backend",
		Long: `site-assistant answers website visitor messages. Each message is classified
into a topic and answered by the agent profile configured for that topic.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runningOnLambda() {
				return runLambda(cmd.Context(), configPath)
			}
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SITE_ASSISTANT_CONFIG"), "Path to a YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "lambda",
			Short: "Serve API Gateway proxy events on AWS Lambda",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLambda(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the chat endpoint over HTTP",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "ask <message>",
			Short: "Run one message through the workflow and print the reply",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAsk(cmd, configPath, strings.Join(args, " "))
			},
		},
	)
	return rootCmd
}

func runningOnLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" || os.Getenv("_LAMBDA_SERVER_PORT") != ""
}

func runLambda(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	a.logger.Info("starting lambda handler")
	lambda.Start(a.handler.Handle)
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	router := handler.NewRouter(a.handler, handler.RouterOptions{
		ChatPath:        a.cfg.HTTP.ChatPath,
		Metrics:         a.recorder.Handler(),
		RateLimitPerMin: a.cfg.HTTP.RateLimitPerMin,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.cfg.ClassifierTimeout + a.cfg.ResponderTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			zap.String("addr", a.cfg.HTTP.Addr),
			zap.String("chat_path", a.cfg.HTTP.ChatPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, configPath, message string) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	out, err := a.chat.Chat(cmd.Context(), usecase.ChatInput{Message: message})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "category: %s\n\n%s\n", out.Category, out.Text)
	return nil
}
