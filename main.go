package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/handlers/api"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/youtube"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "yt-transcript",
		Short: "Transcripts for YouTube videos and audio files.",
		Long: `yt-transcript fetches YouTube captions for a video URL, falling back through
manual, auto-generated and legacy caption sources, and transcribes uploaded or
downloaded audio with a speech model. Without a subcommand it serves the HTTP API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	rootCmd.AddCommand(newServeCommand(&envFile))
	rootCmd.AddCommand(newTranscriptCommand(&envFile))
	rootCmd.AddCommand(newTranscribeCommand(&envFile))

	return rootCmd
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *envFile)
		},
	}
}

func newTranscriptCommand(envFile *string) *cobra.Command {
	var languages []string

	cmd := &cobra.Command{
		Use:   "transcript <url>",
		Short: "Print the captions of a YouTube video as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(*envFile, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog.Close()

			resolver := newResolver(cfg, log)
			result := resolver.Resolve(cmd.Context(), youtube.NewVideoRef(args[0]), languages)
			return printResult(cmd.OutOrStdout(), result, models.NewTranscriptResponse(result))
		},
	}
	cmd.Flags().StringSliceVarP(&languages, "languages", "l", nil, "preferred caption languages, in order")

	return cmd
}

func newTranscribeCommand(envFile *string) *cobra.Command {
	var (
		language string
		words    bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a local audio file with the speech model and print JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(*envFile, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog.Close()

			adapter, transcriber := newAdapter(cmd.Context(), cfg, log)
			if transcriber != nil {
				defer transcriber.Close()
			}

			result := adapter.TranscribeFile(cmd.Context(), args[0], language, words)
			return printResult(cmd.OutOrStdout(), result, models.NewTranscriptionResponse(result))
		},
	}
	cmd.Flags().StringVar(&language, "language", models.AutoDetect, "language hint, or auto to detect")
	cmd.Flags().BoolVar(&words, "words", true, "include word timestamps")

	return cmd
}

// setup loads configuration and builds the logger. CLI commands log to
// stderr so stdout carries only the result.
func setup(envFile string, out io.Writer) (*config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, closer, err := logger.New(logger.Config{
		Dir:     cfg.LogDir,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Debug:   cfg.Debug,
		Console: out,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, log, closer, nil
}

func runServe(ctx context.Context, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, closeLog, err := setup(envFile, nil)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	deps, err := buildServices(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize services")
		return err
	}
	defer deps.Close()

	server := api.NewServer(cfg, deps.serverOptions(log)...)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("Server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
		return err
	}
	return nil
}

func printResult(w io.Writer, result models.TranscriptResult, payload interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s: %s", result.ErrorKind(), result.ErrorMessage())
	}
	return nil
}
