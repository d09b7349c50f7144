package download

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultBinary  = "yt-dlp"
	defaultTimeout = 10 * time.Minute
	defaultFormat  = "mp3"
)

type Config struct {
	Path        string        // yt-dlp binary
	CookieFile  string        // optional Netscape cookie file
	Timeout     time.Duration // per download
	AudioFormat string
}

// YTDLP extracts the audio track of a video with yt-dlp.
type YTDLP struct {
	config Config
	logger *logrus.Logger
}

func NewYTDLP(cfg Config, logger *logrus.Logger) *YTDLP {
	if cfg.Path == "" {
		cfg.Path = defaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = defaultFormat
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &YTDLP{config: cfg, logger: logger}
}

// Download saves the audio of url into dir and returns the file path.
// Failures carry the UpstreamFailure kind.
func (y *YTDLP) Download(ctx context.Context, url, dir string) (string, error) {
	const op = "YTDLP.Download"

	ctx, cancel := context.WithTimeout(ctx, y.config.Timeout)
	defer cancel()

	task := execute.ExecTask{
		Command: y.config.Path,
		Args:    y.args(url, dir),
		Cwd:     dir,
	}

	logger := y.logger.WithFields(logrus.Fields{
		"operation": op,
		"url":       url,
		"cookies":   y.config.CookieFile != "",
	})
	logger.Debug("Running yt-dlp")

	start := time.Now()
	res, err := task.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Wrapf(ctx.Err(), "yt-dlp did not finish within %s", y.config.Timeout)
		}
		return "", errors.OfKind(errors.KindUpstreamFailure, op, err, "Failed to download audio")
	}
	if res.ExitCode != 0 {
		stderr := lastLines(res.Stderr, 3)
		logger.WithFields(logrus.Fields{
			"exit_code": res.ExitCode,
			"stderr":    stderr,
		}).Warn("yt-dlp failed")
		return "", errors.OfKind(errors.KindUpstreamFailure, op, classify(stderr), "Failed to download audio: "+stderr)
	}

	path := lastLines(res.Stdout, 1)
	if path == "" {
		return "", errors.OfKind(errors.KindUpstreamFailure, op, nil, "yt-dlp reported no output file")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	logger.WithFields(logrus.Fields{
		"path": path,
		"took": time.Since(start).String(),
	}).Info("Audio downloaded")
	return path, nil
}

func (y *YTDLP) args(url, dir string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-x",
		"--audio-format", y.config.AudioFormat,
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
	}
	if y.config.CookieFile != "" {
		args = append(args, "--cookies", y.config.CookieFile)
	}
	return append(args, "--", url)
}

func classify(stderr string) error {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "429") || strings.Contains(lower, "confirm you") {
		return errors.Wrap(errors.ErrUpstreamBlocked, stderr)
	}
	return errors.New(stderr)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
