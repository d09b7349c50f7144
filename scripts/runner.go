package scripts

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nijaru/yt-transcript/models"
	"github.com/sirupsen/logrus"
)

//go:embed assets/whisper_worker.py
var workerScript []byte

const (
	BackendFasterWhisper = "faster-whisper"

	defaultLoadTimeout = 10 * time.Minute
	maxLineBytes       = 64 << 20
	stderrTailBytes    = 4 << 10
)

type workerRequest struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	Language       string `json:"language,omitempty"`
	BeamSize       int    `json:"beam_size"`
	WordTimestamps bool   `json:"word_timestamps"`
}

type workerResponse struct {
	ID    int64  `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ModelOutput
}

type readyLine struct {
	Ready       bool   `json:"ready"`
	Error       string `json:"error,omitempty"`
	Model       string `json:"model"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
}

// WhisperWorker keeps one faster-whisper process alive for the lifetime of
// the service. The model is loaded once; each call is a single JSON line
// exchange. A caller that gives up leaves the process running and its
// answer is skipped by the next call. A worker that dies is started again
// on the next call.
type WhisperWorker struct {
	config     Config
	logger     *logrus.Logger
	scriptPath string

	mu     sync.Mutex
	proc   *workerProcess
	nextID int64

	infoMu  sync.RWMutex
	info    models.ModelInfo
	loadErr error
}

// NewWhisperWorker starts the worker and blocks until the model is loaded.
func NewWhisperWorker(ctx context.Context, cfg Config, logger *logrus.Logger) (*WhisperWorker, error) {
	return newWhisperWorker(ctx, cfg, logger, workerScript)
}

func newWhisperWorker(ctx context.Context, cfg Config, logger *logrus.Logger, script []byte) (*WhisperWorker, error) {
	const op = "WhisperWorker.New"

	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, newScriptError(op, err, "failed to create temp dir")
	}
	scriptPath := filepath.Join(cfg.TempDir, fmt.Sprintf("yt-transcript-worker-%d.py", os.Getpid()))
	if err := os.WriteFile(scriptPath, script, 0o644); err != nil {
		return nil, newScriptError(op, err, "failed to write worker script")
	}

	w := &WhisperWorker{
		config:     cfg,
		logger:     logger,
		scriptPath: scriptPath,
		info: models.ModelInfo{
			Backend:     BackendFasterWhisper,
			ModelSize:   cfg.GetDefaultModel(),
			Device:      cfg.Device,
			ComputeType: cfg.ComputeType,
		},
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.start(ctx); err != nil {
		os.Remove(scriptPath)
		return nil, err
	}
	return w, nil
}

func (w *WhisperWorker) start(ctx context.Context) error {
	const op = "WhisperWorker.start"

	args := []string{w.scriptPath, "--model", w.config.GetDefaultModel()}
	if w.config.Device != "" {
		args = append(args, "--device", w.config.Device)
	}
	if w.config.ComputeType != "" {
		args = append(args, "--compute-type", w.config.ComputeType)
	}

	// The process outlives ctx, which only bounds the wait for readiness.
	cmd := exec.Command(w.config.PythonPath, args...)
	cmd.Env = buildEnvironment(w.config.Environment)

	p, err := startProcess(cmd)
	if err != nil {
		return newScriptError(op, err, "failed to start worker")
	}

	w.logger.WithFields(logrus.Fields{
		"python": w.config.PythonPath,
		"model":  w.config.GetDefaultModel(),
		"pid":    cmd.Process.Pid,
	}).Info("Starting whisper worker")

	loadCtx, cancel := context.WithTimeout(ctx, w.config.LoadTimeout)
	defer cancel()

	line, err := p.readJSONLine(loadCtx, w.logger)
	if err != nil {
		tail := p.stderr.String()
		p.stop()
		return newScriptError(op, err, "worker exited before loading the model: "+tail)
	}

	var ready readyLine
	if err := json.Unmarshal(line, &ready); err != nil {
		p.stop()
		return newScriptError(op, err, "invalid ready line")
	}
	if !ready.Ready {
		p.stop()
		return newScriptError(op, nil, "model failed to load: "+ready.Error)
	}

	w.infoMu.Lock()
	if ready.Device != "" {
		w.info.Device = ready.Device
	}
	if ready.ComputeType != "" {
		w.info.ComputeType = ready.ComputeType
	}
	w.infoMu.Unlock()
	w.proc = p

	w.logger.WithField("model", ready.Model).Info("Whisper model loaded")
	return nil
}

// Transcribe sends one request to the worker and waits for its answer.
// Cancelling ctx abandons the wait but keeps the worker and its model.
func (w *WhisperWorker) Transcribe(ctx context.Context, path string, opts Options) (*ModelOutput, error) {
	const op = "WhisperWorker.Transcribe"

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.proc == nil {
		w.logger.Warn("Whisper worker is not running, restarting")
		// The reload is bounded by LoadTimeout, not by the caller.
		if err := w.start(context.WithoutCancel(ctx)); err != nil {
			w.setLoadErr(err)
			return nil, newScriptError(op, ErrModelUnavailable, modelMessage(err))
		}
		w.setLoadErr(nil)
	}

	w.nextID++
	req := workerRequest{
		ID:             w.nextID,
		Path:           path,
		Language:       opts.Language,
		BeamSize:       opts.BeamSize,
		WordTimestamps: opts.WordTimestamps,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, newScriptError(op, err, "failed to encode request")
	}

	if _, err := w.proc.stdin.Write(append(payload, '\n')); err != nil {
		w.discard()
		return nil, newScriptError(op, err, "failed to send request to worker")
	}

	for {
		line, err := w.proc.readJSONLine(ctx, w.logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				w.logger.WithField("request_id", req.ID).Warn("Abandoned wait for worker, answer will be skipped")
				return nil, newScriptError(op, ctxErr, "worker did not answer in time")
			}
			tail := w.proc.stderr.String()
			w.discard()
			return nil, newScriptError(op, err, strings.TrimSpace("worker did not answer "+tail))
		}

		var resp workerResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			w.discard()
			return nil, newScriptError(op, err, "invalid worker response")
		}
		if resp.ID < req.ID {
			w.logger.WithField("request_id", resp.ID).Debug("Skipping answer to an abandoned request")
			continue
		}
		if resp.ID != req.ID {
			w.discard()
			return nil, newScriptError(op, nil, fmt.Sprintf("response id %d does not match request %d", resp.ID, req.ID))
		}
		if !resp.OK {
			return nil, newScriptError(op, nil, resp.Error)
		}
		return &resp.ModelOutput, nil
	}
}

// LoadError is the last failure to restart the worker, nil while it runs.
func (w *WhisperWorker) LoadError() error {
	w.infoMu.RLock()
	defer w.infoMu.RUnlock()
	return w.loadErr
}

func (w *WhisperWorker) setLoadErr(err error) {
	w.infoMu.Lock()
	w.loadErr = err
	w.infoMu.Unlock()
}

// Info does not wait for a running transcription.
func (w *WhisperWorker) Info() models.ModelInfo {
	w.infoMu.RLock()
	defer w.infoMu.RUnlock()
	return w.info
}

// Reentrant is false: the worker handles one request at a time.
func (w *WhisperWorker) Reentrant() bool { return false }

func (w *WhisperWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.proc != nil {
		w.proc.shutdown(5 * time.Second)
		w.proc = nil
	}
	if err := os.Remove(w.scriptPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// discard kills the current process so the next call starts a fresh one.
func (w *WhisperWorker) discard() {
	if w.proc != nil {
		w.proc.stop()
		w.proc = nil
	}
}

type lineResult struct {
	line []byte
	err  error
}

type workerProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	lines  chan lineResult
	quit   chan struct{}
	once   sync.Once
}

func startProcess(cmd *exec.Cmd) (*workerProcess, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &workerProcess{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		lines:  make(chan lineResult),
		quit:   make(chan struct{}),
	}
	go p.readLoop(stdout)
	return p, nil
}

func (p *workerProcess) readLoop(stdout io.Reader) {
	defer close(p.lines)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		select {
		case p.lines <- lineResult{line: line}:
		case <-p.quit:
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case p.lines <- lineResult{err: err}:
		case <-p.quit:
		}
	}
}

// readJSONLine returns the next stdout line that looks like a JSON object.
// Anything else the model library prints is logged and skipped.
func (p *workerProcess) readJSONLine(ctx context.Context, logger *logrus.Logger) ([]byte, error) {
	for {
		select {
		case r, ok := <-p.lines:
			if !ok {
				return nil, io.ErrUnexpectedEOF
			}
			if r.err != nil {
				return nil, r.err
			}
			trimmed := bytes.TrimSpace(r.line)
			if len(trimmed) == 0 || trimmed[0] != '{' {
				logger.WithField("line", string(trimmed)).Debug("Skipping worker output")
				continue
			}
			return trimmed, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *workerProcess) stop() {
	p.once.Do(func() {
		close(p.quit)
		p.stdin.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
}

// shutdown closes stdin so the worker can exit on its own and kills it
// after grace.
func (p *workerProcess) shutdown(grace time.Duration) {
	p.stdin.Close()

	exited := make(chan struct{})
	go func() {
		for range p.lines {
		}
		close(exited)
	}()

	select {
	case <-exited:
	case <-time.After(grace):
	}
	p.stop()
}

func buildEnvironment(additionalEnv []string) []string {
	env := append(os.Environ(), "PYTHONUNBUFFERED=1")
	if len(additionalEnv) > 0 {
		env = append(env, additionalEnv...)
	}
	return env
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
