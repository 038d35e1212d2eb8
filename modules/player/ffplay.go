package player

import (
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// ffplayStopTimeout bounds the wait for ffplay to exit after its input is
// closed before it gets killed.
const ffplayStopTimeout = 2 * time.Second

// ffplayConsumer is the downstream audio consumer: an ffplay process fed raw
// audio bytes on stdin.
type ffplayConsumer struct {
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

func startFFPlay(path string, logger *slog.Logger) (*ffplayConsumer, error) {
	if path == "" {
		path = defaultFFPlayPath
	}

	cmd := exec.Command(path, "-nodisp", "-autoexit", "-loglevel", "error", "-i", "-")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	logger.Debug("started audio consumer", "path", path, "pid", cmd.Process.Pid)

	return &ffplayConsumer{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
	}, nil
}

// Stdin is the write-only channel the scheduler delivers audio bytes to. The
// scheduler closes it on exit.
func (c *ffplayConsumer) Stdin() io.WriteCloser { return c.stdin }

// stop waits briefly for ffplay to exit on its own (it does once stdin is
// closed), then kills it.
func (c *ffplayConsumer) stop() {
	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(ffplayStopTimeout):
		c.logger.Debug("killing audio consumer", "pid", c.cmd.Process.Pid)
		_ = c.cmd.Process.Kill()
		<-done
	}
}
