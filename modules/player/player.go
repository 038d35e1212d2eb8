package player

import (
	"context"
	"log/slog"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pacecast/pacecast/pkg/fetch"
	"github.com/pacecast/pacecast/pkg/mediastream"
	"github.com/pacecast/pacecast/pkg/ogg"
)

var module = "player"

const metricsNamespace = "pacecast"

// Player runs one playback or bulk-save session as a dskit service: starting
// opens the media source, running drives the fetch pipeline to completion,
// stopping tears down whatever is still live.
type Player struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	metrics *fetch.Metrics
	source  fetch.Source
}

// New creates and returns a new Player.
func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Player, error) {
	if cfg.URL == "" {
		return nil, errors.New("player requires a stream URL")
	}

	p := &Player{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		metrics: fetch.NewMetrics(metricsNamespace, reg),
	}

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)

	return p, nil
}

func (p *Player) starting(ctx context.Context) error {
	p.source = mediastream.NewHTTPSource(p.cfg.MediaID, p.cfg.URL, p.cfg.UserAgent)

	// Open the stream now so a bad URL fails the module instead of a
	// session.
	stream, err := p.source.Stream()
	if err != nil {
		p.logger.Error("error opening stream", "err", err)
		return err
	}
	p.logger.Info("stream opened", "id", p.source.ID(), "size", stream.Size())

	return nil
}

func (p *Player) running(ctx context.Context) error {
	var err error
	if p.cfg.Output != "" {
		err = p.save(ctx)
	} else {
		err = p.play(ctx)
	}
	if err != nil {
		return err
	}

	// One session per invocation; a clean finish stops the process.
	return modules.ErrStopProcess
}

func (p *Player) stopping(_ error) error {
	if p.source != nil {
		p.source.Invalidate()
	}
	return nil
}

func (p *Player) play(ctx context.Context) error {
	stream, err := p.source.Stream()
	if err != nil {
		return errors.Wrap(err, "opening media stream")
	}

	consumer, err := startFFPlay(p.cfg.FFPlayPath, p.logger)
	if err != nil {
		return errors.Wrap(err, "starting audio consumer")
	}

	worker := fetch.NewWorker(p.logger, p.metrics, p.source.ID(), stream, ogg.Probe{}, nil, fetch.WorkerConfig{
		ChunkSize:    p.cfg.ChunkSize,
		EndTolerance: p.cfg.EndTolerance,
		QueueSize:    p.cfg.QueueSize,
	})
	worker.Start()

	scheduler := fetch.NewScheduler(p.logger, p.metrics, fetch.SchedulerConfig{
		PollInterval: p.cfg.PollInterval,
		StallTimeout: p.cfg.StallTimeout,
		GracePeriod:  p.cfg.GracePeriod,
		Slack:        p.cfg.Slack,
		LagRecovery:  p.cfg.LagRecovery,
	})

	result, err := scheduler.Run(ctx, worker, p.source, consumer.Stdin())
	consumer.stop()

	if errors.Is(err, fetch.ErrFetchInterrupted) {
		p.logger.Info("playback cancelled", "state", result.State.String())
		return nil
	}
	if err != nil {
		return err
	}

	p.logger.Info("playback complete",
		"started", result.PlaybackStart,
		"ended", result.PlaybackEnd,
		"compensated", result.Compensated,
	)
	return nil
}
