package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"golang.org/x/xerrors"
)

type ControllerOptions struct {
	Clock       Clock
	ErrorStream chan<- interface{}
	StatsStream chan<- interface{}
}

// Controller owns startup, the tick loop and teardown of one detection
// session.
type Controller struct {
	svcs    ServicesFactory
	opts    ControllerOptions
	session string
	state   atomic.Int32

	intervals *IntervalStore
	throttle  *Throttle
	overlay   *Overlay
	cell      *AttributesCell
	journal   *Journal
	uploader  *Uploader
	sampler   *Sampler

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	skipped atomic.Int64
}

func NewController(svcs ServicesFactory, opts ControllerOptions) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	session := uuid.NewString()
	pipe := svcs.CfgSvc.GetPipeline()

	c := &Controller{
		svcs:      svcs,
		opts:      opts,
		session:   session,
		intervals: NewIntervalStore(svcs.CollectorSvc, svcs.CfgSvc.GetDefaultInterval()),
		throttle:  NewThrottle(),
		overlay:   NewOverlay(svcs.DisplaySvc),
		cell:      NewAttributesCell(),
		journal:   NewJournal(pipe.JournalFile),
	}
	c.uploader = NewUploader(UploaderOptions{
		Session:     session,
		Collector:   svcs.CollectorSvc,
		Snapshotter: svcs.VideoSvc,
		Intervals:   c.intervals,
		Throttle:    c.throttle,
		Clock:       opts.Clock,
		Timeout:     svcs.CfgSvc.GetUploadTimeout(),
		Journal:     c.journal,
		ErrorStream: opts.ErrorStream,
	})
	c.sampler = NewSampler(session, svcs.VideoSvc, svcs.InferenceSvc, c.overlay, c.uploader, c.cell, opts.Clock)
	return c
}

func (c *Controller) Session() string {
	return c.session
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	lgr.Logger.Info("pipeline state changed",
		slog.String("session", c.session),
		slog.String("from", prev.String()),
		slog.String("to", s.String()),
	)
}

// Attributes is the observable cell the view layer subscribes to.
func (c *Controller) Attributes() *AttributesCell {
	return c.cell
}

// Stats snapshots the sampler and uploader counters.
func (c *Controller) Stats() (model.SamplerStats, model.UploaderStats) {
	samplerStats := c.sampler.Stats()
	samplerStats.SkippedTicks = c.skipped.Load()
	return samplerStats, c.uploader.Stats()
}

func (c *Controller) Intervals() *IntervalStore {
	return c.intervals
}

// UploadInterval is the interval the throttle compares against right now.
func (c *Controller) UploadInterval() time.Duration {
	return c.intervals.Get()
}

// SetUploadInterval pushes a new interval to the collector and applies it
// locally once acknowledged.
func (c *Controller) SetUploadInterval(ctx context.Context, seconds float64) error {
	return c.intervals.Set(ctx, seconds)
}

// Stop cancels the tick loop. Run performs the teardown and returns. A Stop
// that lands before Run cancels Run as soon as it starts.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Run drives the session until ctx is cancelled or Stop is called. A model
// load failure or a media failure returns early and leaves the controller in
// the Error state.
func (c *Controller) Run(ctx context.Context) error {
	if c.State() != Uninitialized {
		return xerrors.Errorf("controller already started: %s", c.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.journal.Close()
		c.setState(Stopped)
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	lgr.Logger.Info("pipeline starting....",
		slog.String("session", c.session),
		slog.Duration("tickPeriod", c.svcs.CfgSvc.GetTickPeriod()),
		slog.Duration("defaultInterval", c.svcs.CfgSvc.GetDefaultInterval()),
	)

	if err := c.svcs.InferenceSvc.LoadModels(ctx); err != nil {
		c.setState(Error)
		c.journal.Close()
		if !xerrors.Is(err, model.ErrModelLoad) {
			err = xerrors.Errorf("%v: %w", err, model.ErrModelLoad)
		}
		return err
	}
	c.setState(ModelsReady)

	if err := c.svcs.VideoSvc.Open(ctx); err != nil {
		lgr.Logger.Error("error acquiring video source",
			slog.String("session", c.session),
			slog.Any("error", err),
		)
		c.setState(Error)
		c.svcs.InferenceSvc.Close()
		c.journal.Close()
		if !xerrors.Is(err, model.ErrMediaAcquisition) {
			err = xerrors.Errorf("%v: %w", err, model.ErrMediaAcquisition)
		}
		return err
	}
	c.setState(VideoReady)

	// Seeding runs beside the loop so a slow or dead collector never holds
	// up detection
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		if err := c.intervals.Seed(ctx); err != nil {
			c.report(model.GenError("controller", err, map[string]interface{}{
				"default": c.intervals.Get().String(),
			}, "error seeding upload interval"))
		}
	}()

	go func() {
		defer background.Done()
		c.forwardAttributes(ctx)
	}()

	c.setState(Detecting)
	c.loop(ctx)
	background.Wait()
	return c.teardown()
}

func (c *Controller) loop(ctx context.Context) {
	ticker := time.NewTicker(c.svcs.CfgSvc.GetTickPeriod())
	defer ticker.Stop()

	statsPeriod := c.svcs.CfgSvc.GetStatsPeriod()
	if statsPeriod <= 0 {
		statsPeriod = time.Minute
	}
	statsTicker := time.NewTicker(statsPeriod)
	defer statsTicker.Stop()

	var slots chan struct{}
	if limit := c.svcs.CfgSvc.GetPipeline().MaxInFlightTicks; limit > 0 {
		slots = make(chan struct{}, limit)
	}

	var ticks sync.WaitGroup
	var seq int64

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("pipeline context cancelled",
				slog.String("session", c.session),
			)
			ticks.Wait()
			return

		case <-ticker.C:
			seq++
			if slots != nil {
				select {
				case slots <- struct{}{}:
				default:
					c.skipped.Add(1)
					lgr.Logger.Debug("tick skipped, too many in flight",
						slog.Int64("tick", seq),
					)
					continue
				}
			}

			ticks.Add(1)
			go func(seq int64) {
				defer ticks.Done()
				if slots != nil {
					defer func() { <-slots }()
				}
				if err := c.sampler.Tick(ctx, seq); err != nil {
					lgr.Logger.Warn("inference tick abandoned",
						slog.Int64("tick", seq),
						slog.Any("error", err),
					)
					c.report(model.GenError("sampler", err, map[string]interface{}{
						"tick": seq,
					}, "error processing tick"))
				}
			}(seq)

		case <-statsTicker.C:
			c.publishStats()
		}
	}
}

func (c *Controller) forwardAttributes(ctx context.Context) {
	if c.svcs.EmitterSvc == nil {
		return
	}
	updates, unsubscribe := c.cell.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case attrs := <-updates:
			if err := c.svcs.EmitterSvc.Publish(ctx, attrs); err != nil {
				lgr.Logger.Warn("error emitting attributes",
					slog.Any("error", err),
				)
			}
		}
	}
}

// UploadDrainTimeout bounds how long teardown waits for in-flight uploads
// before closing the services.
func UploadDrainTimeout(cfgSvc config.IService) time.Duration {
	return time.Duration(cfgSvc.GetModeMaxShutdownTime()) * time.Second
}

func (c *Controller) teardown() error {
	lgr.Logger.Info("pipeline is waiting for uploads to finish",
		slog.String("session", c.session),
	)

	waitCtx, cancel := context.WithTimeout(context.Background(), UploadDrainTimeout(c.svcs.CfgSvc))
	defer cancel()
	if err := c.uploader.Wait(waitCtx); err != nil {
		lgr.Logger.Warn("uploads still in flight at shutdown",
			slog.Int64("inFlight", c.uploader.Stats().InFlight),
		)
	}

	c.publishStats()

	var errs []error
	if c.svcs.DisplaySvc != nil {
		errs = append(errs, c.svcs.DisplaySvc.Close())
	}
	errs = append(errs,
		c.svcs.VideoSvc.Close(),
		c.svcs.InferenceSvc.Close(),
		c.journal.Close(),
	)

	c.setState(Stopped)

	for _, err := range errs {
		if err != nil {
			return xerrors.Errorf("pipeline teardown: %w", err)
		}
	}
	return nil
}

func (c *Controller) publishStats() {
	now := time.Now().Unix()
	samplerStats, uploaderStats := c.Stats()
	samplerStats.Timestamp = now
	uploaderStats.Timestamp = now

	c.emit(c.opts.StatsStream, samplerStats)
	c.emit(c.opts.StatsStream, uploaderStats)
}

func (c *Controller) report(err model.CustomError) {
	c.emit(c.opts.ErrorStream, err)
}

func (c *Controller) emit(stream chan<- interface{}, v interface{}) {
	if stream == nil {
		return
	}
	select {
	case stream <- v:
	default:
		lgr.Logger.Debug("stream full, dropping item", slog.Any("item", v))
	}
}
