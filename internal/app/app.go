// Package app wires the daemon together. An App is created once at startup,
// owns every component and is torn down on shutdown; there is no
// package-level state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/thirdeye/internal/camera"
	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/detection"
	"github.com/nadzzz/thirdeye/internal/emergency"
	"github.com/nadzzz/thirdeye/internal/health"
	"github.com/nadzzz/thirdeye/internal/locale"
	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/metrics"
	"github.com/nadzzz/thirdeye/internal/mode"
	"github.com/nadzzz/thirdeye/internal/orchestrator"
	"github.com/nadzzz/thirdeye/internal/provider"
	"github.com/nadzzz/thirdeye/internal/provider/gemini"
	"github.com/nadzzz/thirdeye/internal/provider/openai"
	"github.com/nadzzz/thirdeye/internal/provider/relay"
	"github.com/nadzzz/thirdeye/internal/scheduler"
	"github.com/nadzzz/thirdeye/internal/speech"
	"github.com/nadzzz/thirdeye/internal/speech/piper"
	"github.com/nadzzz/thirdeye/internal/torch"
	"github.com/nadzzz/thirdeye/internal/transport"
	grpctransport "github.com/nadzzz/thirdeye/internal/transport/grpc"
	httptransport "github.com/nadzzz/thirdeye/internal/transport/http"
	mqtttransport "github.com/nadzzz/thirdeye/internal/transport/mqtt"
	"github.com/nadzzz/thirdeye/internal/voice"
)

// App is the running daemon.
type App struct {
	cfg    *config.Config
	locale *locale.Locale

	hub        *transport.Hub
	transports []transport.Transport
	health     *health.Server
	sched      *scheduler.Scheduler

	cascade   *provider.Cascade
	frames    *camera.Buffer
	speech    *speech.Channel
	synth     speech.Synthesizer
	torch     *torch.Controller
	sampler   *torch.Sampler
	orch      *orchestrator.Orchestrator
	emergency *emergency.Service
	locations *emergency.LocationStore
	overlay   *detection.Overlay
	mode      *mode.Controller
	router    *voice.Router

	utterances chan string
	voices     chan []message.Voice
}

// New builds every component from cfg. Nothing runs until Run is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := LoadLocale(cfg.Locale)
	if err != nil {
		return nil, err
	}

	providers, err := BuildProviders(ctx, cfg.Providers.Ordered(), loc.Prompts)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		locale:     loc,
		transports: BuildTransports(cfg.Transports),
		health:     health.New(cfg.Server.HealthPort),
		sched:      scheduler.New(),
		cascade:    provider.NewCascade(providers, ObserveAttempt),
		frames:     camera.NewBuffer(cfg.Analysis.FrameMaxAge),
		locations:  &emergency.LocationStore{},
		utterances: make(chan string, 8),
		voices:     make(chan []message.Voice, 1),
	}
	a.hub = transport.NewHub(128, a.transports...)

	if cfg.Speech.TTS.Enabled {
		switch cfg.Speech.TTS.Backend {
		case "piper":
			a.synth = piper.New(cfg.Speech.TTS.Piper)
		default:
			return nil, fmt.Errorf("unknown tts backend %q", cfg.Speech.TTS.Backend)
		}
	}
	a.speech = speech.NewChannel(cfg.Speech, loc.Speech, a.hub, a.synth)

	a.torch = torch.New(cfg.Torch, torchEffector{pub: a.hub}, a.speech, loc.Messages.Dark)
	a.sampler = torch.NewSampler(a.frames, a.torch)

	a.orch = orchestrator.New(orchestrator.Config{
		Interval:     cfg.Analysis.Interval,
		CycleTimeout: cfg.Analysis.CycleTimeout,
		Messages:     loc.Messages,
	}, a.cascade, a.frames, a.speech, a.hub, a.sched)

	a.emergency = emergency.NewService(BuildSender(cfg.Emergency), cfg.Emergency.Contact,
		cfg.Emergency.Timeout, a.locations, loc.Messages, a.hub, a.speech)

	a.overlay = detection.NewOverlay(loc, cfg.Detection.MinConfidence, a.hub)

	a.mode = mode.New(mode.Config{
		FocusDelay: cfg.Analysis.FocusDelay,
		Messages:   loc.Messages,
	}, a.orch, a.torch, a.speech, a.hub, a.emergency)

	a.router = voice.NewRouter(voice.NewClassifier(loc), a.mode)

	slog.Info("app initialized",
		"locale", loc.Code,
		"providers", a.cascade.Providers(),
		"transports", len(a.transports),
		"tts", a.synth != nil,
		"emergency", a.emergency.Enabled())
	return a, nil
}

// LoadLocale returns the configured locale: a custom file when set, otherwise a built-in table.
func LoadLocale(cfg config.LocaleConfig) (*locale.Locale, error) {
	if cfg.File != "" {
		return locale.LoadFile(cfg.File)
	}
	return locale.Load(cfg.Code)
}

// BuildProviders creates the analysis backends in cascade order.
func BuildProviders(ctx context.Context, cfgs []config.ProviderConfig, prompts locale.Prompts) ([]provider.Provider, error) {
	providers := make([]provider.Provider, 0, len(cfgs))
	for _, pc := range cfgs {
		var p provider.Provider
		switch pc.Kind {
		case "gemini":
			g, err := gemini.New(ctx, pc, prompts)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			p = g
		case "openai":
			p = openai.New(pc, prompts)
		case "relay":
			p = relay.New(pc)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", pc.Name, pc.Kind)
		}
		slog.Info("provider configured", "name", p.Name(), "kind", pc.Kind, "model", pc.Model)
		providers = append(providers, p)
	}
	return providers, nil
}

// ObserveAttempt records one provider call in the metrics.
func ObserveAttempt(a provider.Attempt) {
	metrics.ProviderLatency.WithLabelValues(a.Provider).Observe(a.Duration.Seconds())
	metrics.ProviderCalls.WithLabelValues(a.Provider, attemptOutcome(a.Err)).Inc()
}

func attemptOutcome(err error) string {
	var cfgErr *provider.ConfigurationError
	var emptyErr *provider.EmptyResponseError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &cfgErr):
		return "not_configured"
	case errors.As(err, &emptyErr):
		return "empty"
	case provider.StatusCode(err) > 0:
		return fmt.Sprintf("http_%d", provider.StatusCode(err))
	default:
		return "error"
	}
}

// BuildTransports creates the enabled client transports.
func BuildTransports(cfg config.TransportsConfig) []transport.Transport {
	var transports []transport.Transport
	if cfg.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.GRPC.Port))
	}
	if cfg.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.HTTP))
	}
	if cfg.MQTT.Enabled {
		transports = append(transports, mqtttransport.New(cfg.MQTT))
	}
	return transports
}

// BuildSender creates the emergency alert channel. It returns nil when no
// contact is configured.
func BuildSender(cfg config.EmergencyConfig) emergency.Sender {
	if cfg.Contact == "" {
		return nil
	}
	switch cfg.Channel {
	case "webhook":
		return emergency.NewWebhookSender(cfg.Webhook, cfg.Timeout)
	default:
		return emergency.NewTelegramSender(cfg.Telegram, cfg.Timeout)
	}
}

// torchEffector switches the torch on the client device by pushing torch events.
type torchEffector struct {
	pub *transport.Hub
}

func (e torchEffector) SetTorch(_ context.Context, on bool) error {
	ev := message.NewEvent(message.EventTorch)
	ev.TorchOn = &on
	e.pub.Publish(ev)
	return nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if len(a.transports) == 0 {
		slog.Warn("no transports enabled, only the health server is reachable")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.health.ListenAndServe(ctx) })
	g.Go(func() error {
		a.mode.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.router.Run(ctx, a.utterances)
		return nil
	})
	g.Go(func() error {
		a.speech.Watch(ctx, a.voices)
		return nil
	})

	for _, t := range a.transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, a.Handle); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	a.sched.Start()
	sampling := a.sched.Every("brightness", a.cfg.Torch.SampleInterval, func() {
		a.sampler.Tick(ctx)
	})

	// Mark as ready once all transports are started.
	a.health.SetReady(true)
	slog.Info("thirdeye ready",
		"transports", len(a.transports),
		"health_port", a.cfg.Server.HealthPort)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	a.health.SetReady(false)
	sampling.Stop()

	for _, t := range a.transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}
	return g.Wait()
}

// Close releases every component. Call it after Run has returned.
func (a *App) Close() error {
	<-a.sched.Stop().Done()
	a.orch.Close()
	a.emergency.Close()

	var errs []error
	if err := a.speech.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing speech: %w", err))
	}
	if a.synth != nil {
		if err := a.synth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing tts: %w", err))
		}
	}
	if err := a.cascade.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Handle applies one command from any transport and returns the resulting state.
func (a *App) Handle(ctx context.Context, cmd *message.Command) (*message.State, error) {
	logger := slog.With("command_id", cmd.ID, "kind", cmd.Kind, "source", cmd.Source)
	logger.Debug("command received")

	if err := a.apply(ctx, cmd); err != nil {
		logger.Warn("command failed", "error", err)
		return nil, err
	}
	state := a.State()
	return &state, nil
}

func (a *App) apply(ctx context.Context, cmd *message.Command) error {
	switch cmd.Kind {
	case message.CommandSelectMode:
		if _, err := a.mode.Select(cmd.Mode); err != nil {
			if errors.Is(err, mode.ErrStopped) {
				return err
			}
			return badCommand(err)
		}
	case message.CommandStop:
		return a.mode.Stop()
	case message.CommandDescribe:
		_, err := a.mode.Describe()
		return err
	case message.CommandAsk:
		_, err := a.mode.Ask(cmd.Text)
		return err
	case message.CommandTorch:
		return a.mode.SetTorch(*cmd.On)
	case message.CommandFocusBox:
		return a.mode.FocusBox(*cmd.Box)
	case message.CommandUtterance:
		select {
		case a.utterances <- cmd.Text:
		case <-ctx.Done():
			return ctx.Err()
		}
	case message.CommandVoices:
		// Only the newest list matters; replace one that is still pending.
		select {
		case <-a.voices:
		default:
		}
		select {
		case a.voices <- cmd.Voices:
		default:
		}
	case message.CommandFrame:
		if err := a.frames.Put(cmd.Frame); err != nil {
			return badCommand(err)
		}
	case message.CommandBrightness:
		a.torch.Sample(ctx, *cmd.Brightness)
	case message.CommandLocation:
		a.locations.Set(*cmd.Location)
	case message.CommandDetections:
		a.overlay.Update(*cmd.Detections)
	case message.CommandMute:
		a.speech.SetMuted(*cmd.On)
	case message.CommandState:
	default:
		return badCommand(fmt.Errorf("unknown command kind %q", cmd.Kind))
	}
	return nil
}

func badCommand(err error) error {
	return fmt.Errorf("%w: %w", transport.ErrBadCommand, err)
}

// State returns a snapshot of everything the client renders.
func (a *App) State() message.State {
	status := a.orch.Status()
	t := a.torch.State()
	return message.State{
		Mode:          a.mode.Mode(),
		Text:          status.Text,
		Boxes:         status.Boxes,
		Detections:    a.overlay.Boxes(),
		TorchOn:       t.On,
		TorchOverride: t.Override,
		InFlight:      status.InFlight,
		Muted:         a.speech.Muted(),
	}
}

// DescribeOnce runs a single cascade analysis of image outside the daemon.
func DescribeOnce(ctx context.Context, cfg *config.Config, image []byte, m message.Mode, query string) (message.Result, error) {
	loc, err := LoadLocale(cfg.Locale)
	if err != nil {
		return message.Result{}, err
	}
	providers, err := BuildProviders(ctx, cfg.Providers.Ordered(), loc.Prompts)
	if err != nil {
		return message.Result{}, err
	}
	cascade := provider.NewCascade(providers, ObserveAttempt)
	defer cascade.Close()

	if cfg.Analysis.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Analysis.CycleTimeout)
		defer cancel()
	}

	return cascade.Analyze(ctx, message.Request{
		ID:    uuid.NewString(),
		Image: image,
		Mode:  m,
		Query: query,
	})
}
