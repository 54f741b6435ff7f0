package processor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oshokin/telemetry-monitor/internal/api/grpc/health"
	"github.com/oshokin/telemetry-monitor/internal/broker"
	"github.com/oshokin/telemetry-monitor/internal/config"
	"github.com/oshokin/telemetry-monitor/internal/domain/threshold"
	"github.com/oshokin/telemetry-monitor/internal/logger"
	"github.com/oshokin/telemetry-monitor/internal/metrics"
	"github.com/oshokin/telemetry-monitor/internal/repository/record"
	"github.com/oshokin/telemetry-monitor/internal/repository/state"
	"github.com/oshokin/telemetry-monitor/internal/service/common"
	"github.com/oshokin/telemetry-monitor/internal/transport/mqtt"
	"github.com/oshokin/telemetry-monitor/internal/version"
)

// BinaryName names the processor in logs and generated client ids.
const BinaryName = "telemetry-processor"

// Options controls the processor process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Config is used instead of loading ConfigPath when set.
	Config *config.Config
	// LogLevel overrides log.level from the configuration.
	LogLevel string
	// BrokerURL overrides mqtt.broker_url.
	BrokerURL string
	// EmbeddedBroker forces the in-process broker on.
	EmbeddedBroker bool
	// SingleInstance refuses to start when another processor runs on the host.
	SingleInstance bool
	// Sink replaces the configured storage driver.
	Sink record.Sink
	// OnReady is called once the broker session is up and every endpoint listens.
	OnReady func(Endpoints)
}

// Endpoints are the resolved addresses of a running processor.
type Endpoints struct {
	BrokerURL string
	Metrics   string
	Health    string
}

// Run starts the processor and blocks until ctx is canceled or a component fails.
//
//nolint:cyclop,funlen // Linear wiring of every component; splitting hides the startup order.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Contexts that already carry a logger keep it.
	levelOK := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	ctx = logger.WithName(ctx, BinaryName)

	if !levelOK {
		logger.WarnKV(ctx, "Unknown log level, using info", "level", cfg.Log.Level)
	}
	logger.InfoKV(ctx, "Starting processor", version.KV()...)

	if opts.SingleInstance {
		if err = common.EnsureSingleInstance(); err != nil {
			return err
		}
	}

	sink, closeSink, err := openSink(ctx, opts.Sink, &cfg.Storage)
	if err != nil {
		return err
	}

	defer closeSink()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recorder := metrics.NewRecorder()
	store := state.NewStore()
	writer := NewWriter(sink, recorder, cfg.Processor.PersistTimeout)
	gateway := NewGateway(store, threshold.NewClassifier(cfg.Processor.Thresholds), writer, recorder,
		WithRegistrationTopic(cfg.MQTT.RegistrationTopic))
	sweeper := NewSweeper(store, writer, recorder, cfg.Processor.SweepInterval, cfg.Processor.InactivityThreshold)

	var endpoints Endpoints

	endpoints.BrokerURL = cfg.MQTT.BrokerURL

	if cfg.MQTT.EmbeddedBroker.Enabled {
		embedded, startErr := broker.Start(ctx, cfg.MQTT.EmbeddedBroker.Address)
		if startErr != nil {
			return startErr
		}

		defer func() {
			if closeErr := embedded.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Embedded broker close failed", "error", closeErr)
			}
		}()

		endpoints.BrokerURL = embedded.URL()
	}

	runner := newRunner(cancel)
	lc := net.ListenConfig{}

	var healthServer *health.Server

	if config.Enabled(cfg.Health.Address) {
		lis, listenErr := lc.Listen(ctx, "tcp", cfg.Health.Address)
		if listenErr != nil {
			return fmt.Errorf("listen health on %s: %w", cfg.Health.Address, listenErr)
		}

		endpoints.Health = lis.Addr().String()
		healthServer = health.NewServer()

		runner.Go(func() error { return healthServer.Serve(ctx, lis) })
	}

	if config.Enabled(cfg.Metrics.Address) {
		lis, listenErr := lc.Listen(ctx, "tcp", cfg.Metrics.Address)
		if listenErr != nil {
			runner.Stop()

			return fmt.Errorf("listen metrics on %s: %w", cfg.Metrics.Address, listenErr)
		}

		endpoints.Metrics = lis.Addr().String()

		runner.Go(func() error { return metrics.Serve(ctx, lis, recorder.Registry()) })
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		if clientID, err = common.ClientID(BinaryName); err != nil {
			runner.Stop()

			return fmt.Errorf("generate client id: %w", err)
		}
	}

	topics := append([]string{}, cfg.MQTT.SensorTopics...)
	if cfg.MQTT.RegistrationTopic != "" {
		topics = append(topics, cfg.MQTT.RegistrationTopic)
	}

	client, err := mqtt.New(mqtt.Config{
		BrokerURL:      endpoints.BrokerURL,
		ClientID:       clientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		QoS:            cfg.MQTT.QoSLevel(),
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		ReconnectMin:   cfg.MQTT.ReconnectMin,
		ReconnectMax:   cfg.MQTT.ReconnectMax,
	},
		mqtt.WithSubscriptions(topics...),
		mqtt.WithHandler(gateway.HandleMessage),
		mqtt.WithConnectionListener(func(connected bool) {
			if healthServer != nil {
				healthServer.SetServing(connected)
			}
		}),
	)
	if err != nil {
		runner.Stop()

		return fmt.Errorf("create mqtt client: %w", err)
	}

	runner.Go(func() error { return client.Run(ctx) })
	runner.Go(func() error { return sweeper.Run(ctx) })

	logger.InfoKV(ctx, "Processor running",
		"broker", endpoints.BrokerURL,
		"topics", topics,
		"sink", sink.Name(),
		"metrics", endpoints.Metrics,
		"health", endpoints.Health)

	if opts.OnReady != nil {
		runner.Go(func() error {
			if awaitErr := client.AwaitConnection(ctx); awaitErr != nil {
				return nil //nolint:nilerr // Shutdown before the first session is not a failure.
			}

			opts.OnReady(endpoints)

			return nil
		})
	}

	err = runner.Wait()

	logger.Info(ctx, "Processor stopped")

	return err
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := opts.Config.Clone()
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if opts.BrokerURL != "" {
		cfg.MQTT.BrokerURL = opts.BrokerURL
	}

	if opts.EmbeddedBroker {
		cfg.MQTT.EmbeddedBroker.Enabled = true
	}

	if opts.Sink != nil {
		cfg.Storage.Driver = config.DriverMemory
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// openSink builds the configured sink and the function releasing it.
func openSink(ctx context.Context, override record.Sink, cfg *config.StorageConfig) (record.Sink, func(), error) {
	noop := func() {}

	if override != nil {
		return override, noop, nil
	}

	switch cfg.Driver {
	case config.DriverMemory:
		return record.NewMemorySink(), noop, nil
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)

		closeDB := func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Database close failed", "error", closeErr)
			}
		}

		if err = db.PingContext(ctx); err != nil {
			closeDB()

			return nil, nil, fmt.Errorf("ping database: %w", err)
		}

		sink, err := record.NewPostgresSink(db, cfg.ReadingsTable, cfg.AlarmsTable)
		if err != nil {
			closeDB()

			return nil, nil, err
		}

		if cfg.ShouldMigrate() {
			if err = sink.EnsureSchema(ctx); err != nil {
				closeDB()

				return nil, nil, err
			}
		}

		return sink, closeDB, nil
	default:
		return record.NewLogSink(), noop, nil
	}
}

// runner runs components and cancels the rest when one fails.
type runner struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu  sync.Mutex
	err error
}

func newRunner(cancel context.CancelFunc) *runner {
	return &runner{cancel: cancel}
}

// Go runs fn; a non-nil error stops every other component.
func (r *runner) Go(fn func() error) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		if err := fn(); err != nil {
			r.mu.Lock()
			r.err = errors.Join(r.err, err)
			r.mu.Unlock()

			r.cancel()
		}
	}()
}

// Stop cancels every component and waits for them.
func (r *runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every component returned.
func (r *runner) Wait() error {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}
