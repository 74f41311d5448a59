// Package di wires the full object graph shared by the server and lambda
// entrypoints.
package di

import (
	"context"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/ports"
	"analyst-backend/application/services"
	"analyst-backend/domain/core/entities"
	"analyst-backend/infrastructure/channels/gemini"
	"analyst-backend/infrastructure/channels/messaging"
	"analyst-backend/infrastructure/channels/telephony"
	"analyst-backend/infrastructure/channels/vectorstore"
	"analyst-backend/infrastructure/channels/webfetch"
	"analyst-backend/infrastructure/config"
	infmessaging "analyst-backend/infrastructure/messaging"
	"analyst-backend/infrastructure/messaging/eventbridge"
	"analyst-backend/infrastructure/observability"
	"analyst-backend/infrastructure/persistence/dynamodb"
	"analyst-backend/infrastructure/persistence/memory"
	"analyst-backend/infrastructure/tracing"
	"analyst-backend/interfaces/http/rest"
	"analyst-backend/interfaces/http/rest/handlers"
)

// Version is stamped into the health endpoint.
const Version = "1.0.0"

// Container holds the wired application graph.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Router       *chi.Mux
	Orchestrator *services.Orchestrator
	Registry     *services.Registry
	Sources      *services.DataSourceService
	Synthesizer  *services.MemoSynthesizer
	Sweeper      *services.Sweeper
	Dispatcher   *infmessaging.Dispatcher
	Collector    *observability.Collector

	cleanups []func()
}

// NewContainer builds the application graph from configuration.
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		shutdown, err := tracing.Init(ctx, "analyst-backend", cfg.Observability.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		c.onShutdown(func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("tracer shutdown", zap.Error(err))
			}
		})
	}

	c.Collector = observability.NewCollector()
	c.Dispatcher = infmessaging.NewDispatcher(logger)

	var (
		agentRepo  ports.AgentRepository
		execRepo   ports.ExecutionRepository
		sourceRepo ports.DataSourceRepository
		memoRepo   ports.MemoRepository
		publisher  ports.EventPublisher = c.Dispatcher
	)

	switch cfg.Persistence.Driver {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Persistence.AWSRegion))
		if err != nil {
			c.Close()
			return nil, err
		}
		client := dynamodb.NewClientFromConfig(awsCfg, cfg.Persistence.DynamoDBTable)
		agentRepo = dynamodb.NewAgentRepository(client)
		execRepo = dynamodb.NewExecutionRepository(client)
		sourceRepo = dynamodb.NewDataSourceRepository(client)
		memoRepo = dynamodb.NewMemoRepository(client)

		bridge := eventbridge.NewPublisher(
			awseventbridge.NewFromConfig(awsCfg), cfg.Persistence.EventBusName, logger)
		publisher = infmessaging.NewFanout(c.Dispatcher, bridge)
		logger.Info("using dynamodb persistence",
			zap.String("table", cfg.Persistence.DynamoDBTable),
			zap.String("eventBus", cfg.Persistence.EventBusName))
	default:
		agentRepo = memory.NewAgentRepository()
		execRepo = memory.NewExecutionRepository()
		sourceRepo = memory.NewDataSourceRepository()
		memoRepo = memory.NewMemoRepository()
		logger.Info("using in-memory persistence")
	}

	completion, err := gemini.New(ctx,
		cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbeddingModel, c.Collector, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	caller := telephony.New(
		cfg.Telephony.BaseURL, cfg.Telephony.AccountSID,
		cfg.Telephony.AuthToken, cfg.Telephony.CallerNumber, c.Collector, logger)
	sender := messaging.NewSender(messaging.SenderConfig{
		SMTPHost:      cfg.Messaging.SMTPHost,
		SMTPPort:      cfg.Messaging.SMTPPort,
		SMTPUsername:  cfg.Messaging.SMTPUsername,
		SMTPPassword:  cfg.Messaging.SMTPPassword,
		FromAddress:   cfg.Messaging.FromAddress,
		SMSGatewayURL: cfg.Messaging.SMSGatewayURL,
		SMSAPIKey:     cfg.Messaging.SMSAPIKey,
	}, c.Collector, logger)
	scraper := webfetch.NewScraper(c.Collector, logger)
	vectors, err := vectorstore.Open(cfg.VectorStore.Path)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.onShutdown(func() {
		if err := vectors.Close(); err != nil {
			logger.Warn("closing vector store", zap.Error(err))
		}
	})

	c.Synthesizer = services.NewMemoSynthesizer(
		memoRepo, sourceRepo, completion, publisher, c.Collector, logger)

	capabilities := map[entities.AgentType]agents.CapabilityAgent{
		entities.AgentTypeDataIngestion: agents.Instrument(
			agents.NewDataIngestionAgent(completion, scraper, vectors), logger, c.Collector),
		entities.AgentTypeFounderVoice: agents.Instrument(
			agents.NewFounderVoiceAgent(completion, caller), logger, c.Collector),
		entities.AgentTypeBehavioralAssessment: agents.Instrument(
			agents.NewBehavioralAssessmentAgent(completion, sender), logger, c.Collector),
		entities.AgentTypeDeepResearch: agents.Instrument(
			agents.NewDeepResearchAgent(completion, scraper, vectors), logger, c.Collector),
		entities.AgentTypeCuratedMemo: agents.Instrument(
			agents.NewCuratedMemoAgent(c.Synthesizer), logger, c.Collector),
	}

	c.Orchestrator = services.NewOrchestrator(
		capabilities, agentRepo, execRepo, sourceRepo, publisher, c.Collector, logger)
	c.Registry = services.NewRegistry(agentRepo, execRepo, logger)
	c.Sources = services.NewDataSourceService(sourceRepo, publisher, logger)
	c.Sweeper = services.NewSweeper(c.Orchestrator, agentRepo, services.SweeperConfig{
		Interval:  cfg.SweepInterval(),
		Staleness: cfg.SweepStaleness(),
	}, logger)

	var metricsHandler http.Handler
	if cfg.Observability.EnableMetrics {
		metricsHandler = c.Collector.Handler()
	}

	c.Router = rest.NewRouter(rest.Handlers{
		Agents:      handlers.NewAgentHandler(c.Registry, c.Orchestrator),
		Executions:  handlers.NewExecutionHandler(c.Orchestrator),
		DataSources: handlers.NewDataSourceHandler(c.Sources),
		Memos:       handlers.NewMemoHandler(c.Synthesizer),
		Health:      handlers.NewHealthHandler(Version),
		Metrics:     metricsHandler,
	}, logger)

	return c, nil
}

// WatchOverlay starts the dynamic overlay watcher and binds it to the
// sweeper. A missing or unreadable overlay disables runtime reconfiguration
// without failing startup.
func (c *Container) WatchOverlay(path string) {
	if path == "" {
		return
	}
	watcher, err := config.NewWatcher(path, c.Logger)
	if err != nil {
		c.Logger.Warn("dynamic overlay disabled", zap.Error(err))
		return
	}
	watcher.OnChange(func(dc *config.DynamicConfig) {
		c.Sweeper.SetConfig(services.SweeperConfig{
			Interval:  time.Duration(dc.Sweeper.IntervalSeconds) * time.Second,
			Staleness: time.Duration(dc.Sweeper.StalenessMinutes) * time.Minute,
		})
	})
	watcher.Start()
	c.onShutdown(watcher.Stop)
}

// Close waits for in-flight dispatches and runs cleanups in reverse order.
func (c *Container) Close() {
	if c.Orchestrator != nil {
		c.Orchestrator.Drain()
	}
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

func (c *Container) onShutdown(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}
