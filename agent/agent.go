package agent

import (
	"sync"

	"github.com/JacLight/mintflow-sub008/action"
	"github.com/JacLight/mintflow-sub008/broadcast"
	"github.com/JacLight/mintflow-sub008/config"
	"github.com/JacLight/mintflow-sub008/console"
	"github.com/JacLight/mintflow-sub008/engine"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/metadata"
	"github.com/JacLight/mintflow-sub008/metrics"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/JacLight/mintflow-sub008/persistence/memory"
	"github.com/JacLight/mintflow-sub008/persistence/redis"
	"github.com/JacLight/mintflow-sub008/rest"
)

// Agent assembles and runs all services. Setup functions run in dependency
// order; Shutdown unwinds them and drains the shared WaitGroup.
type Agent struct {
	Config config.Config

	actions         *action.Registry
	flowStore       persistence.FlowStore
	metricsStore    persistence.MetricsStore
	metadataService metadata.Service
	hub             *broadcast.Hub
	workspaces      *broadcast.Workspaces
	metricsService  *metrics.Service
	flowEngine      *engine.FlowEngine
	httpServer      *rest.Server
	operatorConsole *console.Console

	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config:    conf,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupActions,
		a.setupStores,
		a.setupMetadataService,
		a.setupBroadcast,
		a.setupMetricsService,
		a.setupFlowEngine,
		a.setupHttpServer,
		a.setupConsole,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupActions() error {
	a.actions = action.NewRegistry()
	return nil
}

func (a *Agent) setupStores() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		redisConf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		a.flowStore = redis.NewRedisFlowStore(redisConf)
		a.metricsStore = redis.NewRedisMetricsStore(redisConf)
	default:
		a.flowStore = memory.NewFlowStore()
		a.metricsStore = memory.NewMetricsStore()
	}
	return nil
}

func (a *Agent) setupMetadataService() error {
	var storage metadata.Storage
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		storage = metadata.NewRedisStorage(a.Config.RedisConfig.Addrs, a.Config.RedisConfig.Namespace)
	default:
		storage = metadata.NewInMemStorage()
	}
	a.metadataService = metadata.NewService(storage, a.actions)
	return nil
}

func (a *Agent) setupBroadcast() error {
	a.hub = broadcast.NewHub(16)
	a.workspaces = broadcast.NewWorkspaces(a.hub)
	return nil
}

func (a *Agent) setupMetricsService() error {
	a.metricsService = metrics.NewService(a.metricsStore)
	return nil
}

func (a *Agent) setupFlowEngine() error {
	a.flowEngine = engine.NewFlowEngine(engine.Config{
		Store:            a.flowStore,
		Metadata:         a.metadataService,
		Actions:          a.actions,
		Hub:              a.hub,
		Metrics:          a.metricsService,
		ExecutorCapacity: a.Config.ExecutorCapacity,
		DelayPollSeconds: a.Config.DelayPollSeconds,
	}, &a.wg)

	// join-time snapshots: workspace rooms from the session registry, flow
	// rooms from the flow store
	a.hub.SetSnapshot(func(roomKey string) (any, bool) {
		if workspaceId, ok := broadcast.IsWorkspaceRoom(roomKey); ok {
			return a.workspaces.Snapshot(workspaceId)
		}
		return a.flowEngine.FlowSnapshot(roomKey)
	})

	a.flowEngine.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.flowEngine, a.metadataService, a.metricsService, a.hub, a.workspaces)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) setupConsole() error {
	if !a.Config.EnableConsole {
		return nil
	}
	a.operatorConsole = console.NewConsole(a.flowEngine, a.metadataService, a.hub)
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	if a.operatorConsole != nil {
		a.operatorConsole.Run()
	}
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.flowEngine.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
