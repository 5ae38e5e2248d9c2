// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/mock"
	natsinfra "github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/nats"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/opensearch"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/openstack"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"

	"github.com/nats-io/nats.go"
)

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key, fallback string) time.Duration {
	raw := envOr(key, fallback)
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("invalid %s duration %s: %v", key, raw, err)
	}
	return value
}

func envInt(key, fallback string) int {
	raw := envOr(key, fallback)
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("invalid %s value %s: %v", key, raw, err)
	}
	return value
}

// IndexName returns the index every plugin writes to
func IndexName() string {
	return envOr("OPENSEARCH_INDEX", constants.DefaultIndex)
}

// StoreImpl injects the document store implementation
func StoreImpl(ctx context.Context) port.DocumentStore {

	var (
		store port.DocumentStore
		err   error
	)

	// Search source implementation configuration
	searchSource := envOr("SEARCH_SOURCE", "opensearch")
	opensearchURL := envOr("OPENSEARCH_URL", "http://localhost:9200")

	switch searchSource {
	case "mock":
		slog.InfoContext(ctx, "initializing mock document store")
		store = mock.NewMockDocumentStore()

	case "opensearch":
		slog.InfoContext(ctx, "initializing opensearch document store",
			"url", opensearchURL,
			"index", IndexName(),
		)
		store, err = opensearch.NewDocumentStore(ctx, opensearch.Config{
			URL:   opensearchURL,
			Index: IndexName(),
		})
		if err != nil {
			log.Fatalf("failed to initialize OpenSearch document store: %v", err)
		}

	default:
		log.Fatalf("unsupported search implementation: %s", searchSource)
	}

	return store
}

// Events bundles the event transport: the connection notifications are
// received on, when there is one, and the index change publisher.
type Events struct {
	Conn      *nats.Conn
	Config    natsinfra.Config
	Publisher port.ChangePublisher
}

// Close drains the connection.
func (e Events) Close() {
	if e.Conn == nil {
		return
	}
	if err := e.Conn.Drain(); err != nil {
		slog.Error("failed to drain NATS connection", "error", err)
	}
}

// EventsImpl injects the event transport implementation
func EventsImpl(ctx context.Context) Events {

	// Event source implementation configuration
	eventSource := envOr("EVENT_SOURCE", "nats")

	natsConfig := natsinfra.Config{
		URL:            envOr("NATS_URL", "nats://localhost:4222"),
		Timeout:        envDuration("NATS_TIMEOUT", "10s"),
		MaxReconnect:   envInt("NATS_MAX_RECONNECT", "3"),
		ReconnectWait:  envDuration("NATS_RECONNECT_WAIT", "2s"),
		Queue:          envOr("NATS_QUEUE", constants.DefaultNotificationQueue),
		Workers:        envInt("NOTIFICATION_WORKERS", "4"),
		ChangesSubject: envOr("INDEX_CHANGES_SUBJECT", constants.DefaultIndexChangesSubject),
	}

	switch eventSource {
	case "mock":
		slog.InfoContext(ctx, "initializing mock event transport")
		return Events{Config: natsConfig, Publisher: mock.NewMockChangePublisher()}

	case "nats":
		slog.InfoContext(ctx, "initializing NATS event transport",
			"queue", natsConfig.Queue,
			"workers", natsConfig.Workers,
		)
		conn, err := natsinfra.Connect(ctx, natsConfig)
		if err != nil {
			log.Fatalf("failed to initialize NATS connection: %v", err)
		}
		return Events{
			Conn:      conn,
			Config:    natsConfig,
			Publisher: natsinfra.NewChangePublisher(conn, natsConfig.ChangesSubject),
		}

	default:
		log.Fatalf("unsupported event implementation: %s", eventSource)
	}

	return Events{}
}

// Upstream groups the upstream services the plugins read from
type Upstream struct {
	Images  port.ImageSource
	Compute port.ComputeSource
	DNS     port.DNSSource
}

// UpstreamImpl injects the upstream service clients
func UpstreamImpl(ctx context.Context) Upstream {

	// Upstream source implementation configuration
	upstreamSource := envOr("UPSTREAM_SOURCE", "openstack")

	switch upstreamSource {
	case "mock":
		slog.InfoContext(ctx, "initializing mock upstream services")
		return Upstream{
			Images:  mock.NewMockImageSource(),
			Compute: mock.NewMockComputeSource(),
			DNS:     mock.NewMockDNSSource(),
		}

	case "openstack":
		config := openstack.DefaultConfig()
		config.AuthURL = os.Getenv("OS_AUTH_URL")
		config.Username = os.Getenv("OS_USERNAME")
		config.Password = os.Getenv("OS_PASSWORD")
		config.ProjectName = os.Getenv("OS_PROJECT_NAME")
		config.UserDomainName = envOr("OS_USER_DOMAIN_NAME", config.UserDomainName)
		config.ProjectDomainName = envOr("OS_PROJECT_DOMAIN_NAME", config.ProjectDomainName)
		config.GlanceURL = envOr("GLANCE_URL", "http://localhost:9292")
		config.NovaURL = envOr("NOVA_URL", "http://localhost:8774/v2.1")
		config.DesignateURL = envOr("DESIGNATE_URL", "http://localhost:9001")
		config.Timeout = envDuration("UPSTREAM_TIMEOUT", config.Timeout.String())
		config.MaxRetries = envInt("UPSTREAM_MAX_RETRIES", strconv.Itoa(config.MaxRetries))
		config.RetryDelay = envDuration("UPSTREAM_RETRY_DELAY", config.RetryDelay.String())
		if raw := os.Getenv("UPSTREAM_RATE_LIMIT"); raw != "" {
			rate, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				log.Fatalf("invalid UPSTREAM_RATE_LIMIT value %s: %v", raw, err)
			}
			config.RequestsPerSecond = rate
		}

		slog.InfoContext(ctx, "initializing OpenStack upstream clients",
			"auth_url", config.AuthURL,
			"glance_url", config.GlanceURL,
			"nova_url", config.NovaURL,
			"designate_url", config.DesignateURL,
			"max_retries", config.MaxRetries,
		)

		session, err := openstack.NewSession(config)
		if err != nil {
			log.Fatalf("failed to create OpenStack session: %v", err)
		}
		return Upstream{
			Images:  openstack.NewImageClient(session),
			Compute: openstack.NewComputeClient(session),
			DNS:     openstack.NewDNSClient(session),
		}

	default:
		log.Fatalf("unsupported upstream implementation: %s", upstreamSource)
	}

	return Upstream{}
}

// RegistryImpl registers every plugin against the given store and upstream services
func RegistryImpl(ctx context.Context, store port.DocumentStore, upstream Upstream, publisher port.ChangePublisher) *plugin.Registry {

	var rules *plugin.PropertyRules
	if path := os.Getenv("PROPERTY_PROTECTION_FILE"); path != "" {
		var err error
		rules, err = plugin.LoadPropertyRules(path)
		if err != nil {
			log.Fatalf("failed to load property protections from %s: %v", path, err)
		}
		slog.InfoContext(ctx, "loaded property protections",
			"path", path,
			"rules", rules.Len(),
		)
	}

	opts := []plugin.Option{plugin.WithIndex(IndexName())}
	if publisher != nil {
		opts = append(opts, plugin.WithPublisher(publisher))
	}

	recordSets := plugin.NewRecordSetPlugin(store, upstream.DNS, opts...)
	registry, err := plugin.NewRegistry(
		plugin.NewImagePlugin(store, upstream.Images, rules, opts...),
		plugin.NewServerPlugin(store, upstream.Compute, opts...),
		plugin.NewZonePlugin(store, upstream.DNS, recordSets, opts...),
		recordSets,
	)
	if err != nil {
		log.Fatalf("failed to register plugins: %v", err)
	}

	slog.InfoContext(ctx, "plugins registered", "types", registry.Types())
	return registry
}

// AuthServiceImpl injects the authentication service implementation
func AuthServiceImpl(ctx context.Context) port.Authenticator {

	if os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL") != "" {
		slog.WarnContext(ctx, "JWT validation is disabled, using the mock principal")
		return mock.NewMockAuthService()
	}

	authService, err := auth.NewJWTAuth(auth.JWTAuthConfig{
		JWKSURL:  os.Getenv("JWKS_URL"),
		Audience: os.Getenv("AUDIENCE"),
	})
	if err != nil {
		log.Fatalf("failed to initialize JWT authentication: %v", err)
	}
	return authService
}
