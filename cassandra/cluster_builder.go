package cassandra

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/timzifer/cqlreg/internal/argument"
)

var (
	// ErrBundleWithContactPoints is returned when contact points and a cloud bundle are combined.
	ErrBundleWithContactPoints = errors.New("contact points cannot be combined with a cloud secure connection bundle")
	// ErrBetaProtocolVersion is returned for protocol versions above the stable one without beta enabled.
	ErrBetaProtocolVersion = errors.New("protocol version requires beta protocol versions")
	// ErrCompressionUnavailable is returned for compression types without a built-in codec.
	ErrCompressionUnavailable = errors.New("compression type requires a custom compressor")
	// ErrMetricsProviderMissing is returned when metrics are requested without a provider.
	ErrMetricsProviderMissing = errors.New("metrics provider must not be nil")
	// ErrUnresolvedContactPoint is returned when unresolved contact points are disallowed and a host does not resolve.
	ErrUnresolvedContactPoint = errors.New("contact point does not resolve")
)

// ClusterBuilder implements Builder over gocql.ClusterConfig.
type ClusterBuilder struct {
	cluster  *gocql.ClusterConfig
	settings clientSettings
	logger   zerolog.Logger

	portSet          bool
	connectionString string
	bundlePath       string
	credentials      *Credentials
	auth             gocql.Authenticator
	compression      *CompressionType
	compressor       gocql.Compressor
	protocol         *ProtocolVersion
	profiles         func(*ExecutionProfiles)
	metricsRequested bool
	metricsProvider  DriverMetricsProvider
	metricsOptions   *DriverMetricsOptions
	ssl              bool

	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// NewClusterBuilder returns a builder starting from the driver defaults.
func NewClusterBuilder(logger zerolog.Logger) *ClusterBuilder {
	cluster := gocql.NewCluster()
	cluster.Logger = driverLogger{logger: logger}
	return &ClusterBuilder{
		cluster:    cluster,
		settings:   clientSettings{rowSetBuffering: true},
		logger:     logger,
		lookupHost: net.DefaultResolver.LookupHost,
	}
}

func (b *ClusterBuilder) AddContactPoints(endpoints ...string) {
	b.cluster.Hosts = append(b.cluster.Hosts, endpoints...)
}

func (b *ClusterBuilder) WithCompression(compression CompressionType) {
	b.compression = &compression
}

// WithMaxProtocolVersion sets gocql's ProtoVersion, which pins the version
// instead of capping discovery.
func (b *ClusterBuilder) WithMaxProtocolVersion(version ProtocolVersion) {
	b.protocol = &version
}

func (b *ClusterBuilder) WithCredentials(username, password string) {
	b.credentials = &Credentials{Username: username, Password: password}
}

func (b *ClusterBuilder) WithMetrics(provider DriverMetricsProvider) {
	b.metricsRequested = true
	b.metricsProvider = provider
	b.metricsOptions = nil
}

func (b *ClusterBuilder) WithMetricsOptions(provider DriverMetricsProvider, options *DriverMetricsOptions) {
	b.metricsRequested = true
	b.metricsProvider = provider
	b.metricsOptions = options
}

func (b *ClusterBuilder) WithPort(port int) {
	b.cluster.Port = port
	b.portSet = true
}

func (b *ClusterBuilder) WithAddressTranslator(translator gocql.AddressTranslator) {
	b.cluster.AddressTranslator = translator
}

func (b *ClusterBuilder) WithApplicationName(name string) {
	b.settings.identity.ApplicationName = name
}

func (b *ClusterBuilder) WithApplicationVersion(version string) {
	b.settings.identity.ApplicationVersion = version
}

func (b *ClusterBuilder) WithAuthProvider(auth gocql.Authenticator) {
	b.auth = auth
}

func (b *ClusterBuilder) WithClusterID(id uuid.UUID) {
	b.settings.clusterID = &id
}

func (b *ClusterBuilder) WithConnectionString(connectionString string) {
	b.connectionString = connectionString
}

func (b *ClusterBuilder) WithCustomCompressor(compressor gocql.Compressor) {
	b.compressor = compressor
}

func (b *ClusterBuilder) WithDefaultKeyspace(keyspace string) {
	b.cluster.Keyspace = keyspace
}

func (b *ClusterBuilder) WithExecutionProfiles(configure func(*ExecutionProfiles)) {
	b.profiles = configure
}

func (b *ClusterBuilder) WithGraphOptions(options *GraphOptions) {
	b.settings.graph = options
}

func (b *ClusterBuilder) WithMonitorReporting(enabled bool) {
	b.settings.monitorReporting = &enabled
}

func (b *ClusterBuilder) WithNoCompact() {
	b.settings.noCompact = true
}

func (b *ClusterBuilder) WithPoolingOptions(options *PoolingOptions) {
	if options.ConnectionsPerHost != nil {
		b.cluster.NumConns = *options.ConnectionsPerHost
	}
	if options.MaxPreparedStmts != nil {
		b.cluster.MaxPreparedStmts = *options.MaxPreparedStmts
	}
	if options.MaxRoutingKeyInfo != nil {
		b.cluster.MaxRoutingKeyInfo = *options.MaxRoutingKeyInfo
	}
}

func (b *ClusterBuilder) WithQueryOptions(options *QueryOptions) {
	if options.Consistency != nil {
		b.cluster.Consistency = *options.Consistency
	}
	if options.SerialConsistency != nil {
		b.cluster.SerialConsistency = *options.SerialConsistency
	}
	if options.PageSize != nil {
		b.cluster.PageSize = *options.PageSize
	}
	if options.DefaultIdempotence != nil {
		b.cluster.DefaultIdempotence = *options.DefaultIdempotence
	}
	if options.DefaultTimestamp != nil {
		b.cluster.DefaultTimestamp = *options.DefaultTimestamp
	}
}

func (b *ClusterBuilder) WithQueryTimeout(timeout time.Duration) {
	b.settings.queryTimeout = timeout
}

func (b *ClusterBuilder) WithReconnectionPolicy(policy gocql.ReconnectionPolicy) {
	b.cluster.ReconnectionPolicy = policy
}

func (b *ClusterBuilder) WithRetryPolicy(policy gocql.RetryPolicy) {
	b.cluster.RetryPolicy = policy
}

func (b *ClusterBuilder) WithSessionName(name string) {
	b.settings.identity.SessionName = name
}

func (b *ClusterBuilder) WithSocketOptions(options *SocketOptions) {
	if options.ConnectTimeout != nil {
		b.cluster.ConnectTimeout = *options.ConnectTimeout
	}
	if options.ReadTimeout != nil {
		b.cluster.Timeout = *options.ReadTimeout
	}
	if options.WriteTimeout != nil {
		b.cluster.WriteTimeout = *options.WriteTimeout
	}
	if options.KeepAlive != nil {
		b.cluster.SocketKeepalive = *options.KeepAlive
	}
}

func (b *ClusterBuilder) WithTimestampGenerator(generator TimestampGenerator) {
	b.settings.timestamps = generator
}

func (b *ClusterBuilder) WithTypeSerializers(definitions TypeSerializerDefinitions) {
	b.settings.serializers = definitions
}

func (b *ClusterBuilder) WithBetaProtocolVersions() {
	b.settings.beta = true
}

func (b *ClusterBuilder) WithLoadBalancingPolicy(policy gocql.HostSelectionPolicy) {
	b.cluster.PoolConfig.HostSelectionPolicy = policy
}

func (b *ClusterBuilder) WithMetadataSyncOptions(options *MetadataSyncOptions) {
	disableAll := options.MetadataSyncEnabled != nil && !*options.MetadataSyncEnabled
	b.cluster.Events.DisableTopologyEvents = disableAll || options.DisableTopologyEvents
	b.cluster.Events.DisableNodeStatusEvents = disableAll || options.DisableNodeStatusEvents
	b.cluster.Events.DisableSchemaEvents = disableAll || options.DisableSchemaEvents
}

func (b *ClusterBuilder) WithoutRowSetBuffering() {
	b.settings.rowSetBuffering = false
}

func (b *ClusterBuilder) WithSpeculativeExecutionPolicy(policy gocql.SpeculativeExecutionPolicy) {
	b.settings.speculative = policy
}

func (b *ClusterBuilder) WithSSL() {
	b.ssl = true
}

func (b *ClusterBuilder) WithUnresolvedContactPoints(enabled bool) {
	b.settings.unresolved = &enabled
}

func (b *ClusterBuilder) WithCloudSecureConnectionBundle(path string) {
	b.bundlePath = path
}

func (b *ClusterBuilder) WithMaxSchemaAgreementWait(wait time.Duration) {
	b.cluster.MaxWaitSchemaAgreement = wait
}

func (b *ClusterBuilder) WithHostFilter(filter gocql.HostFilter) {
	b.cluster.HostFilter = filter
}

// Build validates the collected settings and returns the client. No
// connection is opened.
func (b *ClusterBuilder) Build() (*Client, error) {
	if err := b.applyConnectionString(); err != nil {
		return nil, err
	}
	if err := b.applyBundle(); err != nil {
		return nil, err
	}
	if b.protocol != nil {
		if *b.protocol > MaxStableProtocolVersion && !b.settings.beta {
			return nil, fmt.Errorf("%w: v%d", ErrBetaProtocolVersion, *b.protocol)
		}
		b.cluster.ProtoVersion = int(*b.protocol)
	}
	if err := b.applyCompression(); err != nil {
		return nil, err
	}
	switch {
	case b.auth != nil:
		b.cluster.Authenticator = b.auth
	case b.credentials != nil:
		b.cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: b.credentials.Username,
			Password: b.credentials.Password,
		}
	}
	if err := b.applyMetrics(); err != nil {
		return nil, err
	}
	if b.ssl && b.cluster.SslOpts == nil {
		b.cluster.SslOpts = &gocql.SslOptions{
			Config:                 &tls.Config{MinVersion: tls.VersionTLS12},
			EnableHostVerification: true,
		}
	}
	if err := b.checkContactPoints(); err != nil {
		return nil, err
	}
	if b.profiles != nil {
		b.settings.profiles = &ExecutionProfiles{}
		b.profiles(b.settings.profiles)
	}

	client := newClient(b.cluster, b.settings, b.logger)
	b.logger.Debug().
		Strs("hosts", b.cluster.Hosts).
		Int("port", b.cluster.Port).
		Str("keyspace", b.cluster.Keyspace).
		Msg("cassandra client built")
	return client, nil
}

// applyConnectionString fills slots that were not set explicitly.
func (b *ClusterBuilder) applyConnectionString() error {
	if b.connectionString == "" {
		return nil
	}
	cs, err := ParseConnectionString(b.connectionString)
	if err != nil {
		return err
	}
	if len(b.cluster.Hosts) == 0 {
		b.cluster.Hosts = cs.ContactPoints
	}
	if !b.portSet && cs.Port != 0 {
		b.cluster.Port = cs.Port
	}
	if b.credentials == nil && cs.Username != "" {
		b.credentials = &Credentials{Username: cs.Username, Password: cs.Password}
	}
	if b.cluster.Keyspace == "" {
		b.cluster.Keyspace = cs.DefaultKeyspace
	}
	return nil
}

func (b *ClusterBuilder) applyBundle() error {
	if b.bundlePath == "" {
		return nil
	}
	if len(b.cluster.Hosts) > 0 {
		return ErrBundleWithContactPoints
	}
	bundle, err := LoadSecureConnectBundle(b.bundlePath)
	if err != nil {
		return err
	}
	b.cluster.Hosts = []string{bundle.Host}
	if !b.portSet {
		b.cluster.Port = bundle.CQLPort
	}
	if b.cluster.Keyspace == "" {
		b.cluster.Keyspace = bundle.Keyspace
	}
	if b.credentials == nil && bundle.Username != "" {
		b.credentials = &Credentials{Username: bundle.Username, Password: bundle.Password}
	}
	if b.cluster.PoolConfig.HostSelectionPolicy == nil && bundle.LocalDC != "" {
		b.cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(bundle.LocalDC))
	}
	b.cluster.SslOpts = &gocql.SslOptions{Config: bundle.TLS, EnableHostVerification: true}
	return nil
}

func (b *ClusterBuilder) applyCompression() error {
	if b.compressor != nil {
		b.cluster.Compressor = b.compressor
		return nil
	}
	if b.compression == nil {
		return nil
	}
	switch *b.compression {
	case CompressionNone:
		b.cluster.Compressor = nil
	case CompressionSnappy:
		b.cluster.Compressor = gocql.SnappyCompressor{}
	default:
		return fmt.Errorf("%w: %s", ErrCompressionUnavailable, *b.compression)
	}
	return nil
}

func (b *ClusterBuilder) applyMetrics() error {
	if !b.metricsRequested {
		return nil
	}
	if argument.IsNil(b.metricsProvider) {
		return ErrMetricsProviderMissing
	}
	session := b.settings.identity.SessionName
	if session == "" {
		session = b.settings.identity.ApplicationName
	}
	if session == "" {
		session = "default"
	}
	observers, err := b.metricsProvider.Observers(session, b.metricsOptions)
	if err != nil {
		return fmt.Errorf("metrics provider: %w", err)
	}
	if observers.Query != nil {
		b.cluster.QueryObserver = observers.Query
	}
	if observers.Batch != nil {
		b.cluster.BatchObserver = observers.Batch
	}
	if observers.Connect != nil {
		b.cluster.ConnectObserver = observers.Connect
	}
	return nil
}

// checkContactPoints resolves host names when unresolved contact points were
// explicitly disallowed.
func (b *ClusterBuilder) checkContactPoints() error {
	if b.settings.unresolved == nil || *b.settings.unresolved {
		return nil
	}
	for _, endpoint := range b.cluster.Hosts {
		host := endpoint
		if h, _, err := net.SplitHostPort(endpoint); err == nil {
			host = h
		}
		if net.ParseIP(host) != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		addrs, err := b.lookupHost(ctx, host)
		cancel()
		if err != nil || len(addrs) == 0 {
			return fmt.Errorf("%w: %s", ErrUnresolvedContactPoint, endpoint)
		}
	}
	return nil
}
