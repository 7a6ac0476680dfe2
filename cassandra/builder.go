package cassandra

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Builder assembles a Client. Translate calls one method per populated
// ClientOptions field and finishes with Build.
type Builder interface {
	AddContactPoints(endpoints ...string)
	WithCompression(compression CompressionType)
	WithMaxProtocolVersion(version ProtocolVersion)
	WithCredentials(username, password string)
	WithMetrics(provider DriverMetricsProvider)
	WithMetricsOptions(provider DriverMetricsProvider, options *DriverMetricsOptions)
	WithPort(port int)
	WithAddressTranslator(translator gocql.AddressTranslator)
	WithApplicationName(name string)
	WithApplicationVersion(version string)
	WithAuthProvider(auth gocql.Authenticator)
	WithClusterID(id uuid.UUID)
	WithConnectionString(connectionString string)
	WithCustomCompressor(compressor gocql.Compressor)
	WithDefaultKeyspace(keyspace string)
	WithExecutionProfiles(configure func(*ExecutionProfiles))
	WithGraphOptions(options *GraphOptions)
	WithMonitorReporting(enabled bool)
	WithNoCompact()
	WithPoolingOptions(options *PoolingOptions)
	WithQueryOptions(options *QueryOptions)
	WithQueryTimeout(timeout time.Duration)
	WithReconnectionPolicy(policy gocql.ReconnectionPolicy)
	WithRetryPolicy(policy gocql.RetryPolicy)
	WithSessionName(name string)
	WithSocketOptions(options *SocketOptions)
	WithTimestampGenerator(generator TimestampGenerator)
	WithTypeSerializers(definitions TypeSerializerDefinitions)
	WithBetaProtocolVersions()
	WithLoadBalancingPolicy(policy gocql.HostSelectionPolicy)
	WithMetadataSyncOptions(options *MetadataSyncOptions)
	WithoutRowSetBuffering()
	WithSpeculativeExecutionPolicy(policy gocql.SpeculativeExecutionPolicy)
	WithSSL()
	WithUnresolvedContactPoints(enabled bool)
	WithCloudSecureConnectionBundle(path string)
	WithMaxSchemaAgreementWait(wait time.Duration)
	WithHostFilter(filter gocql.HostFilter)
	Build() (*Client, error)
}

// BuilderFactory returns a fresh Builder for every client construction.
type BuilderFactory func() Builder
