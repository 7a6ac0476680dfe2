package cassandra

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/timzifer/cqlreg/internal/argument"
)

// rule applies one ClientOptions field when its predicate holds.
type rule struct {
	field   string
	applies func(o *ClientOptions) bool
	apply   func(o *ClientOptions, b Builder)
}

func isSet[T any](v *T) bool    { return v != nil }
func isTrue(v *bool) bool       { return v != nil && *v }
func nonEmpty(s string) bool    { return s != "" }
func notNil(v interface{}) bool { return !argument.IsNil(v) }

// rules is the translation table. Contact points come first; every other entry
// touches its own builder slot.
var rules = []rule{
	{"Endpoints",
		func(o *ClientOptions) bool { return len(o.Endpoints) > 0 },
		func(o *ClientOptions, b Builder) { b.AddContactPoints(o.Endpoints...) }},
	{"CompressionType",
		func(o *ClientOptions) bool { return isSet(o.CompressionType) },
		func(o *ClientOptions, b Builder) { b.WithCompression(*o.CompressionType) }},
	{"MaxProtocolVersion",
		func(o *ClientOptions) bool { return isSet(o.MaxProtocolVersion) },
		func(o *ClientOptions, b Builder) { b.WithMaxProtocolVersion(*o.MaxProtocolVersion) }},
	{"Credentials",
		func(o *ClientOptions) bool { return o.Credentials != nil },
		func(o *ClientOptions, b Builder) { b.WithCredentials(o.Credentials.Username, o.Credentials.Password) }},
	{"MetricOptions",
		func(o *ClientOptions) bool { return o.MetricOptions != nil },
		func(o *ClientOptions, b Builder) {
			if o.MetricOptions.Options == nil {
				b.WithMetrics(o.MetricOptions.Provider)
				return
			}
			b.WithMetricsOptions(o.MetricOptions.Provider, o.MetricOptions.Options)
		}},
	{"Port",
		func(o *ClientOptions) bool { return isSet(o.Port) },
		func(o *ClientOptions, b Builder) { b.WithPort(*o.Port) }},
	{"AddressTranslator",
		func(o *ClientOptions) bool { return notNil(o.AddressTranslator) },
		func(o *ClientOptions, b Builder) { b.WithAddressTranslator(o.AddressTranslator) }},
	{"ApplicationName",
		func(o *ClientOptions) bool { return nonEmpty(o.ApplicationName) },
		func(o *ClientOptions, b Builder) { b.WithApplicationName(o.ApplicationName) }},
	{"ApplicationVersion",
		func(o *ClientOptions) bool { return nonEmpty(o.ApplicationVersion) },
		func(o *ClientOptions, b Builder) { b.WithApplicationVersion(o.ApplicationVersion) }},
	{"AuthenticationProvider",
		func(o *ClientOptions) bool { return notNil(o.AuthenticationProvider) },
		func(o *ClientOptions, b Builder) { b.WithAuthProvider(o.AuthenticationProvider) }},
	{"ClusterID",
		func(o *ClientOptions) bool { return isSet(o.ClusterID) },
		func(o *ClientOptions, b Builder) { b.WithClusterID(*o.ClusterID) }},
	{"ConnectionString",
		func(o *ClientOptions) bool { return nonEmpty(o.ConnectionString) },
		func(o *ClientOptions, b Builder) { b.WithConnectionString(o.ConnectionString) }},
	{"Compressor",
		func(o *ClientOptions) bool { return notNil(o.Compressor) },
		func(o *ClientOptions, b Builder) { b.WithCustomCompressor(o.Compressor) }},
	{"DefaultKeyspace",
		func(o *ClientOptions) bool { return nonEmpty(o.DefaultKeyspace) },
		func(o *ClientOptions, b Builder) { b.WithDefaultKeyspace(o.DefaultKeyspace) }},
	{"ExecutionProfiles",
		func(o *ClientOptions) bool { return o.ExecutionProfiles != nil },
		func(o *ClientOptions, b Builder) { b.WithExecutionProfiles(o.ExecutionProfiles) }},
	{"GraphOptions",
		func(o *ClientOptions) bool { return o.GraphOptions != nil },
		func(o *ClientOptions, b Builder) { b.WithGraphOptions(o.GraphOptions) }},
	{"EnableMonitorReporting",
		func(o *ClientOptions) bool { return isSet(o.EnableMonitorReporting) },
		func(o *ClientOptions, b Builder) { b.WithMonitorReporting(*o.EnableMonitorReporting) }},
	{"EnableNoCompactMode",
		func(o *ClientOptions) bool { return isTrue(o.EnableNoCompactMode) },
		func(o *ClientOptions, b Builder) { b.WithNoCompact() }},
	{"PoolingOptions",
		func(o *ClientOptions) bool { return o.PoolingOptions != nil },
		func(o *ClientOptions, b Builder) { b.WithPoolingOptions(o.PoolingOptions) }},
	{"QueryOptions",
		func(o *ClientOptions) bool { return o.QueryOptions != nil },
		func(o *ClientOptions, b Builder) { b.WithQueryOptions(o.QueryOptions) }},
	{"QueryTimeout",
		func(o *ClientOptions) bool { return isSet(o.QueryTimeout) },
		func(o *ClientOptions, b Builder) { b.WithQueryTimeout(*o.QueryTimeout) }},
	{"ReconnectionPolicy",
		func(o *ClientOptions) bool { return notNil(o.ReconnectionPolicy) },
		func(o *ClientOptions, b Builder) { b.WithReconnectionPolicy(o.ReconnectionPolicy) }},
	{"RetryPolicy",
		func(o *ClientOptions) bool { return notNil(o.RetryPolicy) },
		func(o *ClientOptions, b Builder) { b.WithRetryPolicy(o.RetryPolicy) }},
	{"SessionName",
		func(o *ClientOptions) bool { return nonEmpty(o.SessionName) },
		func(o *ClientOptions, b Builder) { b.WithSessionName(o.SessionName) }},
	{"SocketOptions",
		func(o *ClientOptions) bool { return o.SocketOptions != nil },
		func(o *ClientOptions, b Builder) { b.WithSocketOptions(o.SocketOptions) }},
	{"TimestampGenerator",
		func(o *ClientOptions) bool { return notNil(o.TimestampGenerator) },
		func(o *ClientOptions, b Builder) { b.WithTimestampGenerator(o.TimestampGenerator) }},
	{"TypeSerializerDefinitions",
		func(o *ClientOptions) bool { return o.TypeSerializerDefinitions != nil },
		func(o *ClientOptions, b Builder) { b.WithTypeSerializers(o.TypeSerializerDefinitions) }},
	{"EnableBetaProtocolVersions",
		func(o *ClientOptions) bool { return isTrue(o.EnableBetaProtocolVersions) },
		func(o *ClientOptions, b Builder) { b.WithBetaProtocolVersions() }},
	{"LoadBalancingPolicy",
		func(o *ClientOptions) bool { return notNil(o.LoadBalancingPolicy) },
		func(o *ClientOptions, b Builder) { b.WithLoadBalancingPolicy(o.LoadBalancingPolicy) }},
	{"MetadataSyncOptions",
		func(o *ClientOptions) bool { return o.MetadataSyncOptions != nil },
		func(o *ClientOptions, b Builder) { b.WithMetadataSyncOptions(o.MetadataSyncOptions) }},
	// Buffering is disabled unless the flag is explicitly true.
	{"EnableRowSetBuffering",
		func(o *ClientOptions) bool { return !isTrue(o.EnableRowSetBuffering) },
		func(o *ClientOptions, b Builder) { b.WithoutRowSetBuffering() }},
	{"SpeculativeExecutionPolicy",
		func(o *ClientOptions) bool { return notNil(o.SpeculativeExecutionPolicy) },
		func(o *ClientOptions, b Builder) { b.WithSpeculativeExecutionPolicy(o.SpeculativeExecutionPolicy) }},
	{"EnableTransportLayerSecurity",
		func(o *ClientOptions) bool { return isTrue(o.EnableTransportLayerSecurity) },
		func(o *ClientOptions, b Builder) { b.WithSSL() }},
	{"EnableUnresolvedContactPoints",
		func(o *ClientOptions) bool { return isSet(o.EnableUnresolvedContactPoints) },
		func(o *ClientOptions, b Builder) { b.WithUnresolvedContactPoints(*o.EnableUnresolvedContactPoints) }},
	{"CloudSecureConnectionBundle",
		func(o *ClientOptions) bool { return nonEmpty(o.CloudSecureConnectionBundle) },
		func(o *ClientOptions, b Builder) { b.WithCloudSecureConnectionBundle(o.CloudSecureConnectionBundle) }},
	{"MaxSchemaAgreementWait",
		func(o *ClientOptions) bool { return isSet(o.MaxSchemaAgreementWait) },
		func(o *ClientOptions, b Builder) { b.WithMaxSchemaAgreementWait(*o.MaxSchemaAgreementWait) }},
	{"HostFilter",
		func(o *ClientOptions) bool { return notNil(o.HostFilter) },
		func(o *ClientOptions, b Builder) { b.WithHostFilter(o.HostFilter) }},
}

// Translate applies every populated field of o to b and builds the client.
// Errors from Build are returned unchanged.
func Translate(o ClientOptions, b Builder) (*Client, error) {
	for _, r := range rules {
		if r.applies(&o) {
			r.apply(&o, b)
		}
	}
	return b.Build()
}

// Plan lists the builder calls Translate would make for o, in order.
func Plan(o ClientOptions) []string {
	rec := &planRecorder{}
	_, _ = Translate(o, rec)
	return rec.calls
}

type planRecorder struct {
	calls []string
}

func (p *planRecorder) call(name string) { p.calls = append(p.calls, name) }

func (p *planRecorder) AddContactPoints(...string)             { p.call("AddContactPoints") }
func (p *planRecorder) WithCompression(CompressionType)        { p.call("WithCompression") }
func (p *planRecorder) WithMaxProtocolVersion(ProtocolVersion) { p.call("WithMaxProtocolVersion") }
func (p *planRecorder) WithCredentials(string, string)         { p.call("WithCredentials") }
func (p *planRecorder) WithMetrics(DriverMetricsProvider)      { p.call("WithMetrics") }
func (p *planRecorder) WithPort(int)                           { p.call("WithPort") }
func (p *planRecorder) WithAddressTranslator(gocql.AddressTranslator) {
	p.call("WithAddressTranslator")
}
func (p *planRecorder) WithApplicationName(string)            { p.call("WithApplicationName") }
func (p *planRecorder) WithApplicationVersion(string)         { p.call("WithApplicationVersion") }
func (p *planRecorder) WithAuthProvider(gocql.Authenticator)  { p.call("WithAuthProvider") }
func (p *planRecorder) WithClusterID(uuid.UUID)               { p.call("WithClusterID") }
func (p *planRecorder) WithConnectionString(string)           { p.call("WithConnectionString") }
func (p *planRecorder) WithCustomCompressor(gocql.Compressor) { p.call("WithCustomCompressor") }
func (p *planRecorder) WithDefaultKeyspace(string)            { p.call("WithDefaultKeyspace") }
func (p *planRecorder) WithExecutionProfiles(func(*ExecutionProfiles)) {
	p.call("WithExecutionProfiles")
}
func (p *planRecorder) WithGraphOptions(*GraphOptions)     { p.call("WithGraphOptions") }
func (p *planRecorder) WithMonitorReporting(bool)          { p.call("WithMonitorReporting") }
func (p *planRecorder) WithNoCompact()                     { p.call("WithNoCompact") }
func (p *planRecorder) WithPoolingOptions(*PoolingOptions) { p.call("WithPoolingOptions") }
func (p *planRecorder) WithQueryOptions(*QueryOptions)     { p.call("WithQueryOptions") }
func (p *planRecorder) WithQueryTimeout(time.Duration)     { p.call("WithQueryTimeout") }
func (p *planRecorder) WithReconnectionPolicy(gocql.ReconnectionPolicy) {
	p.call("WithReconnectionPolicy")
}
func (p *planRecorder) WithRetryPolicy(gocql.RetryPolicy)             { p.call("WithRetryPolicy") }
func (p *planRecorder) WithSessionName(string)                        { p.call("WithSessionName") }
func (p *planRecorder) WithSocketOptions(*SocketOptions)              { p.call("WithSocketOptions") }
func (p *planRecorder) WithTimestampGenerator(TimestampGenerator)     { p.call("WithTimestampGenerator") }
func (p *planRecorder) WithTypeSerializers(TypeSerializerDefinitions) { p.call("WithTypeSerializers") }
func (p *planRecorder) WithBetaProtocolVersions()                     { p.call("WithBetaProtocolVersions") }
func (p *planRecorder) WithLoadBalancingPolicy(gocql.HostSelectionPolicy) {
	p.call("WithLoadBalancingPolicy")
}
func (p *planRecorder) WithMetadataSyncOptions(*MetadataSyncOptions) {
	p.call("WithMetadataSyncOptions")
}
func (p *planRecorder) WithoutRowSetBuffering() { p.call("WithoutRowSetBuffering") }
func (p *planRecorder) WithSpeculativeExecutionPolicy(gocql.SpeculativeExecutionPolicy) {
	p.call("WithSpeculativeExecutionPolicy")
}
func (p *planRecorder) WithSSL()                         { p.call("WithSSL") }
func (p *planRecorder) WithUnresolvedContactPoints(bool) { p.call("WithUnresolvedContactPoints") }
func (p *planRecorder) WithCloudSecureConnectionBundle(string) {
	p.call("WithCloudSecureConnectionBundle")
}
func (p *planRecorder) WithMaxSchemaAgreementWait(time.Duration) {
	p.call("WithMaxSchemaAgreementWait")
}
func (p *planRecorder) WithHostFilter(gocql.HostFilter) { p.call("WithHostFilter") }
func (p *planRecorder) WithMetricsOptions(DriverMetricsProvider, *DriverMetricsOptions) {
	p.call("WithMetricsOptions")
}
func (p *planRecorder) Build() (*Client, error) { return nil, nil }
