package cassandra

import (
	"net"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type call struct {
	name string
	args []interface{}
}

// recordingBuilder captures every builder call with its arguments.
type recordingBuilder struct {
	calls    []call
	hosts    []string
	buildErr error
}

func (r *recordingBuilder) record(name string, args ...interface{}) {
	r.calls = append(r.calls, call{name: name, args: args})
}

func (r *recordingBuilder) names() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.name)
	}
	return out
}

func (r *recordingBuilder) find(name string) (call, bool) {
	for _, c := range r.calls {
		if c.name == name {
			return c, true
		}
	}
	return call{}, false
}

func (r *recordingBuilder) AddContactPoints(endpoints ...string) {
	r.hosts = append(r.hosts, endpoints...)
	r.record("AddContactPoints", append([]string(nil), endpoints...))
}
func (r *recordingBuilder) WithCompression(c CompressionType) { r.record("WithCompression", c) }
func (r *recordingBuilder) WithMaxProtocolVersion(v ProtocolVersion) {
	r.record("WithMaxProtocolVersion", v)
}
func (r *recordingBuilder) WithCredentials(u, p string) { r.record("WithCredentials", u, p) }
func (r *recordingBuilder) WithMetrics(p DriverMetricsProvider) {
	r.record("WithMetrics", p)
}
func (r *recordingBuilder) WithMetricsOptions(p DriverMetricsProvider, o *DriverMetricsOptions) {
	r.record("WithMetricsOptions", p, o)
}
func (r *recordingBuilder) WithPort(port int) { r.record("WithPort", port) }
func (r *recordingBuilder) WithAddressTranslator(t gocql.AddressTranslator) {
	r.record("WithAddressTranslator", t)
}
func (r *recordingBuilder) WithApplicationName(n string)    { r.record("WithApplicationName", n) }
func (r *recordingBuilder) WithApplicationVersion(v string) { r.record("WithApplicationVersion", v) }
func (r *recordingBuilder) WithAuthProvider(a gocql.Authenticator) {
	r.record("WithAuthProvider", a)
}
func (r *recordingBuilder) WithClusterID(id uuid.UUID)    { r.record("WithClusterID", id) }
func (r *recordingBuilder) WithConnectionString(s string) { r.record("WithConnectionString", s) }
func (r *recordingBuilder) WithCustomCompressor(c gocql.Compressor) {
	r.record("WithCustomCompressor", c)
}
func (r *recordingBuilder) WithDefaultKeyspace(k string) { r.record("WithDefaultKeyspace", k) }
func (r *recordingBuilder) WithExecutionProfiles(f func(*ExecutionProfiles)) {
	r.record("WithExecutionProfiles", f)
}
func (r *recordingBuilder) WithGraphOptions(o *GraphOptions) { r.record("WithGraphOptions", o) }
func (r *recordingBuilder) WithMonitorReporting(b bool)      { r.record("WithMonitorReporting", b) }
func (r *recordingBuilder) WithNoCompact()                   { r.record("WithNoCompact") }
func (r *recordingBuilder) WithPoolingOptions(o *PoolingOptions) {
	r.record("WithPoolingOptions", o)
}
func (r *recordingBuilder) WithQueryOptions(o *QueryOptions) { r.record("WithQueryOptions", o) }
func (r *recordingBuilder) WithQueryTimeout(d time.Duration) { r.record("WithQueryTimeout", d) }
func (r *recordingBuilder) WithReconnectionPolicy(p gocql.ReconnectionPolicy) {
	r.record("WithReconnectionPolicy", p)
}
func (r *recordingBuilder) WithRetryPolicy(p gocql.RetryPolicy) { r.record("WithRetryPolicy", p) }
func (r *recordingBuilder) WithSessionName(n string)            { r.record("WithSessionName", n) }
func (r *recordingBuilder) WithSocketOptions(o *SocketOptions)  { r.record("WithSocketOptions", o) }
func (r *recordingBuilder) WithTimestampGenerator(g TimestampGenerator) {
	r.record("WithTimestampGenerator", g)
}
func (r *recordingBuilder) WithTypeSerializers(d TypeSerializerDefinitions) {
	r.record("WithTypeSerializers", d)
}
func (r *recordingBuilder) WithBetaProtocolVersions() { r.record("WithBetaProtocolVersions") }
func (r *recordingBuilder) WithLoadBalancingPolicy(p gocql.HostSelectionPolicy) {
	r.record("WithLoadBalancingPolicy", p)
}
func (r *recordingBuilder) WithMetadataSyncOptions(o *MetadataSyncOptions) {
	r.record("WithMetadataSyncOptions", o)
}
func (r *recordingBuilder) WithoutRowSetBuffering() { r.record("WithoutRowSetBuffering") }
func (r *recordingBuilder) WithSpeculativeExecutionPolicy(p gocql.SpeculativeExecutionPolicy) {
	r.record("WithSpeculativeExecutionPolicy", p)
}
func (r *recordingBuilder) WithSSL() { r.record("WithSSL") }
func (r *recordingBuilder) WithUnresolvedContactPoints(b bool) {
	r.record("WithUnresolvedContactPoints", b)
}
func (r *recordingBuilder) WithCloudSecureConnectionBundle(p string) {
	r.record("WithCloudSecureConnectionBundle", p)
}
func (r *recordingBuilder) WithMaxSchemaAgreementWait(d time.Duration) {
	r.record("WithMaxSchemaAgreementWait", d)
}
func (r *recordingBuilder) WithHostFilter(f gocql.HostFilter) { r.record("WithHostFilter", f) }

func (r *recordingBuilder) Build() (*Client, error) {
	r.record("Build")
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	return newClient(gocql.NewCluster(r.hosts...), clientSettings{}, zerolog.Nop()), nil
}

type stubMetricsProvider struct {
	sessions []string
	options  []*DriverMetricsOptions
}

func (s *stubMetricsProvider) Observers(session string, options *DriverMetricsOptions) (DriverObservers, error) {
	s.sessions = append(s.sessions, session)
	s.options = append(s.options, options)
	return DriverObservers{}, nil
}

type stubCompressor struct{ name string }

func (s stubCompressor) Name() string                       { return s.name }
func (s stubCompressor) Encode(data []byte) ([]byte, error) { return data, nil }
func (s stubCompressor) Decode(data []byte) ([]byte, error) { return data, nil }

type stubTranslator struct{}

func (*stubTranslator) Translate(addr net.IP, port int) (net.IP, int) { return addr, port }

type stubAuthenticator struct{}

func (stubAuthenticator) Challenge([]byte) ([]byte, gocql.Authenticator, error) { return nil, nil, nil }
func (stubAuthenticator) Success([]byte) error                                  { return nil }
