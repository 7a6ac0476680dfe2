// Package cassandra registers named Cassandra clients. Each name maps a
// ClientOptions object onto driver builder calls and produces a lazily built,
// shared Client.
package cassandra

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// CompressionType selects a frame compression algorithm.
type CompressionType string

const (
	CompressionNone   CompressionType = "none"
	CompressionSnappy CompressionType = "snappy"
	CompressionLZ4    CompressionType = "lz4"
)

// UnmarshalText accepts the compression names case-insensitively.
func (c *CompressionType) UnmarshalText(text []byte) error {
	switch v := CompressionType(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case CompressionNone, CompressionSnappy, CompressionLZ4:
		*c = v
		return nil
	default:
		return fmt.Errorf("unknown compression type %q", string(text))
	}
}

// ProtocolVersion is a native protocol version number.
type ProtocolVersion int

const (
	ProtocolV3 ProtocolVersion = 3
	ProtocolV4 ProtocolVersion = 4
	ProtocolV5 ProtocolVersion = 5
)

// MaxStableProtocolVersion is the highest version usable without beta protocol versions.
const MaxStableProtocolVersion = ProtocolV4

// UnmarshalText accepts "4", "v4" and "V4".
func (v *ProtocolVersion) UnmarshalText(text []byte) error {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(string(text))), "v")
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 1 {
		return fmt.Errorf("invalid protocol version %q", string(text))
	}
	*v = ProtocolVersion(n)
	return nil
}

// Credentials hold plain-text authentication.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MetricOptions enables driver metrics. Provider is required once the object is set.
type MetricOptions struct {
	Provider DriverMetricsProvider `yaml:"-"`
	Options  *DriverMetricsOptions `yaml:"options,omitempty"`
}

// DriverMetricsOptions tunes the metrics a provider exports.
type DriverMetricsOptions struct {
	Namespace       string            `yaml:"namespace,omitempty"`
	ConstLabels     map[string]string `yaml:"const_labels,omitempty"`
	LatencyBuckets  []float64         `yaml:"latency_buckets,omitempty"`
	DisabledMetrics []string          `yaml:"disabled_metrics,omitempty"`
}

// Enabled reports whether the metric with the given name should be exported.
func (o *DriverMetricsOptions) Enabled(metric string) bool {
	if o == nil {
		return true
	}
	for _, disabled := range o.DisabledMetrics {
		if strings.EqualFold(disabled, metric) {
			return false
		}
	}
	return true
}

// ExecutionProfile groups per-query settings selectable by name.
type ExecutionProfile struct {
	Consistency       *gocql.Consistency               `yaml:"consistency,omitempty"`
	SerialConsistency *gocql.SerialConsistency         `yaml:"serial_consistency,omitempty"`
	PageSize          *int                             `yaml:"page_size,omitempty"`
	Timeout           *time.Duration                   `yaml:"timeout,omitempty"`
	Idempotent        *bool                            `yaml:"idempotent,omitempty"`
	RetryPolicy       gocql.RetryPolicy                `yaml:"-"`
	Speculative       gocql.SpeculativeExecutionPolicy `yaml:"-"`
}

// ExecutionProfiles collects named execution profiles.
type ExecutionProfiles struct {
	profiles map[string]ExecutionProfile
}

// WithProfile adds or replaces the profile stored under name.
func (p *ExecutionProfiles) WithProfile(name string, profile ExecutionProfile) *ExecutionProfiles {
	if p.profiles == nil {
		p.profiles = make(map[string]ExecutionProfile)
	}
	p.profiles[name] = profile
	return p
}

// Profile returns the profile stored under name.
func (p *ExecutionProfiles) Profile(name string) (ExecutionProfile, bool) {
	profile, ok := p.profiles[name]
	return profile, ok
}

// Len returns the number of profiles.
func (p *ExecutionProfiles) Len() int { return len(p.profiles) }

// GraphOptions configure graph queries issued through the client.
type GraphOptions struct {
	Name             string         `yaml:"name,omitempty"`
	Source           string         `yaml:"source,omitempty"`
	Language         string         `yaml:"language,omitempty"`
	ReadConsistency  string         `yaml:"read_consistency,omitempty"`
	WriteConsistency string         `yaml:"write_consistency,omitempty"`
	ReadTimeout      *time.Duration `yaml:"read_timeout,omitempty"`
}

// PoolingOptions configure connections per host.
type PoolingOptions struct {
	ConnectionsPerHost *int `yaml:"connections_per_host,omitempty"`
	MaxPreparedStmts   *int `yaml:"max_prepared_statements,omitempty"`
	MaxRoutingKeyInfo  *int `yaml:"max_routing_key_info,omitempty"`
}

// QueryOptions hold cluster wide query defaults.
type QueryOptions struct {
	Consistency        *gocql.Consistency       `yaml:"consistency,omitempty"`
	SerialConsistency  *gocql.SerialConsistency `yaml:"serial_consistency,omitempty"`
	PageSize           *int                     `yaml:"page_size,omitempty"`
	DefaultIdempotence *bool                    `yaml:"default_idempotence,omitempty"`
	DefaultTimestamp   *bool                    `yaml:"default_timestamp,omitempty"`
}

// SocketOptions configure the transport.
type SocketOptions struct {
	ConnectTimeout *time.Duration `yaml:"connect_timeout,omitempty"`
	ReadTimeout    *time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout   *time.Duration `yaml:"write_timeout,omitempty"`
	KeepAlive      *time.Duration `yaml:"keep_alive,omitempty"`
}

// MetadataSyncOptions control which server events refresh client metadata.
type MetadataSyncOptions struct {
	MetadataSyncEnabled     *bool `yaml:"metadata_sync_enabled,omitempty"`
	DisableTopologyEvents   bool  `yaml:"disable_topology_events,omitempty"`
	DisableNodeStatusEvents bool  `yaml:"disable_node_status_events,omitempty"`
	DisableSchemaEvents     bool  `yaml:"disable_schema_events,omitempty"`
}

// TimestampGenerator produces client-side write timestamps in microseconds.
type TimestampGenerator interface {
	Next() int64
}

// TypeSerializer converts a custom CQL type between its Go and wire forms.
type TypeSerializer interface {
	CQLType() string
	gocql.Marshaler
	gocql.Unmarshaler
}

// TypeSerializerDefinitions is the serializer table keyed by CQL type name.
type TypeSerializerDefinitions map[string]TypeSerializer

// Define adds the serializer under its CQL type name.
func (d TypeSerializerDefinitions) Define(s TypeSerializer) TypeSerializerDefinitions {
	d[s.CQLType()] = s
	return d
}

// ClientOptions is the configuration of one named client. Every field is
// optional; nil, empty and unset values leave the driver defaults in place.
// MaxProtocolVersion pins the protocol version, since gocql cannot negotiate
// below a ceiling.
type ClientOptions struct {
	Endpoints                     []string
	CompressionType               *CompressionType
	MaxProtocolVersion            *ProtocolVersion
	Credentials                   *Credentials
	MetricOptions                 *MetricOptions
	Port                          *int
	AddressTranslator             gocql.AddressTranslator
	ApplicationName               string
	ApplicationVersion            string
	AuthenticationProvider        gocql.Authenticator
	ClusterID                     *uuid.UUID
	ConnectionString              string
	Compressor                    gocql.Compressor
	DefaultKeyspace               string
	ExecutionProfiles             func(*ExecutionProfiles)
	GraphOptions                  *GraphOptions
	EnableMonitorReporting        *bool
	EnableNoCompactMode           *bool
	PoolingOptions                *PoolingOptions
	QueryOptions                  *QueryOptions
	QueryTimeout                  *time.Duration
	ReconnectionPolicy            gocql.ReconnectionPolicy
	RetryPolicy                   gocql.RetryPolicy
	SessionName                   string
	SocketOptions                 *SocketOptions
	TimestampGenerator            TimestampGenerator
	TypeSerializerDefinitions     TypeSerializerDefinitions
	EnableBetaProtocolVersions    *bool
	LoadBalancingPolicy           gocql.HostSelectionPolicy
	MetadataSyncOptions           *MetadataSyncOptions
	EnableRowSetBuffering         *bool
	SpeculativeExecutionPolicy    gocql.SpeculativeExecutionPolicy
	EnableTransportLayerSecurity  *bool
	EnableUnresolvedContactPoints *bool
	CloudSecureConnectionBundle   string
	MaxSchemaAgreementWait        *time.Duration
	HostFilter                    gocql.HostFilter
}

// AddEndpoints appends contact points.
func (o *ClientOptions) AddEndpoints(endpoints ...string) *ClientOptions {
	o.Endpoints = append(o.Endpoints, endpoints...)
	return o
}

// snapshot copies the options so construction never observes later mutation
// of the registered object.
func (o ClientOptions) snapshot() ClientOptions {
	o.Endpoints = append([]string(nil), o.Endpoints...)
	return o
}

// Ptr returns a pointer to v. It is a convenience for populating optional fields.
func Ptr[T any](v T) *T {
	return &v
}
