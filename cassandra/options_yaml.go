package cassandra

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// clientOptionsDocument is the configuration text form of ClientOptions.
// Pointers distinguish absent keys from zero values.
type clientOptionsDocument struct {
	Endpoints                     []string                   `yaml:"endpoints"`
	CompressionType               *CompressionType           `yaml:"compression_type"`
	MaxProtocolVersion            *ProtocolVersion           `yaml:"max_protocol_version"`
	Credentials                   *Credentials               `yaml:"credentials"`
	MetricOptions                 *metricOptionsDocument     `yaml:"metric_options"`
	Port                          *int                       `yaml:"port"`
	AddressTranslator             *AddressTranslatorSpec     `yaml:"address_translator"`
	ApplicationName               *string                    `yaml:"application_name"`
	ApplicationVersion            *string                    `yaml:"application_version"`
	ClusterID                     *uuid.UUID                 `yaml:"cluster_id"`
	ConnectionString              *string                    `yaml:"connection_string"`
	DefaultKeyspace               *string                    `yaml:"default_keyspace"`
	ExecutionProfiles             map[string]profileDocument `yaml:"execution_profiles"`
	GraphOptions                  *GraphOptions              `yaml:"graph_options"`
	EnableMonitorReporting        *bool                      `yaml:"enable_monitor_reporting"`
	EnableNoCompactMode           *bool                      `yaml:"enable_no_compact_mode"`
	PoolingOptions                *PoolingOptions            `yaml:"pooling_options"`
	QueryOptions                  *QueryOptions              `yaml:"query_options"`
	QueryTimeout                  *time.Duration             `yaml:"query_timeout"`
	ReconnectionPolicy            *ReconnectionSpec          `yaml:"reconnection_policy"`
	RetryPolicy                   *RetrySpec                 `yaml:"retry_policy"`
	SessionName                   *string                    `yaml:"session_name"`
	SocketOptions                 *SocketOptions             `yaml:"socket_options"`
	TimestampGenerator            *string                    `yaml:"timestamp_generator"`
	EnableBetaProtocolVersions    *bool                      `yaml:"enable_beta_protocol_versions"`
	LoadBalancingPolicy           *LoadBalancingSpec         `yaml:"load_balancing_policy"`
	MetadataSyncOptions           *MetadataSyncOptions       `yaml:"metadata_sync_options"`
	EnableRowSetBuffering         *bool                      `yaml:"enable_row_set_buffering"`
	SpeculativeExecutionPolicy    *SpeculativeSpec           `yaml:"speculative_execution_policy"`
	EnableTransportLayerSecurity  *bool                      `yaml:"enable_transport_layer_security"`
	EnableUnresolvedContactPoints *bool                      `yaml:"enable_unresolved_contact_points"`
	CloudSecureConnectionBundle   *string                    `yaml:"cloud_secure_connection_bundle"`
	MaxSchemaAgreementWait        *time.Duration             `yaml:"max_schema_agreement_wait"`
	HostFilter                    *string                    `yaml:"host_filter"`
}

type metricOptionsDocument struct {
	Provider string                `yaml:"provider"`
	Options  *DriverMetricsOptions `yaml:"options"`
}

type profileDocument struct {
	ExecutionProfile `yaml:",inline"`
	RetryPolicy      *RetrySpec       `yaml:"retry_policy"`
	Speculative      *SpeculativeSpec `yaml:"speculative_execution_policy"`
}

// UnmarshalYAML overlays the keys present in value onto o. Keys that are
// absent keep the values configured in code; policies, translators and host
// filters are built from their textual specs.
func (o *ClientOptions) UnmarshalYAML(value *yaml.Node) error {
	var doc clientOptionsDocument
	if err := value.Decode(&doc); err != nil {
		return err
	}
	return doc.apply(o)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (d *clientOptionsDocument) apply(o *ClientOptions) error {
	if d.Endpoints != nil {
		o.Endpoints = append([]string(nil), d.Endpoints...)
	}
	if d.CompressionType != nil {
		o.CompressionType = d.CompressionType
	}
	if d.MaxProtocolVersion != nil {
		o.MaxProtocolVersion = d.MaxProtocolVersion
	}
	if d.Credentials != nil {
		o.Credentials = d.Credentials
	}
	if d.MetricOptions != nil {
		metrics := &MetricOptions{Options: d.MetricOptions.Options}
		if d.MetricOptions.Provider != "" {
			provider, err := LookupMetricsProvider(d.MetricOptions.Provider)
			if err != nil {
				return err
			}
			metrics.Provider = provider
		}
		o.MetricOptions = metrics
	}
	if d.Port != nil {
		o.Port = d.Port
	}
	if d.AddressTranslator != nil {
		translator, err := d.AddressTranslator.Build()
		if err != nil {
			return err
		}
		o.AddressTranslator = translator
	}
	setString(&o.ApplicationName, d.ApplicationName)
	setString(&o.ApplicationVersion, d.ApplicationVersion)
	if d.ClusterID != nil {
		o.ClusterID = d.ClusterID
	}
	setString(&o.ConnectionString, d.ConnectionString)
	setString(&o.DefaultKeyspace, d.DefaultKeyspace)
	if d.ExecutionProfiles != nil {
		profiles, err := buildProfiles(d.ExecutionProfiles)
		if err != nil {
			return err
		}
		o.ExecutionProfiles = func(p *ExecutionProfiles) {
			for name, profile := range profiles {
				p.WithProfile(name, profile)
			}
		}
	}
	if d.GraphOptions != nil {
		o.GraphOptions = d.GraphOptions
	}
	if d.EnableMonitorReporting != nil {
		o.EnableMonitorReporting = d.EnableMonitorReporting
	}
	if d.EnableNoCompactMode != nil {
		o.EnableNoCompactMode = d.EnableNoCompactMode
	}
	if d.PoolingOptions != nil {
		o.PoolingOptions = d.PoolingOptions
	}
	if d.QueryOptions != nil {
		o.QueryOptions = d.QueryOptions
	}
	if d.QueryTimeout != nil {
		o.QueryTimeout = d.QueryTimeout
	}
	if d.ReconnectionPolicy != nil {
		policy, err := d.ReconnectionPolicy.Build()
		if err != nil {
			return err
		}
		o.ReconnectionPolicy = policy
	}
	if d.RetryPolicy != nil {
		policy, err := d.RetryPolicy.Build()
		if err != nil {
			return err
		}
		o.RetryPolicy = policy
	}
	setString(&o.SessionName, d.SessionName)
	if d.SocketOptions != nil {
		o.SocketOptions = d.SocketOptions
	}
	if d.TimestampGenerator != nil {
		switch strings.ToLower(*d.TimestampGenerator) {
		case "monotonic":
			o.TimestampGenerator = NewMonotonicTimestampGenerator()
		case "", "none":
			o.TimestampGenerator = nil
		default:
			return fmt.Errorf("unknown timestamp generator %q", *d.TimestampGenerator)
		}
	}
	if d.EnableBetaProtocolVersions != nil {
		o.EnableBetaProtocolVersions = d.EnableBetaProtocolVersions
	}
	if d.LoadBalancingPolicy != nil {
		policy, err := d.LoadBalancingPolicy.Build()
		if err != nil {
			return err
		}
		o.LoadBalancingPolicy = policy
	}
	if d.MetadataSyncOptions != nil {
		o.MetadataSyncOptions = d.MetadataSyncOptions
	}
	if d.EnableRowSetBuffering != nil {
		o.EnableRowSetBuffering = d.EnableRowSetBuffering
	}
	if d.SpeculativeExecutionPolicy != nil {
		policy, err := d.SpeculativeExecutionPolicy.Build()
		if err != nil {
			return err
		}
		o.SpeculativeExecutionPolicy = policy
	}
	if d.EnableTransportLayerSecurity != nil {
		o.EnableTransportLayerSecurity = d.EnableTransportLayerSecurity
	}
	if d.EnableUnresolvedContactPoints != nil {
		o.EnableUnresolvedContactPoints = d.EnableUnresolvedContactPoints
	}
	setString(&o.CloudSecureConnectionBundle, d.CloudSecureConnectionBundle)
	if d.MaxSchemaAgreementWait != nil {
		o.MaxSchemaAgreementWait = d.MaxSchemaAgreementWait
	}
	if d.HostFilter != nil {
		filter, err := NewHostFilter(*d.HostFilter)
		if err != nil {
			return err
		}
		o.HostFilter = filter
	}
	return nil
}

func buildProfiles(docs map[string]profileDocument) (map[string]ExecutionProfile, error) {
	profiles := make(map[string]ExecutionProfile, len(docs))
	for name, doc := range docs {
		profile := doc.ExecutionProfile
		if doc.RetryPolicy != nil {
			policy, err := doc.RetryPolicy.Build()
			if err != nil {
				return nil, fmt.Errorf("execution profile %s: %w", name, err)
			}
			profile.RetryPolicy = policy
		}
		if doc.Speculative != nil {
			policy, err := doc.Speculative.Build()
			if err != nil {
				return nil, fmt.Errorf("execution profile %s: %w", name, err)
			}
			profile.Speculative = policy
		}
		profiles[name] = profile
	}
	return profiles, nil
}
