package cassandra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func buildClient(t *testing.T, o ClientOptions) (*Client, error) {
	t.Helper()
	b := NewClusterBuilder(zerolog.Nop())
	b.lookupHost = func(context.Context, string) ([]string, error) {
		return nil, errors.New("no such host")
	}
	return Translate(o, b)
}

func TestClusterBuilderDefaults(t *testing.T) {
	client, err := buildClient(t, ClientOptions{})
	require.NoError(t, err)
	require.Empty(t, client.Endpoints())
	require.Equal(t, 9042, client.Port())
	require.False(t, client.RowSetBuffering())
	require.False(t, client.NoCompact())
	_, set := client.MonitorReporting()
	require.False(t, set)
}

func TestClusterBuilderAppliesFields(t *testing.T) {
	client, err := buildClient(t, ClientOptions{
		Endpoints:                    []string{"10.0.0.1", "10.0.0.2"},
		Port:                         Ptr(9142),
		DefaultKeyspace:              "orders",
		CompressionType:              Ptr(CompressionSnappy),
		Credentials:                  &Credentials{Username: "u", Password: "p"},
		QueryTimeout:                 Ptr(2 * time.Second),
		EnableRowSetBuffering:        Ptr(true),
		EnableNoCompactMode:          Ptr(true),
		ApplicationName:              "billing",
		SessionName:                  "billing-1",
		PoolingOptions:               &PoolingOptions{ConnectionsPerHost: Ptr(4)},
		QueryOptions:                 &QueryOptions{Consistency: Ptr(gocql.LocalQuorum), PageSize: Ptr(100)},
		SocketOptions:                &SocketOptions{ConnectTimeout: Ptr(3 * time.Second), KeepAlive: Ptr(time.Minute)},
		MetadataSyncOptions:          &MetadataSyncOptions{MetadataSyncEnabled: Ptr(false)},
		MaxSchemaAgreementWait:       Ptr(5 * time.Second),
		EnableTransportLayerSecurity: Ptr(true),
		ExecutionProfiles: func(p *ExecutionProfiles) {
			p.WithProfile("olap", ExecutionProfile{PageSize: Ptr(10)})
		},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, client.Endpoints())
	require.Equal(t, 9142, client.Port())
	require.Equal(t, "orders", client.Keyspace())
	require.Equal(t, 2*time.Second, client.QueryTimeout())
	require.True(t, client.RowSetBuffering())
	require.True(t, client.NoCompact())
	require.Equal(t, Identity{ApplicationName: "billing", SessionName: "billing-1"}, client.Identity())

	cluster := client.Cluster()
	require.Equal(t, gocql.SnappyCompressor{}, cluster.Compressor)
	require.Equal(t, gocql.PasswordAuthenticator{Username: "u", Password: "p"}, cluster.Authenticator)
	require.Equal(t, 4, cluster.NumConns)
	require.Equal(t, gocql.LocalQuorum, cluster.Consistency)
	require.Equal(t, 100, cluster.PageSize)
	require.Equal(t, 3*time.Second, cluster.ConnectTimeout)
	require.Equal(t, time.Minute, cluster.SocketKeepalive)
	require.Equal(t, 5*time.Second, cluster.MaxWaitSchemaAgreement)
	require.True(t, cluster.Events.DisableSchemaEvents)
	require.True(t, cluster.Events.DisableTopologyEvents)
	require.NotNil(t, cluster.SslOpts)

	profile, ok := client.Profile("olap")
	require.True(t, ok)
	require.Equal(t, 10, *profile.PageSize)
}

func TestClusterBuilderPrecedence(t *testing.T) {
	client, err := buildClient(t, ClientOptions{
		CompressionType:        Ptr(CompressionSnappy),
		Compressor:             stubCompressor{name: "custom"},
		Credentials:            &Credentials{Username: "u"},
		AuthenticationProvider: stubAuthenticator{},
	})
	require.NoError(t, err)
	cluster := client.Cluster()
	require.Equal(t, stubCompressor{name: "custom"}, cluster.Compressor)
	require.Equal(t, stubAuthenticator{}, cluster.Authenticator)
}

func TestClusterBuilderConnectionStringIsBaseLayer(t *testing.T) {
	client, err := buildClient(t, ClientOptions{
		ConnectionString: "Contact Points=c1,c2;Port=9000;Username=cs;Password=pw;Default Keyspace=base",
		DefaultKeyspace:  "explicit",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, client.Endpoints())
	require.Equal(t, 9000, client.Port())
	require.Equal(t, "explicit", client.Keyspace())
	require.Equal(t, gocql.PasswordAuthenticator{Username: "cs", Password: "pw"}, client.Cluster().Authenticator)

	client, err = buildClient(t, ClientOptions{
		Endpoints:        []string{"explicit"},
		Port:             Ptr(9500),
		ConnectionString: "Contact Points=c1;Port=9000",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"explicit"}, client.Endpoints())
	require.Equal(t, 9500, client.Port())
}

func TestClusterBuilderFailures(t *testing.T) {
	cases := []struct {
		name string
		opts ClientOptions
		want error
	}{
		{"bundle with endpoints", ClientOptions{Endpoints: []string{"a"}, CloudSecureConnectionBundle: "bundle.zip"}, ErrBundleWithContactPoints},
		{"beta protocol", ClientOptions{MaxProtocolVersion: Ptr(ProtocolV5)}, ErrBetaProtocolVersion},
		{"lz4", ClientOptions{CompressionType: Ptr(CompressionLZ4)}, ErrCompressionUnavailable},
		{"metrics without provider", ClientOptions{MetricOptions: &MetricOptions{}}, ErrMetricsProviderMissing},
		{"metrics with typed nil provider", ClientOptions{MetricOptions: &MetricOptions{Provider: (*stubMetricsProvider)(nil)}}, ErrMetricsProviderMissing},
		{"unresolvable host", ClientOptions{Endpoints: []string{"cassandra.invalid:9042"}, EnableUnresolvedContactPoints: Ptr(false)}, ErrUnresolvedContactPoint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildClient(t, tc.opts)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := buildClient(t, ClientOptions{ConnectionString: "Bogus=1"})
	require.Error(t, err)
}

func TestClusterBuilderProtocolVersions(t *testing.T) {
	client, err := buildClient(t, ClientOptions{
		MaxProtocolVersion:         Ptr(ProtocolV5),
		EnableBetaProtocolVersions: Ptr(true),
	})
	require.NoError(t, err)
	require.Equal(t, 5, client.Cluster().ProtoVersion)
	require.True(t, client.BetaProtocolVersions())

	client, err = buildClient(t, ClientOptions{MaxProtocolVersion: Ptr(ProtocolV3)})
	require.NoError(t, err)
	require.Equal(t, 3, client.Cluster().ProtoVersion)
}

func TestClusterBuilderUnresolvedContactPoints(t *testing.T) {
	client, err := buildClient(t, ClientOptions{
		Endpoints:                     []string{"10.0.0.1:9042", "cassandra.invalid"},
		EnableUnresolvedContactPoints: Ptr(true),
	})
	require.NoError(t, err)
	enabled, set := client.UnresolvedContactPoints()
	require.True(t, set)
	require.True(t, enabled)

	_, err = buildClient(t, ClientOptions{
		Endpoints:                     []string{"10.0.0.1"},
		EnableUnresolvedContactPoints: Ptr(false),
	})
	require.NoError(t, err)
}

func TestClusterBuilderMetrics(t *testing.T) {
	provider := &stubMetricsProvider{}
	tuning := &DriverMetricsOptions{Namespace: "svc"}
	_, err := buildClient(t, ClientOptions{
		SessionName:   "orders",
		MetricOptions: &MetricOptions{Provider: provider, Options: tuning},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"orders"}, provider.sessions)
	require.Same(t, tuning, provider.options[0])

	_, err = buildClient(t, ClientOptions{MetricOptions: &MetricOptions{Provider: provider}})
	require.NoError(t, err)
	require.Equal(t, "default", provider.sessions[1])
	require.Nil(t, provider.options[1])
}
