package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("cassandra client closed")
	// ErrUnknownProfile is returned for execution profiles that were never defined.
	ErrUnknownProfile = errors.New("unknown execution profile")
)

// Identity names the application and session a client reports.
type Identity struct {
	ApplicationName    string
	ApplicationVersion string
	SessionName        string
}

// clientSettings carries what the driver has no cluster-level slot for.
type clientSettings struct {
	identity         Identity
	clusterID        *uuid.UUID
	profiles         *ExecutionProfiles
	graph            *GraphOptions
	serializers      TypeSerializerDefinitions
	timestamps       TimestampGenerator
	speculative      gocql.SpeculativeExecutionPolicy
	queryTimeout     time.Duration
	rowSetBuffering  bool
	noCompact        bool
	beta             bool
	monitorReporting *bool
	unresolved       *bool
}

// Client is a configured, lazily connected Cassandra client. It is safe for
// concurrent use.
type Client struct {
	cluster  gocql.ClusterConfig
	settings clientSettings
	logger   zerolog.Logger

	createSession func(*gocql.ClusterConfig) (*gocql.Session, error)

	mu      sync.Mutex
	session *gocql.Session
	closed  bool
}

func newClient(cluster *gocql.ClusterConfig, settings clientSettings, logger zerolog.Logger) *Client {
	return &Client{
		cluster:  *cluster,
		settings: settings,
		logger:   logger,
		createSession: func(cfg *gocql.ClusterConfig) (*gocql.Session, error) {
			return cfg.CreateSession()
		},
	}
}

// Endpoints returns the contact points in registration order.
func (c *Client) Endpoints() []string { return append([]string(nil), c.cluster.Hosts...) }

// Port returns the native protocol port.
func (c *Client) Port() int { return c.cluster.Port }

// Keyspace returns the default keyspace.
func (c *Client) Keyspace() string { return c.cluster.Keyspace }

// Identity returns the application and session names.
func (c *Client) Identity() Identity { return c.settings.identity }

// ClusterID returns the configured cluster id.
func (c *Client) ClusterID() (uuid.UUID, bool) {
	if c.settings.clusterID == nil {
		return uuid.Nil, false
	}
	return *c.settings.clusterID, true
}

// Cluster returns a copy of the driver configuration.
func (c *Client) Cluster() gocql.ClusterConfig {
	cfg := c.cluster
	cfg.Hosts = append([]string(nil), c.cluster.Hosts...)
	return cfg
}

// Profile returns the execution profile stored under name.
func (c *Client) Profile(name string) (ExecutionProfile, bool) {
	if c.settings.profiles == nil {
		return ExecutionProfile{}, false
	}
	return c.settings.profiles.Profile(name)
}

// GraphOptions returns the graph options, nil when unset.
func (c *Client) GraphOptions() *GraphOptions { return c.settings.graph }

// Serializer returns the serializer registered for a CQL type.
func (c *Client) Serializer(cqlType string) (TypeSerializer, bool) {
	s, ok := c.settings.serializers[cqlType]
	return s, ok
}

// QueryTimeout returns the per-query timeout applied by Exec, zero when unset.
func (c *Client) QueryTimeout() time.Duration { return c.settings.queryTimeout }

// RowSetBuffering reports whether result pages are prefetched.
func (c *Client) RowSetBuffering() bool { return c.settings.rowSetBuffering }

// NoCompact reports whether NO_COMPACT was requested. The flag is recorded
// only; gocql has no STARTUP option hook, so Connect does not send it.
func (c *Client) NoCompact() bool { return c.settings.noCompact }

// BetaProtocolVersions reports whether beta protocol versions are allowed.
func (c *Client) BetaProtocolVersions() bool { return c.settings.beta }

// MonitorReporting returns the monitor reporting flag and whether it was set.
func (c *Client) MonitorReporting() (enabled, set bool) {
	if c.settings.monitorReporting == nil {
		return false, false
	}
	return *c.settings.monitorReporting, true
}

// UnresolvedContactPoints returns the flag and whether it was set.
func (c *Client) UnresolvedContactPoints() (enabled, set bool) {
	if c.settings.unresolved == nil {
		return false, false
	}
	return *c.settings.unresolved, true
}

// Connect opens the session. It runs once; later calls return the open session.
func (c *Client) Connect(ctx context.Context) (*gocql.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.session != nil {
		return c.session, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := c.Cluster()
	session, err := c.createSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %v: %w", cfg.Hosts, err)
	}
	c.session = session
	c.logger.Info().Strs("hosts", cfg.Hosts).Str("keyspace", cfg.Keyspace).Msg("cassandra session established")
	return session, nil
}

// Query prepares stmt on the session with the client defaults applied. The
// query timeout is not applied here because the caller owns execution.
func (c *Client) Query(ctx context.Context, stmt string, values ...interface{}) (*gocql.Query, error) {
	return c.query(ctx, nil, stmt, values)
}

// QueryWithProfile prepares stmt with the named execution profile applied on top of the defaults.
func (c *Client) QueryWithProfile(ctx context.Context, profile, stmt string, values ...interface{}) (*gocql.Query, error) {
	p, ok := c.Profile(profile)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profile)
	}
	return c.query(ctx, &p, stmt, values)
}

// Exec runs stmt bounded by the query timeout.
func (c *Client) Exec(ctx context.Context, stmt string, values ...interface{}) error {
	return c.exec(ctx, nil, c.settings.queryTimeout, stmt, values)
}

// ExecWithProfile runs stmt with the named profile. The profile timeout, when
// set, replaces the client query timeout.
func (c *Client) ExecWithProfile(ctx context.Context, profile, stmt string, values ...interface{}) error {
	p, ok := c.Profile(profile)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, profile)
	}
	timeout := c.settings.queryTimeout
	if p.Timeout != nil {
		timeout = *p.Timeout
	}
	return c.exec(ctx, &p, timeout, stmt, values)
}

func (c *Client) exec(ctx context.Context, profile *ExecutionProfile, timeout time.Duration, stmt string, values []interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	q, err := c.query(ctx, profile, stmt, values)
	if err != nil {
		return err
	}
	return q.Exec()
}

func (c *Client) query(ctx context.Context, profile *ExecutionProfile, stmt string, values []interface{}) (*gocql.Query, error) {
	session, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	q := session.Query(stmt, values...).WithContext(ctx)
	c.applyDefaults(q)
	if profile != nil {
		applyProfile(q, profile)
	}
	return q, nil
}

func (c *Client) applyDefaults(q *gocql.Query) {
	if !c.settings.rowSetBuffering {
		q.Prefetch(0)
	}
	if c.settings.timestamps != nil {
		q.WithTimestamp(c.settings.timestamps.Next())
	}
	if c.settings.speculative != nil {
		q.SetSpeculativeExecutionPolicy(c.settings.speculative)
	}
}

func applyProfile(q *gocql.Query, p *ExecutionProfile) {
	if p.Consistency != nil {
		q.Consistency(*p.Consistency)
	}
	if p.SerialConsistency != nil {
		q.SerialConsistency(*p.SerialConsistency)
	}
	if p.PageSize != nil {
		q.PageSize(*p.PageSize)
	}
	if p.Idempotent != nil {
		q.Idempotent(*p.Idempotent)
	}
	if p.RetryPolicy != nil {
		q.RetryPolicy(p.RetryPolicy)
	}
	if p.Speculative != nil {
		q.SetSpeculativeExecutionPolicy(p.Speculative)
	}
}

// Close closes the session if one was opened. The client cannot reconnect afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.session != nil {
		c.session.Close()
		c.session = nil
		c.logger.Info().Strs("hosts", c.cluster.Hosts).Msg("cassandra session closed")
	}
	return nil
}
