package cassandra

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// RetrySpec describes a retry policy in configuration text.
type RetrySpec struct {
	Kind          string              `yaml:"kind"`
	NumRetries    int                 `yaml:"num_retries,omitempty"`
	Min           time.Duration       `yaml:"min,omitempty"`
	Max           time.Duration       `yaml:"max,omitempty"`
	Consistencies []gocql.Consistency `yaml:"consistencies,omitempty"`
}

// Build returns the driver policy.
func (s RetrySpec) Build() (gocql.RetryPolicy, error) {
	switch strings.ToLower(s.Kind) {
	case "simple", "":
		return &gocql.SimpleRetryPolicy{NumRetries: s.NumRetries}, nil
	case "exponential":
		return &gocql.ExponentialBackoffRetryPolicy{NumRetries: s.NumRetries, Min: s.Min, Max: s.Max}, nil
	case "downgrading":
		if len(s.Consistencies) == 0 {
			return nil, fmt.Errorf("downgrading retry policy requires consistencies")
		}
		return &gocql.DowngradingConsistencyRetryPolicy{ConsistencyLevelsToTry: s.Consistencies}, nil
	default:
		return nil, fmt.Errorf("unknown retry policy kind %q", s.Kind)
	}
}

// ReconnectionSpec describes a reconnection policy in configuration text.
type ReconnectionSpec struct {
	Kind            string        `yaml:"kind"`
	MaxRetries      int           `yaml:"max_retries,omitempty"`
	Interval        time.Duration `yaml:"interval,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

// Build returns the driver policy.
func (s ReconnectionSpec) Build() (gocql.ReconnectionPolicy, error) {
	switch strings.ToLower(s.Kind) {
	case "constant", "":
		return &gocql.ConstantReconnectionPolicy{MaxRetries: s.MaxRetries, Interval: s.Interval}, nil
	case "exponential":
		return &gocql.ExponentialReconnectionPolicy{
			MaxRetries:      s.MaxRetries,
			InitialInterval: s.InitialInterval,
			MaxInterval:     s.MaxInterval,
		}, nil
	default:
		return nil, fmt.Errorf("unknown reconnection policy kind %q", s.Kind)
	}
}

// LoadBalancingSpec describes a host selection policy in configuration text.
type LoadBalancingSpec struct {
	Kind            string             `yaml:"kind"`
	LocalDC         string             `yaml:"local_dc,omitempty"`
	Fallback        *LoadBalancingSpec `yaml:"fallback,omitempty"`
	ShuffleReplicas bool               `yaml:"shuffle_replicas,omitempty"`
}

// Build returns the driver policy.
func (s LoadBalancingSpec) Build() (gocql.HostSelectionPolicy, error) {
	switch strings.ToLower(s.Kind) {
	case "round_robin", "":
		return gocql.RoundRobinHostPolicy(), nil
	case "dc_aware":
		if s.LocalDC == "" {
			return nil, fmt.Errorf("dc_aware load balancing requires local_dc")
		}
		return gocql.DCAwareRoundRobinPolicy(s.LocalDC), nil
	case "token_aware":
		fallback := gocql.RoundRobinHostPolicy()
		if s.Fallback != nil {
			if strings.EqualFold(s.Fallback.Kind, "token_aware") {
				return nil, fmt.Errorf("token_aware fallback must not be token_aware")
			}
			var err error
			if fallback, err = s.Fallback.Build(); err != nil {
				return nil, err
			}
		} else if s.LocalDC != "" {
			fallback = gocql.DCAwareRoundRobinPolicy(s.LocalDC)
		}
		if s.ShuffleReplicas {
			return gocql.TokenAwareHostPolicy(fallback, gocql.ShuffleReplicas()), nil
		}
		return gocql.TokenAwareHostPolicy(fallback), nil
	default:
		return nil, fmt.Errorf("unknown load balancing policy kind %q", s.Kind)
	}
}

// SpeculativeSpec describes a speculative execution policy in configuration text.
type SpeculativeSpec struct {
	Kind     string        `yaml:"kind"`
	Attempts int           `yaml:"attempts,omitempty"`
	Delay    time.Duration `yaml:"delay,omitempty"`
}

// Build returns the driver policy.
func (s SpeculativeSpec) Build() (gocql.SpeculativeExecutionPolicy, error) {
	switch strings.ToLower(s.Kind) {
	case "none", "":
		return gocql.NonSpeculativeExecution{}, nil
	case "simple":
		if s.Attempts <= 0 || s.Delay <= 0 {
			return nil, fmt.Errorf("simple speculative execution requires positive attempts and delay")
		}
		return &gocql.SimpleSpeculativeExecution{NumAttempts: s.Attempts, TimeoutDelay: s.Delay}, nil
	default:
		return nil, fmt.Errorf("unknown speculative execution policy kind %q", s.Kind)
	}
}

// AddressTranslatorSpec maps broadcast addresses to reachable ones. Keys and
// values are "ip" or "ip:port".
type AddressTranslatorSpec struct {
	Static map[string]string `yaml:"static"`
}

// Build returns a translator over the static table.
func (s AddressTranslatorSpec) Build() (gocql.AddressTranslator, error) {
	return NewStaticAddressTranslator(s.Static)
}

type hostPort struct {
	ip   net.IP
	port int
}

// NewStaticAddressTranslator translates addresses found in table and passes
// every other address through.
func NewStaticAddressTranslator(table map[string]string) (gocql.AddressTranslator, error) {
	byIP := make(map[string]hostPort, len(table))
	byIPPort := make(map[string]hostPort, len(table))
	for from, to := range table {
		target, err := parseHostPort(to)
		if err != nil {
			return nil, fmt.Errorf("address translation target %q: %w", to, err)
		}
		source, err := parseHostPort(from)
		if err != nil {
			return nil, fmt.Errorf("address translation source %q: %w", from, err)
		}
		if source.port == 0 {
			byIP[source.ip.String()] = target
		} else {
			byIPPort[net.JoinHostPort(source.ip.String(), strconv.Itoa(source.port))] = target
		}
	}
	return gocql.AddressTranslatorFunc(func(addr net.IP, port int) (net.IP, int) {
		target, ok := byIPPort[net.JoinHostPort(addr.String(), strconv.Itoa(port))]
		if !ok {
			target, ok = byIP[addr.String()]
		}
		if !ok {
			return addr, port
		}
		if target.port == 0 {
			return target.ip, port
		}
		return target.ip, target.port
	}), nil
}

func parseHostPort(raw string) (hostPort, error) {
	host, portText, err := net.SplitHostPort(raw)
	if err != nil {
		host, portText = raw, ""
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return hostPort{}, fmt.Errorf("not an ip address")
	}
	port := 0
	if portText != "" {
		if port, err = strconv.Atoi(portText); err != nil || port <= 0 || port > 65535 {
			return hostPort{}, fmt.Errorf("invalid port %q", portText)
		}
	}
	return hostPort{ip: ip, port: port}, nil
}
