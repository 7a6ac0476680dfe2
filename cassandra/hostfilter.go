package cassandra

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gocql/gocql"
)

// HostFilter accepts hosts for which a boolean expression holds. The
// expression sees address, dc, rack, host_id and port.
type HostFilter struct {
	source  string
	program *vm.Program
}

// NewHostFilter compiles expression, e.g. `dc == "east" && rack != "r3"`.
func NewHostFilter(expression string) (*HostFilter, error) {
	program, err := expr.Compile(expression, expr.Env(hostEnv("", "", "", "", 0)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile host filter %q: %w", expression, err)
	}
	return &HostFilter{source: expression, program: program}, nil
}

// String returns the expression source.
func (f *HostFilter) String() string { return f.source }

// Match evaluates the expression against explicit host attributes.
func (f *HostFilter) Match(address, dc, rack, hostID string, port int) (bool, error) {
	out, err := vm.Run(f.program, hostEnv(address, dc, rack, hostID, port))
	if err != nil {
		return false, fmt.Errorf("evaluate host filter: %w", err)
	}
	accepted, _ := out.(bool)
	return accepted, nil
}

// Accept implements gocql.HostFilter. Evaluation errors reject the host.
func (f *HostFilter) Accept(host *gocql.HostInfo) bool {
	address := ""
	if ip := host.ConnectAddress(); ip != nil {
		address = ip.String()
	}
	ok, err := f.Match(address, host.DataCenter(), host.Rack(), host.HostID(), host.Port())
	return err == nil && ok
}

func hostEnv(address, dc, rack, hostID string, port int) map[string]interface{} {
	return map[string]interface{}{
		"address": address,
		"dc":      dc,
		"rack":    rack,
		"host_id": hostID,
		"port":    port,
	}
}
