package cassandra

import "github.com/timzifer/cqlreg/config"

const (
	// DefaultOptionsName is the name used when a registration or resolution omits one.
	DefaultOptionsName = "Default"
	// ClientSectionKey is the default configuration prefix for client sections.
	ClientSectionKey = "Client"
)

// SectionPath returns the configuration path of the named client under prefix.
func SectionPath(prefix, name string) string {
	return prefix + config.KeyDelimiter + name
}
