package cassandra

import (
	"fmt"
	"strconv"
	"strings"
)

// ConnectionString is the parsed form of
// "Contact Points=h1,h2;Port=9042;Username=u;Password=p;Default Keyspace=ks".
type ConnectionString struct {
	ContactPoints   []string
	Port            int
	Username        string
	Password        string
	DefaultKeyspace string
}

// ParseConnectionString parses the semicolon separated key=value form. Keys
// are matched case-insensitively and ignore spaces.
func ParseConnectionString(raw string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("connection string: malformed segment %q", part)
		}
		v = strings.TrimSpace(v)
		switch normalizeKey(k) {
		case "contactpoints":
			for _, host := range strings.Split(v, ",") {
				if host = strings.TrimSpace(host); host != "" {
					cs.ContactPoints = append(cs.ContactPoints, host)
				}
			}
		case "port":
			port, err := strconv.Atoi(v)
			if err != nil || port <= 0 || port > 65535 {
				return ConnectionString{}, fmt.Errorf("connection string: invalid port %q", v)
			}
			cs.Port = port
		case "username":
			cs.Username = v
		case "password":
			cs.Password = v
		case "defaultkeyspace":
			cs.DefaultKeyspace = v
		default:
			return ConnectionString{}, fmt.Errorf("connection string: unknown key %q", strings.TrimSpace(k))
		}
	}
	if len(cs.ContactPoints) == 0 {
		return ConnectionString{}, fmt.Errorf("connection string: no contact points")
	}
	return cs, nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", ""))
}
