package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuelang.org/go/cue/parser"
)

type sample struct {
	Keyspace  string   `yaml:"keyspace"`
	Port      int      `yaml:"port"`
	Endpoints []string `yaml:"endpoints"`
	Timeout   Duration `yaml:"timeout"`
	Enabled   *bool    `yaml:"enabled"`
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `Client:
  Default:
    keyspace: ks1
    port: 9142
    endpoints: [a, b]
    timeout: 3s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var out sample
	if err := cfg.Bind("client:default", &out); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if out.Keyspace != "ks1" || out.Port != 9142 {
		t.Fatalf("unexpected values: %+v", out)
	}
	if len(out.Endpoints) != 2 || out.Endpoints[1] != "b" {
		t.Fatalf("unexpected endpoints: %v", out.Endpoints)
	}
	if out.Timeout.Duration != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", out.Timeout.Duration)
	}
	if files := cfg.Files(); len(files) != 1 {
		t.Fatalf("expected one tracked file, got %v", files)
	}
}

func TestBindMissingSectionLeavesValuesUntouched(t *testing.T) {
	cfg, err := NewBuilder().AddYAML("inline", []byte("other: 1\n")).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out := sample{Keyspace: "keep"}
	if err := cfg.Bind("Client:Default", &out); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if out.Keyspace != "keep" {
		t.Fatalf("expected untouched value, got %q", out.Keyspace)
	}
	if cfg.Section("Client:Default").Exists() {
		t.Fatalf("section must not exist")
	}
}

func TestLaterSourcesOverrideEarlierOnes(t *testing.T) {
	cfg, err := NewBuilder().
		AddYAML("base", []byte("Client:\n  Default:\n    keyspace: base\n    port: 9042\n")).
		AddYAML("override", []byte("client:\n  default:\n    keyspace: override\n")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var out sample
	if err := cfg.Bind("Client:Default", &out); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if out.Keyspace != "override" || out.Port != 9042 {
		t.Fatalf("unexpected merge result: %+v", out)
	}
	keys := cfg.Section("Client").Keys()
	if len(keys) != 1 {
		t.Fatalf("expected merged keys, got %v", keys)
	}
}

func TestEnvSource(t *testing.T) {
	src := envSource{prefix: "CQLTEST", environ: func() []string {
		return []string{
			"CQLTEST_CLIENT__DEFAULT__KEYSPACE=envks",
			"CQLTEST_CLIENT__DEFAULT__PORT=9000",
			"CQLTEST_CLIENT__DEFAULT__ENDPOINTS__1=h2",
			"CQLTEST_CLIENT__DEFAULT__ENDPOINTS__0=h1",
			"CQLTEST_CLIENT__DEFAULT__ENABLED=true",
			"OTHER=1",
		}
	}}
	cfg, err := NewBuilder().Add(src).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var out sample
	if err := cfg.Bind("Client:Default", &out); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if out.Keyspace != "envks" || out.Port != 9000 {
		t.Fatalf("unexpected values: %+v", out)
	}
	if len(out.Endpoints) != 2 || out.Endpoints[0] != "h1" || out.Endpoints[1] != "h2" {
		t.Fatalf("unexpected endpoints: %v", out.Endpoints)
	}
	if out.Enabled == nil || !*out.Enabled {
		t.Fatalf("expected enabled=true")
	}
}

func TestCUESourceMatchesYAML(t *testing.T) {
	cfg, err := NewBuilder().AddCUE("inline.cue", `
#Port: int & >0
Client: Default: {
	keyspace: "cueks"
	port:     #Port & 9142
	endpoints: ["a", "b"]
	timeout: "2s"
}
`, "").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var out sample
	if err := cfg.Bind("Client:Default", &out); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if out.Keyspace != "cueks" || out.Port != 9142 || out.Timeout.Duration != 2*time.Second {
		t.Fatalf("unexpected values: %+v", out)
	}
}

func TestCUEFileWithOverlay(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)
	if err := RegisterOverlayString("schema.cue", "#Keyspace: string & =~\"^[a-z_]+$\"\n"); err != nil {
		t.Fatalf("register overlay: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "clients.cue")
	if err := os.WriteFile(path, []byte("Client: Default: keyspace: #Keyspace & \"orders\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Section("Client:Default:keyspace").Value(); got != "orders" {
		t.Fatalf("expected orders, got %q", got)
	}
}

func TestCUEFileWithPackageClauseAndOverlay(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)
	if err := RegisterOverlayString("schema.cue", "#Port: int & >0 & <65536\n"); err != nil {
		t.Fatalf("register overlay: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "clients.cue")
	src := "package shop\n\nClient: Default: port: #Port & 9142\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Section("Client:Default:port").Value(); got != "9142" {
		t.Fatalf("expected 9142, got %q", got)
	}
}

func TestCUEOverlayFileConstrainsConfiguration(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)
	file, err := parser.ParseFile("schema.cue", "#Keyspace: =~\"^[a-z_]+$\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := RegisterOverlayFile("schema.cue", file); err != nil {
		t.Fatalf("register overlay: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "clients.cue")
	if err := os.WriteFile(path, []byte("Client: Default: keyspace: #Keyspace & \"Orders\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected keyspace rejected by overlay schema")
	}
}

func TestCUEIncompleteValueFails(t *testing.T) {
	_, err := NewBuilder().AddCUE("bad.cue", "Client: Default: keyspace: string\n", "").Build()
	if err == nil {
		t.Fatalf("expected validation error for non-concrete value")
	}
}

func TestRegisterOverlayRejectsInvalidPaths(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)
	for _, path := range []string{"", ".", "/abs/schema.cue", "../up.cue", "schema.yaml"} {
		if err := RegisterOverlayString(path, "a: 1"); err == nil {
			t.Fatalf("expected error for %q", path)
		}
	}
	if err := RegisterOverlayString("dup.cue", "a: 1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterOverlayString("dup.cue", "a: 1"); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestSectionChildren(t *testing.T) {
	cfg, err := NewBuilder().AddYAML("inline", []byte("Client:\n  east: {keyspace: e}\n  west: {keyspace: w}\n")).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	children := cfg.Section("Client").Children()
	if len(children) != 2 || children[0].Key() != "east" || children[1].Path() != "Client:west" {
		t.Fatalf("unexpected children: %+v", children)
	}
}
