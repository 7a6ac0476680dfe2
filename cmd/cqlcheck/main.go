package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/timzifer/cqlreg/cassandra"
	"github.com/timzifer/cqlreg/cassandra/cqlhost"
	"github.com/timzifer/cqlreg/cassandra/cqlweb"
	"github.com/timzifer/cqlreg/container"
	"github.com/timzifer/cqlreg/internal/reload"
	"github.com/timzifer/cqlreg/options"
	"github.com/timzifer/cqlreg/webapp"
)

type checkOptions struct {
	configPath     string
	envPrefix      string
	prefix         string
	connect        bool
	connectTimeout time.Duration
	listen         string
	logOutput      io.Writer
}

func main() {
	cfgPath := flag.String("config", "cqlcheck.yaml", "Path to configuration file (.yaml or .cue)")
	envPrefix := flag.String("env-prefix", "CQLREG", "Environment variable prefix overriding configuration keys")
	prefix := flag.String("prefix", cassandra.ClientSectionKey, "Configuration section holding one entry per client")
	connect := flag.Bool("connect", false, "Open a session for every client")
	connectTimeout := flag.Duration("connect-timeout", 10*time.Second, "Timeout for each connection attempt")
	listen := flag.String("listen", "", "Serve /healthz, /metrics and /clients on this address")
	watch := flag.Bool("watch", false, "Re-run the check when configuration files change")
	flag.Parse()

	opts := checkOptions{
		configPath:     *cfgPath,
		envPrefix:      *envPrefix,
		prefix:         *prefix,
		connect:        *connect,
		connectTimeout: *connectTimeout,
		listen:         *listen,
		logOutput:      os.Stderr,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *watch {
		if err := runWithHotReload(ctx, opts, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("cqlcheck stopped")
		}
		return
	}

	app, err := newApp(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}
	log.Logger = app.Logger

	exitCode := executeCheck(ctx, app, opts, os.Stdout)
	if opts.listen == "" {
		if err := app.Close(); err != nil {
			app.Logger.Error().Err(err).Msg("close clients")
		}
		os.Exit(exitCode)
	}
	if err := app.Run(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("web app stopped with error")
	}
}

func newApp(opts checkOptions) (*webapp.App, error) {
	b := webapp.NewBuilder()
	if opts.logOutput != nil {
		b.UseLogOutput(opts.logOutput)
	}
	if opts.listen != "" {
		b.Listen(opts.listen)
	}
	if strings.EqualFold(filepath.Ext(opts.configPath), ".cue") {
		b.Configuration().AddCUEFile(opts.configPath, "")
	} else {
		b.Configuration().AddYAMLFile(opts.configPath)
	}
	if opts.envPrefix != "" {
		b.Configuration().AddEnv(opts.envPrefix)
	}
	if err := cqlweb.AddClientsFromSection(b, opts.prefix); err != nil {
		return nil, err
	}
	if err := cqlweb.MapClients(b, "/clients"); err != nil {
		return nil, err
	}
	return b.Build()
}

// executeCheck prints the translation plan of every client and builds it.
func executeCheck(ctx context.Context, app *webapp.App, opts checkOptions, out io.Writer) int {
	names := cqlhost.ClientNames(app.Host)
	if len(names) == 0 {
		fmt.Fprintf(out, "No clients configured under %q.\n", opts.prefix)
		return 0
	}
	store, err := container.GetRequired[*options.Store[cassandra.ClientOptions]](app.Services)
	if err != nil {
		fmt.Fprintf(out, "configuration invalid: %v\n", err)
		return 1
	}

	exitCode := 0
	for _, name := range names {
		fmt.Fprintf(out, "Client %q\n", name)
		clientOpts, err := store.Get(name)
		if err != nil {
			exitCode = 1
			fmt.Fprintf(out, "  Error: %v\n\n", err)
			continue
		}
		fmt.Fprintln(out, "  Plan:")
		for _, call := range cassandra.Plan(clientOpts) {
			fmt.Fprintf(out, "    - %s\n", call)
		}

		client, err := cqlweb.GetRequiredClient(app, name)
		if err != nil {
			exitCode = 1
			fmt.Fprintf(out, "  Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(out, "  Endpoints: %s (port %d)\n", strings.Join(client.Endpoints(), ", "), client.Port())
		if ks := client.Keyspace(); ks != "" {
			fmt.Fprintf(out, "  Keyspace: %s\n", ks)
		}
		if opts.connect {
			connectCtx, cancel := context.WithTimeout(ctx, opts.connectTimeout)
			_, err := client.Connect(connectCtx)
			cancel()
			if err != nil {
				exitCode = 1
				fmt.Fprintf(out, "  Connect: %v\n\n", err)
				continue
			}
			fmt.Fprintln(out, "  Connect: OK")
		}
		fmt.Fprintln(out, "  Status: OK")
		fmt.Fprintln(out)
	}

	if exitCode == 0 {
		fmt.Fprintln(out, "Client check completed successfully.")
	} else {
		fmt.Fprintln(out, "Client check completed with errors.")
	}
	return exitCode
}

func runWithHotReload(ctx context.Context, opts checkOptions, out io.Writer) error {
	app, err := newApp(opts)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	watcher, err := reload.NewWatcher(opts.configPath, app.Configuration)
	if err != nil {
		app.Close()
		return fmt.Errorf("create config watcher: %w", err)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		log.Logger = app.Logger
		executeCheck(ctx, app, opts, out)

		runCtx, cancelRun := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func(current *webapp.App) {
			if opts.listen == "" {
				<-runCtx.Done()
				errCh <- current.Close()
				return
			}
			errCh <- current.Run(runCtx)
		}(app)

		var next *webapp.App
		var changed []string
	loop:
		for {
			select {
			case <-ctx.Done():
				cancelRun()
				if err := <-errCh; err != nil {
					return err
				}
				return ctx.Err()
			case err := <-errCh:
				cancelRun()
				return err
			case <-ticker.C:
				changes, err := watcher.Check()
				if err != nil {
					app.Logger.Error().Err(err).Msg("failed to check configuration changes")
					continue
				}
				if len(changes) == 0 {
					continue
				}
				candidate, err := newApp(opts)
				if err != nil {
					app.Logger.Error().Err(err).Msg("failed to reload configuration")
					if err := watcher.Update(opts.configPath, app.Configuration); err != nil {
						app.Logger.Error().Err(err).Msg("failed to update watcher state")
					}
					continue
				}
				next = candidate
				changed = changes
				break loop
			}
		}

		cancelRun()
		if err := <-errCh; err != nil {
			app.Logger.Error().Err(err).Msg("application stopped during reload")
		}
		if err := watcher.Update(opts.configPath, next.Configuration); err != nil {
			next.Logger.Error().Err(err).Msg("failed to update watcher state")
		}
		for _, file := range changed {
			next.Telemetry.IncHotReload(file)
		}
		app = next
	}
}
