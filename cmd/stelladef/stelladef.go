// Command stelladef applies, dry-runs, or exports the migration plan for
// the schemes declared in schemes.go against a live database, grounded
// on the teacher's cmd/psqldef/psqldef.go: the same go-flags option
// struct shape (without its password prompt), the DSN replaced with this
// engine's "kind:key=val;..." connection string (driver.ParseDSN)
// instead of discrete -U/-h/-p flags per backend.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stelladb/stellator"
	"github.com/stelladb/stellator/config"
	"github.com/stelladb/stellator/migrate"
	"github.com/stelladb/stellator/util"
)

var version string

type cliOptions struct {
	DSN        string `short:"d" long:"dsn" description:"Connection string, e.g. pgsql:host=...;dbname=...;user=... or sqlite:dbname=/path (overrides --app-config's connection block)" value-name:"dsn"`
	AppConfig  string `long:"app-config" description:"Path to the config.Config YAML (connection + runtime knobs)" value-name:"path"`
	Config     string `short:"c" long:"config" description:"Path to a YAML migrate.Config (target/skip schemes, enable_drop)" value-name:"path"`
	DryRun     bool   `long:"dry-run" description:"Don't run DDLs but just show them"`
	Export     bool   `long:"export" description:"Just dump the current table structure to stdout"`
	EnableDrop bool   `long:"enable-drop" description:"Allow destructive statements (DROP COLUMN, etc.)"`
	OTel       bool   `long:"otel" description:"Install a stdout-exporting OpenTelemetry TracerProvider for this run"`
	Help       bool   `long:"help" description:"Show this help"`
	Version    bool   `long:"version" description:"Show this version"`
}

func main() {
	util.InitSlog()

	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.OTel {
		shutdown, err := installTracing(ctx)
		if err != nil {
			log.Fatalf("otel: %s", err)
		}
		defer shutdown()
	}

	migCfg, err := migrate.ParseConfig(opts.Config)
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	migCfg.EnableDrop = migCfg.EnableDrop || opts.EnableDrop

	dsn := opts.DSN
	if dsn == "" {
		appCfg, err := config.Load(opts.AppConfig)
		if err != nil {
			log.Fatalf("app-config: %s", err)
		}
		dsn, err = connectionDSN(appCfg.Connection)
		if err != nil {
			log.Fatalf("app-config: %s", err)
		}
	}

	reg := stellator.NewRegistry()
	runOpts := stellator.Options{DryRun: opts.DryRun, Export: opts.Export}
	if err := stellator.Run(ctx, reg, dsn, Schemes, migCfg, runOpts); err != nil {
		log.Fatal(err)
	}
}

// connectionDSN assembles a driver.ParseDSN-compatible connection string
// from a config.Connection block, so an operator can keep one
// app-config.yaml instead of repeating connection parameters on the
// command line.
func connectionDSN(c config.Connection) (string, error) {
	switch c.Kind {
	case "postgres":
		return fmt.Sprintf("pgsql:host=%s;port=%d;dbname=%s;user=%s;password=%s",
			c.Host, c.Port, c.DBName, c.User, c.Password), nil
	case "sqlite":
		return fmt.Sprintf("sqlite:dbname=%s", c.Path), nil
	default:
		return "", fmt.Errorf("unknown connection kind %q (want postgres or sqlite)", c.Kind)
	}
}

// installTracing wires a real OpenTelemetry SpanExporter for this CLI
// invocation, grounded on tangled.sh-mirror's telemetry.NewTracerProvider
// (dev-mode stdout exporter branch); this binary only ever runs as a
// one-shot operator command, so only the stdout exporter is wired — the
// OTLP/batch-export branch that package also has belongs to a
// long-running server, not a CLI that exits after one plan/apply.
func installTracing(ctx context.Context) (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() { _ = tp.Shutdown(ctx) }, nil
}
