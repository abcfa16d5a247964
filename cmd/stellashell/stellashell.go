// Command stellashell is an ad hoc query REPL over the schemes declared
// in schemes.go, grounded on the teacher's cmd/psqldef/psqldef.go for
// connection-option parsing (go-flags, password prompt via x/term) and
// restructured around worker.Worker's Get/Select/Count/Create/Update/
// Touch/Remove surface instead of a SQL-file diff.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/stelladb/stellator"
	"github.com/stelladb/stellator/driver"
	"github.com/stelladb/stellator/scheme"
	"github.com/stelladb/stellator/util"
	"github.com/stelladb/stellator/value"
	"github.com/stelladb/stellator/worker"
)

type cliOptions struct {
	DSN    string `short:"d" long:"dsn" description:"Connection string, e.g. pgsql:host=...;dbname=... or sqlite:dbname=/path" required:"true"`
	Prompt bool   `short:"W" long:"password-prompt" description:"Prompt for a password and inject it into the DSN params as password=..."`
	Help   bool   `long:"help" description:"Show this help"`
}

func main() {
	util.InitSlog()

	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := stellator.NewRegistry()
	drv, params, err := reg.Open(opts.DSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts.Prompt {
		fmt.Print("Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, "password prompt:", err)
			os.Exit(1)
		}
		params["password"] = string(pass)
	}
	db, err := drv.Connect(ctx, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer db.Close()
	adapter := driver.NewAdapter(drv, db, 32)
	defer adapter.Close()

	schemesByName := make(map[string]*scheme.Scheme, len(Schemes))
	for _, s := range Schemes {
		schemesByName[s.Name] = s
	}

	fmt.Println("stellashell — type 'help' for commands, 'quit' to exit")
	repl(ctx, adapter, schemesByName)
}

func repl(ctx context.Context, adapter *driver.Adapter, schemes map[string]*scheme.Scheme) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("stella> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if cmd == "help" {
			printHelp()
			continue
		}
		var rest string
		if len(fields) > 1 {
			rest = fields[1]
		}
		if err := dispatch(ctx, adapter, schemes, cmd, rest); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  get <scheme> <oid>
  select <scheme> [limit]
  count <scheme>
  create <scheme> <json>
  update <scheme> <oid> <json>
  touch <scheme> <oid>
  remove <scheme> <oid>
  quit`)
}

func dispatch(ctx context.Context, adapter *driver.Adapter, schemes map[string]*scheme.Scheme, cmd, rest string) error {
	schemeName, rest := splitFirstToken(rest)
	if schemeName == "" {
		return fmt.Errorf("%s: missing scheme name", cmd)
	}
	s, ok := schemes[schemeName]
	if !ok {
		return fmt.Errorf("unknown scheme %q", schemeName)
	}

	tx := worker.NewTransaction(adapter, scheme.Admin)
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	w := worker.New(s, tx, worker.DefaultOptions())

	result, err := runCommand(ctx, w, cmd, rest)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if result != "" {
		fmt.Println(result)
	}
	return nil
}

func runCommand(ctx context.Context, w *worker.Worker, cmd, rest string) (string, error) {
	switch cmd {
	case "get":
		oid, _, err := parseOID(rest)
		if err != nil {
			return "", err
		}
		v, err := w.Get(ctx, oid)
		if err != nil {
			return "", err
		}
		return renderValue(v)
	case "select":
		q := worker.SelectQuery{}
		if arg := strings.TrimSpace(rest); arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return "", fmt.Errorf("select: invalid limit %q", arg)
			}
			// Limit only applies to an ordered Select, so order by __oid.
			q = worker.SelectQuery{Order: &scheme.Field{Name: "__oid"}, Limit: n}
		}
		vs, err := w.Select(ctx, q)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, v := range vs {
			s, err := renderValue(v)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			b.WriteByte('\n')
		}
		return strings.TrimSuffix(b.String(), "\n"), nil
	case "count":
		n, err := w.Count(ctx)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case "create":
		if strings.TrimSpace(rest) == "" {
			return "", fmt.Errorf("create: missing JSON patch")
		}
		patch, err := parsePatch(rest)
		if err != nil {
			return "", err
		}
		v, err := w.Create(ctx, patch)
		if err != nil {
			return "", err
		}
		return renderValue(v)
	case "update":
		oid, tail, err := parseOID(rest)
		if err != nil {
			return "", fmt.Errorf("update: %w", err)
		}
		patch, err := parsePatch(tail)
		if err != nil {
			return "", err
		}
		v, err := w.Update(ctx, oid, patch)
		if err != nil {
			return "", err
		}
		return renderValue(v)
	case "touch":
		oid, _, err := parseOID(rest)
		if err != nil {
			return "", err
		}
		v, err := w.Touch(ctx, oid)
		if err != nil {
			return "", err
		}
		return renderValue(v)
	case "remove":
		oid, _, err := parseOID(rest)
		if err != nil {
			return "", err
		}
		return "", w.Remove(ctx, oid)
	default:
		return "", fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

// splitFirstToken splits s on its first run of whitespace, returning the
// token and the (untrimmed-beyond-that) remainder — used to peel off one
// positional argument (scheme name, oid) while leaving a trailing JSON
// blob's internal spaces untouched.
func splitFirstToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i+1:], " \t")
}

// parseOID peels the leading oid token off rest, returning it and
// whatever remains (the JSON patch, for "update").
func parseOID(rest string) (oid int64, tail string, err error) {
	tok, tail := splitFirstToken(rest)
	if tok == "" {
		return 0, "", fmt.Errorf("missing oid")
	}
	oid, err = strconv.ParseInt(tok, 10, 64)
	return oid, tail, err
}

// parsePatch decodes a JSON blob straight into a value.Value via the
// codec in value/json.go.
func parsePatch(raw string) (value.Value, error) {
	var v value.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return value.Null(), fmt.Errorf("invalid JSON patch: %w", err)
	}
	return v, nil
}

func renderValue(v value.Value) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
