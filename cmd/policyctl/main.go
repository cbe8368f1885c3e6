// Command policyctl administra a política de admissão e o estado por
// identidade direto nas stores, sem passar pelo servidor HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"aspirasi-gateway/admission/application"
	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/bootstrap"
	"aspirasi-gateway/config"
	"aspirasi-gateway/identity"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "policyctl: %v\n", err)
		}
		os.Exit(2)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage")
	fmt.Fprintln(w, "  policyctl [flags] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands")
	fmt.Fprintln(w, "  get                         print the admission policy")
	fmt.Fprintln(w, "  set <policy.json|->         replace the admission policy")
	fmt.Fprintln(w, "  hash <ip>                   print the identity hash of an address")
	fmt.Fprintln(w, "  state <ipHash|ip>           print the tracking record")
	fmt.Fprintln(w, "  whitelist <ipHash|ip>       exempt an identity from the quota")
	fmt.Fprintln(w, "  unwhitelist <ipHash|ip>     remove the exemption")
	fmt.Fprintln(w, "  reset <ipHash|ip>           delete the tracking record")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags")
	fmt.Fprintln(w, "  config string     config file path")
	fmt.Fprintln(w, "  namespace string  override the configured namespace")
}

type cli struct {
	ns     string
	svc    *application.Service
	hasher *identity.Hasher
	in     io.Reader
	out    io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("policyctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file path")
	namespace := fs.String("namespace", "", "namespace")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	ns := cfg.Namespace
	if *namespace != "" {
		ns = *namespace
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	hasher := identity.NewHasher(cfg.Identity.Secret)
	if cmd == "hash" {
		if len(rest) != 1 {
			return fmt.Errorf("%w: hash <ip>", errUsage)
		}
		h, err := hasher.Hash(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, h)
		return nil
	}

	stores, err := bootstrap.OpenStores(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	svc, err := bootstrap.NewAdmission(cfg, stores, zap.NewNop(), nil)
	if err != nil {
		return err
	}
	c := &cli{ns: ns, svc: svc, hasher: hasher, in: os.Stdin, out: stdout}
	return c.dispatch(ctx, cmd, rest)
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "get":
		p, err := c.svc.Policy(ctx, c.ns)
		if err != nil {
			return err
		}
		return c.print(domain.NewPolicyRecord(p))
	case "set":
		if len(args) != 1 {
			return fmt.Errorf("%w: set <policy.json|->", errUsage)
		}
		return c.setPolicy(ctx, args[0])
	case "state", "whitelist", "unwhitelist", "reset":
		if len(args) != 1 {
			return fmt.Errorf("%w: %s <ipHash|ip>", errUsage, cmd)
		}
		ipHash, err := c.resolve(args[0])
		if err != nil {
			return err
		}
		return c.identityCommand(ctx, cmd, ipHash)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (c *cli) setPolicy(ctx context.Context, src string) error {
	var r io.Reader = c.in
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var rec domain.PolicyRecord
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	p := rec.Policy()
	if err := c.svc.UpdatePolicy(ctx, c.ns, p); err != nil {
		return err
	}
	return c.print(domain.NewPolicyRecord(p))
}

func (c *cli) identityCommand(ctx context.Context, cmd, ipHash string) error {
	switch cmd {
	case "whitelist", "unwhitelist":
		if err := c.svc.SetWhitelisted(ctx, c.ns, ipHash, cmd == "whitelist"); err != nil {
			return err
		}
	case "reset":
		if err := c.svc.ResetState(ctx, c.ns, ipHash); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "reset %s\n", ipHash)
		return nil
	}

	st, err := c.svc.State(ctx, c.ns, ipHash)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("%s: %w", ipHash, domain.ErrNotFound)
	}
	return c.print(domain.NewTrackerRecord(*st))
}

// resolve aceita o hash pronto (64 hex) ou um endereço a ser hasheado.
func (c *cli) resolve(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if isHash(arg) {
		return strings.ToLower(arg), nil
	}
	return c.hasher.Hash(arg)
}

func isHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
