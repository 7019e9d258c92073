// solidstate - crystal, diffraction and tight-binding computation service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/solidstate/internal/app"
	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/ewald"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lab"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
	"github.com/matiasleandrokruk/solidstate/internal/infra/config"
	"github.com/matiasleandrokruk/solidstate/internal/mcpserver"
	"github.com/matiasleandrokruk/solidstate/internal/server"
	"github.com/matiasleandrokruk/solidstate/internal/version"
	pkgauth "github.com/matiasleandrokruk/solidstate/pkg/auth"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	shutdownTimeout = 10 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// streams are the process handles every command writes through.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd(streams{in: in, out: out, errOut: errOut})
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(errOut, "error:", errorMessage(err)) //nolint:errcheck
		var ue usageError
		if errors.As(err, &ue) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}

func errorMessage(err error) string {
	if ce, ok := calcerr.As(err); ok {
		return fmt.Sprintf("%s: %s", ce.Kind, ce.Details())
	}
	return err.Error()
}

func newRootCmd(s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "solidstate",
		Short:         "Crystal builder, Ewald diffraction and tight-binding band solver",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
			return nil
		},
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	cmd.AddCommand(
		versionCmd(),
		serveCmd(s),
		mcpCmd(s),
		tokenCmd(),
		computeCmd(s, "crystal", "Build a crystal from a request file", func(svc *lab.Service) func(context.Context, crystal.Request) (*crystal.Response, error) {
			return svc.BuildCrystal
		}),
		computeCmd(s, "ewald", "Solve Ewald diffraction for a request file", func(svc *lab.Service) func(context.Context, ewald.Request) (*ewald.Response, error) {
			return svc.CalcEwald
		}),
		computeCmd(s, "tb", "Compute tight-binding bands and DOS for a request file", func(svc *lab.Service) func(context.Context, tb.Request) (*tb.Response, error) {
			return svc.CalcTB
		}),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
			return nil
		},
	}
}

func serveCmd(s streams) *cobra.Command {
	var host string
	var port int

	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			a, err := app.New(cfg, app.Options{LogOutput: s.errOut, TraceOutput: s.errOut})
			if err != nil {
				return err
			}
			a.InstallTracing()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(a.Router(), server.ConfigFrom(cfg), a.Logger, func() error {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return a.Close(closeCtx)
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()

			select {
			case err := <-errCh:
				_ = a.Close(context.Background())
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}

	c.Flags().StringVar(&host, "host", "", "Listen host (overrides SOLIDSTATE_HOST)")
	c.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides SOLIDSTATE_PORT)")
	return c
}

func mcpCmd(s streams) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the computations as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs and spans go to stderr.
			a, err := app.New(cfg, app.Options{LogOutput: s.errOut, TraceOutput: s.errOut})
			if err != nil {
				return err
			}
			defer a.Close(context.Background()) //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return mcpserver.Run(ctx, mcpserver.New(a.Service, a.Logger))
		},
	}
}

func tokenCmd() *cobra.Command {
	var subject string
	var secret string
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the /api routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			if secret == "" {
				return errors.New("no signing secret: set SOLIDSTATE_JWT_SECRET or pass --secret")
			}
			token, err := pkgauth.GenerateJWT([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
			return nil
		},
	}

	c.Flags().StringVarP(&subject, "subject", "s", "", "Token subject (required)")
	c.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to SOLIDSTATE_JWT_SECRET)")
	c.Flags().DurationVar(&ttl, "ttl", pkgauth.DefaultTTL, "Token lifetime")
	_ = c.MarkFlagRequired("subject")
	return c
}

// computeCmd runs one computation on a JSON request read from a file or
// stdin ("-") and prints the response.
func computeCmd[Req, Resp any](s streams, name, short string, pick func(*lab.Service) func(context.Context, Req) (*Resp, error)) *cobra.Command {
	var pretty bool

	c := &cobra.Command{
		Use:   name + " <request.json|->",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req Req
			if err := readRequest(s.in, args[0], &req); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.MetricsEnabled = false
			a, err := app.New(cfg, app.Options{LogOutput: s.errOut, TraceOutput: s.errOut})
			if err != nil {
				return err
			}
			defer a.Close(context.Background()) //nolint:errcheck

			resp, err := pick(a.Service)(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(resp)
		},
	}
	c.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return c
}

func readRequest(stdin io.Reader, path string, dst any) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode request %s: %w", path, err)
	}
	return nil
}
