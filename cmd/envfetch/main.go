package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kgellert/nextjs-split-deploy/internal/envclient"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

type options struct {
	baseURL string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "envfetch",
		Short: "Load the environment descriptor from a deployment and download the private document",
		Long: `envfetch mounts against a deployment the way a page does: it loads
/env/env.json once and, when it exists, requests a presigned link and
downloads the document it points to.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", os.Getenv("ENVFETCH_BASE_URL"), "distribution url, e.g. https://d111111abcdef8.cloudfront.net")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	if opts.baseURL == "" {
		return fmt.Errorf("--base-url is required")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	client, err := envclient.New(opts.baseURL, envclient.WithLogger(log))
	if err != nil {
		return err
	}

	session, err := client.Mount(ctx)
	if err != nil {
		return err
	}

	if err := printJSON(out, "env", session.Env); err != nil {
		return err
	}

	if !session.Found {
		fmt.Fprintln(out, yellow("no descriptor deployed, nothing to download"))
		return nil
	}

	fmt.Fprintln(out, gray("download "+session.Download.ID()))

	res, err := session.Download.Wait(ctx)
	if err != nil {
		session.Download.Cancel()
		return err
	}

	if err := printJSON(out, "link", res.Link); err != nil {
		return err
	}
	fmt.Fprintln(out, green("document:"))
	fmt.Fprintln(out, string(res.Document))

	return nil
}

func printJSON(out io.Writer, label string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, green(label+":"))
	fmt.Fprintln(out, string(raw))
	return nil
}
