package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"headstart/internal/app"
	"headstart/pkg/config"
	"headstart/pkg/logger"
)

type Globals struct {
	Output string `short:"o" help:"Write the result to a file instead of stdout" type:"path"`
}

type CLI struct {
	Globals
	Seed           SeedCmd           `cmd:"" help:"Provision a seller organization from a seed file"`
	StagingRestore StagingRestoreCmd `cmd:"" name:"staging-restore" help:"Rebuild integration events and mute supplier email after a staging restore"`
	MessageSenders MessageSendersCmd `cmd:"" name:"message-senders" help:"Manage message senders"`
	Runs           RunsCmd           `cmd:"" help:"List recent provisioning runs"`
	Catalog        CatalogCmd        `cmd:"" help:"Inspect the built-in provisioning catalog"`
}

// runtime is bound into every command. The orchestrator is only built by commands that need it.
type runtime struct {
	ctx  context.Context
	cfg  config.Config
	log  *zap.SugaredLogger
	out  io.Writer
	open func(context.Context, config.Config, *zap.SugaredLogger) (*app.App, error)
}

func (rt *runtime) app() (*app.App, error) {
	return rt.open(rt.ctx, rt.cfg, rt.log)
}

func initParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("seedctl"),
		kong.Description("Provision and maintain HeadStart environments on OrderCloud."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	cli := &CLI{}
	parser, err := initParser(cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	var out io.Writer = os.Stdout
	if cli.Output != "" {
		f, err := os.OpenFile(cli.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		parser.FatalIfErrorf(err)
		defer f.Close()
		out = f
	}

	rt := &runtime{ctx: context.Background(), cfg: cfg, log: log, out: out, open: app.New}
	kctx.FatalIfErrorf(kctx.Run(rt))
}
