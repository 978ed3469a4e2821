// Command msgseq sends or verifies a timed message sequence over WebSocket or TCP.
//
//	msgseq send --port 8080                         # serve the sequence to every client
//	msgseq receive --url ws://localhost:8080        # verify the sequence sent by a server
//	msgseq validate protocol.json                   # check a sequence file
//
// Every flag can also be set through its environment variable. The files .env.local and .env in the
// working directory are loaded first; variables already set in the environment win.
package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/arloliu/go-msgseq/logger"
)

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel string `help:"Minimum log level (${enum})." enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`
	LogFile  string `help:"Also write logs to this size-rotated file." type:"path" env:"LOG_FILE"`
	Console  bool   `help:"Human readable log output instead of JSON." env:"LOG_CONSOLE"`
}

// newLogger builds the process logger and installs it as the default one.
func (g *Globals) newLogger() logger.Logger {
	level, err := logger.ParseLevel(g.LogLevel)
	if err != nil {
		level = logger.InfoLevel
	}

	var opts []logger.SlogOption
	if g.Console {
		opts = append(opts, logger.WithConsole())
	}
	if g.LogFile != "" {
		opts = append(opts, logger.WithFile(g.LogFile, true))
	}

	l := logger.NewSlog(level, false, opts...)
	logger.SetLogger(l)

	return l
}

// CLI is the command line of msgseq.
type CLI struct {
	Globals

	Send     SendCmd     `cmd:"" help:"Accept connections and send the sequence to each of them."`
	Receive  ReceiveCmd  `cmd:"" help:"Connect to a sender and verify the sequence it sends."`
	Validate ValidateCmd `cmd:"" help:"Check a sequence file and print a summary."`
}

func newParser(ctx context.Context, cli *CLI, out io.Writer, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("msgseq"),
		kong.Description("Timed message exchange verifier."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(out, (*io.Writer)(nil)),
		kong.Vars{"default_url": defaultURL()},
	}, opts...)

	return kong.New(cli, opts...)
}

func main() {
	if err := loadEnvFiles(".env.local", ".env"); err != nil {
		logger.Warn("failed to load env file", "error", err)
	}

	var cli CLI
	parser, err := newParser(context.Background(), &cli, os.Stdout)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
