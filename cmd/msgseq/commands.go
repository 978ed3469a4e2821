package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/arloliu/go-msgseq/app"
	"github.com/arloliu/go-msgseq/client"
	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/protocol"
	"github.com/arloliu/go-msgseq/sequence"
	"github.com/arloliu/go-msgseq/server"
	"github.com/arloliu/go-msgseq/transport"
	"github.com/arloliu/go-msgseq/transport/mem"
	"github.com/arloliu/go-msgseq/transport/tcp"
	"github.com/arloliu/go-msgseq/transport/ws"
)

var errVerificationFailed = errors.New("verification failed")

// loadSequence loads the sequence file at path, or returns the built-in sequence when path is empty.
func loadSequence(path string) (*sequence.Sequence, error) {
	if path == "" {
		return sequence.Default(), nil
	}

	return sequence.LoadFile(path)
}

// SendCmd serves the sequence.
type SendCmd struct {
	Host          string        `help:"Interface to listen on, all interfaces when empty." env:"HOST"`
	Port          int           `help:"Port to listen on." default:"8080" env:"PORT"`
	Transport     string        `help:"Transport (${enum})." enum:"ws,tcp" default:"ws" env:"TRANSPORT"`
	ProtocolFile  string        `help:"Sequence file (JSON or YAML), the built-in sequence when empty." type:"path" env:"PROTOCOL_FILE"`
	StatsInterval time.Duration `help:"Period of the metrics log record, 0 disables it." default:"0s" env:"STATS_INTERVAL"`
	StopTimeout   time.Duration `help:"Time given to close the connections on shutdown." default:"5s" env:"STOP_TIMEOUT"`
}

// Validate is called by kong after parsing.
func (c *SendCmd) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("--port: %d is out of range [1, 65535]", c.Port)
	}

	return nil
}

func (c *SendCmd) listen(l logger.Logger) (transport.Listener, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	if c.Transport == "tcp" {
		return tcp.NewListener(addr, tcp.WithLogger(l))
	}

	return ws.NewListener(addr, ws.WithLogger(l))
}

func (c *SendCmd) Run(ctx context.Context, g *Globals) error {
	l := g.newLogger()

	seq, err := loadSequence(c.ProtocolFile)
	if err != nil {
		return err
	}

	ln, err := c.listen(l)
	if err != nil {
		return err
	}

	srv, err := server.New(ln, seq, server.WithLogger(l), server.WithStatsInterval(c.StatsInterval))
	if err != nil {
		_ = ln.Close()
		return err
	}

	l.Info("Sending sequence", "transport", c.Transport, "messages", seq.Len(), "duration", seq.TotalDelay())

	return app.Run(ctx, srv, app.WithLogger(l), app.WithStopTimeout(c.StopTimeout))
}

// defaultURL points the receiver at a sender started on this host with the same PORT.
func defaultURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return "ws://" + net.JoinHostPort("localhost", port)
}

// ReceiveCmd verifies the sequence.
type ReceiveCmd struct {
	URL          string        `help:"Sender URL, ws://, wss://, http://, https:// or tcp://." default:"${default_url}" env:"URL"`
	ProtocolFile string        `help:"Sequence file (JSON or YAML), the built-in sequence when empty." type:"path" env:"PROTOCOL_FILE"`
	Tolerance    time.Duration `help:"Accepted deviation from the expected arrival time." default:"300ms" env:"TOLERANCE"`
	StopTimeout  time.Duration `help:"Time given to close the connection on shutdown." default:"5s" env:"STOP_TIMEOUT"`
}

// Run verifies the sequence once. A rejected message makes the command fail; a run cut short by a signal
// or by the sender leaving does not.
func (c *ReceiveCmd) Run(ctx context.Context, g *Globals) error {
	l := g.newLogger()

	seq, err := loadSequence(c.ProtocolFile)
	if err != nil {
		return err
	}

	cl, err := client.New(c.URL, seq, client.WithLogger(l), client.WithTolerance(c.Tolerance))
	if err != nil {
		return err
	}

	if err := app.Run(ctx, cl, app.WithLogger(l), app.WithStopTimeout(c.StopTimeout)); err != nil {
		return err
	}

	report, err := cl.Result()
	if err != nil {
		return err
	}

	return checkReport(report, seq)
}

func checkReport(report protocol.Report, seq *sequence.Sequence) error {
	failure, failed := report.Failure()
	if !failed {
		return nil
	}

	return fmt.Errorf("%w: message %d %q was %s (%d of %d verified)",
		errVerificationFailed, failure.Index, failure.Expected, failure.Status, report.Verified(), seq.Len())
}

// ValidateCmd checks a sequence file.
type ValidateCmd struct {
	File   string `arg:"" help:"Sequence file (JSON or YAML)." type:"path"`
	DryRun bool   `help:"Also play the sequence in-process in real time and verify it."`
}

func (c *ValidateCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	seq, err := sequence.LoadFile(c.File)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d messages, %v total\n", c.File, seq.Len(), seq.TotalDelay())
	for i, msg := range seq.All() {
		fmt.Fprintf(out, "  %3d  %8v  %q\n", i, msg.Delay, msg.Text)
	}

	if !c.DryRun {
		return nil
	}

	l := g.newLogger()
	senderConn, receiverConn := mem.Pipe(mem.WithLogger(l))

	sent := make(chan protocol.Report, 1)
	go func() { sent <- protocol.NewSender(seq, protocol.WithLogger(l)).Execute(ctx, senderConn) }()

	report := protocol.NewReceiver(seq, protocol.WithLogger(l)).Wait(ctx, receiverConn)
	<-sent

	fmt.Fprintf(out, "dry run: %s, %d of %d verified\n", report.Outcome, report.Verified(), seq.Len())

	return checkReport(report, seq)
}
