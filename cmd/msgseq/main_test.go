package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-msgseq/protocol"
	"github.com/arloliu/go-msgseq/sequence"
)

func parse(t *testing.T, out *bytes.Buffer, args ...string) (*CLI, *kong.Context, error) {
	t.Helper()

	var cli CLI
	parser, err := newParser(context.Background(), &cli, out, kong.Writers(out, out))
	require.NoError(t, err)

	kctx, err := parser.Parse(args)

	return &cli, kctx, err
}

// clearEnv unsets the variables bound to flags for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"HOST", "PORT", "TRANSPORT", "PROTOCOL_FILE", "URL", "TOLERANCE", "LOG_LEVEL", "LOG_FILE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestSendFlags(t *testing.T) {
	clearEnv(t)

	t.Run("Defaults", func(t *testing.T) {
		require := require.New(t)

		cli, kctx, err := parse(t, &bytes.Buffer{}, "send")
		require.NoError(err)
		require.Equal("send", kctx.Command())
		require.Equal(8080, cli.Send.Port)
		require.Equal("ws", cli.Send.Transport)
		require.Empty(cli.Send.Host)
		require.Empty(cli.Send.ProtocolFile)
		require.Equal("info", cli.LogLevel)
	})

	t.Run("Environment", func(t *testing.T) {
		require := require.New(t)

		t.Setenv("PORT", "9000")
		t.Setenv("TRANSPORT", "tcp")
		t.Setenv("LOG_LEVEL", "debug")

		cli, _, err := parse(t, &bytes.Buffer{}, "send")
		require.NoError(err)
		require.Equal(9000, cli.Send.Port)
		require.Equal("tcp", cli.Send.Transport)
		require.Equal("debug", cli.LogLevel)
	})

	t.Run("Flag wins over environment", func(t *testing.T) {
		require := require.New(t)

		t.Setenv("PORT", "9000")

		cli, _, err := parse(t, &bytes.Buffer{}, "send", "--port", "7000")
		require.NoError(err)
		require.Equal(7000, cli.Send.Port)
	})

	t.Run("Invalid", func(t *testing.T) {
		require := require.New(t)

		_, _, err := parse(t, &bytes.Buffer{}, "send", "--port", "70000")
		require.ErrorContains(err, "out of range")

		_, _, err = parse(t, &bytes.Buffer{}, "send", "--port", "0")
		require.ErrorContains(err, "out of range")

		_, _, err = parse(t, &bytes.Buffer{}, "send", "--transport", "udp")
		require.Error(err)

		_, _, err = parse(t, &bytes.Buffer{}, "--log-level", "verbose", "send")
		require.Error(err)
	})
}

func TestReceiveFlags(t *testing.T) {
	clearEnv(t)
	require := require.New(t)

	cli, kctx, err := parse(t, &bytes.Buffer{}, "receive")
	require.NoError(err)
	require.Equal("receive", kctx.Command())
	require.Equal("ws://localhost:8080", cli.Receive.URL)
	require.Equal(300*time.Millisecond, cli.Receive.Tolerance)
	require.Equal(5*time.Second, cli.Receive.StopTimeout)

	// the default URL follows the port a local sender listens on
	t.Setenv("PORT", "9000")

	cli, _, err = parse(t, &bytes.Buffer{}, "receive")
	require.NoError(err)
	require.Equal("ws://localhost:9000", cli.Receive.URL)

	t.Setenv("URL", "tcp://10.0.0.1:5000")
	t.Setenv("TOLERANCE", "1s")

	cli, _, err = parse(t, &bytes.Buffer{}, "receive")
	require.NoError(err)
	require.Equal("tcp://10.0.0.1:5000", cli.Receive.URL)
	require.Equal(time.Second, cli.Receive.Tolerance)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	t.Run("Summary", func(t *testing.T) {
		require := require.New(t)

		out := &bytes.Buffer{}
		cli, kctx, err := parse(t, out, "validate", "../../sequence/testdata/default.json")
		require.NoError(err)
		require.NoError(kctx.Run(&cli.Globals))

		require.Contains(out.String(), "6 messages, 19s total")
		require.Contains(out.String(), `"you can leave now"`)
	})

	t.Run("Broken file", func(t *testing.T) {
		require := require.New(t)

		cli, kctx, err := parse(t, &bytes.Buffer{}, "validate", "../../sequence/testdata/broken.json")
		require.NoError(err)
		require.ErrorIs(kctx.Run(&cli.Globals), sequence.ErrInvalidSyntax)
	})

	t.Run("Dry run", func(t *testing.T) {
		require := require.New(t)

		path := filepath.Join(t.TempDir(), "quick.yaml")
		require.NoError(os.WriteFile(path, []byte("- text: ping\n  delay: 20\n- text: pong\n  delay: 30\n"), 0o600))

		out := &bytes.Buffer{}
		cli, kctx, err := parse(t, out, "--log-level", "error", "validate", "--dry-run", path)
		require.NoError(err)
		require.NoError(kctx.Run(&cli.Globals))
		require.Contains(out.String(), "dry run: completed, 2 of 2 verified")
	})
}

func TestLoadSequence(t *testing.T) {
	require := require.New(t)

	seq, err := loadSequence("")
	require.NoError(err)
	require.Equal(sequence.Default().Len(), seq.Len())

	seq, err = loadSequence("../../sequence/testdata/short.yaml")
	require.NoError(err)
	require.Equal(2, seq.Len())

	_, err = loadSequence("missing.json")
	require.ErrorIs(err, sequence.ErrReadFile)
}

func TestCheckReport(t *testing.T) {
	require := require.New(t)

	seq := sequence.MustNew(sequence.NewMessage("a", 1), sequence.NewMessage("b", 1))

	require.NoError(checkReport(protocol.Report{Outcome: protocol.OutcomeCompleted}, seq))
	require.NoError(checkReport(protocol.Report{Outcome: protocol.OutcomeAbandoned}, seq))

	err := checkReport(protocol.Report{
		Verdicts: []protocol.Verdict{
			{Index: 0, Expected: "a", Status: protocol.StatusMatched},
			{Index: 1, Expected: "b", Status: protocol.StatusTimedOut},
		},
		Outcome: protocol.OutcomeFailed,
	}, seq)
	require.ErrorIs(err, errVerificationFailed)
	require.ErrorContains(err, `message 1 "b" was timed-out (1 of 2 verified)`)
}

func TestLoadEnvFiles(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(os.WriteFile(local, []byte("MSGSEQ_TEST_A=local\n"), 0o600))
	require.NoError(os.WriteFile(shared, []byte("MSGSEQ_TEST_A=shared\nMSGSEQ_TEST_B=shared\nMSGSEQ_TEST_C=shared\n"), 0o600))

	t.Setenv("MSGSEQ_TEST_C", "env")
	for _, key := range []string{"MSGSEQ_TEST_A", "MSGSEQ_TEST_B"} {
		t.Setenv(key, "")
		require.NoError(os.Unsetenv(key))
	}

	require.NoError(loadEnvFiles(local, filepath.Join(dir, "missing"), shared))

	require.Equal("local", os.Getenv("MSGSEQ_TEST_A"))
	require.Equal("shared", os.Getenv("MSGSEQ_TEST_B"))
	require.Equal("env", os.Getenv("MSGSEQ_TEST_C"))
}
