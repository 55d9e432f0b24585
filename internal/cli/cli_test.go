package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntua-el20059/Chordify/internal/chord"
	"github.com/ntua-el20059/Chordify/internal/store"
	"github.com/ntua-el20059/Chordify/internal/transport"
)

// startRing boots a singleton ring node the CLI can drive.
func startRing(t *testing.T) *chord.Node {
	t.Helper()

	shard, err := store.Open("")
	require.NoError(t, err)

	ln, port, err := transport.Listen(0, true)
	require.NoError(t, err)

	node := chord.New("127.0.0.1", port, shard)
	srv := transport.NewServer(ln, node.HandleFrame)
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	node.Bootstrap(chord.Policy{
		ConsistencyType:   chord.ConsistencyLinearizable,
		ReplicationFactor: 1,
	})
	return node
}

func runScript(t *testing.T, node *chord.Node, script string) string {
	t.Helper()
	var out bytes.Buffer
	Run(node, strings.NewReader(script), &out, false)
	return out.String()
}

func TestInsertQueryDelete(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, strings.Join([]string{
		"insert, song, a",
		"query, song",
		"delete, song",
		"query, song",
	}, "\n"))

	assert.Contains(t, out, "inserted: song => a")
	assert.Contains(t, out, "query result for song: a")
	assert.Contains(t, out, "deleted: song")
	assert.Contains(t, out, "query result for song: null")
}

func TestCommandsAreCaseInsensitive(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "INSERT, song, a\nQuery, song\n")
	assert.Contains(t, out, "inserted: song => a")
	assert.Contains(t, out, "query result for song: a")
}

func TestWildcardQuery(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "insert, alpha, 1\ninsert, beta, 2\nquery, *\n")
	assert.Contains(t, out, "alpha: 1")
	assert.Contains(t, out, "beta: 2")
	assert.Contains(t, out, "2 keys")
}

func TestMissingArguments(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "insert\ndelete\nquery\n")
	assert.Contains(t, out, "missing key for insertion")
	assert.Contains(t, out, "missing key for deletion")
	assert.Contains(t, out, "missing key for query")
}

func TestInvalidCommand(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "frobnicate\n")
	assert.Contains(t, out, "invalid command: frobnicate")
}

func TestExitEndsSession(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "exit\ninsert, song, a\n")
	assert.Contains(t, out, "departing.")
	assert.NotContains(t, out, "inserted")
}

func TestStatusAndHelp(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "insert, song, a\nstatus\nhelp\n")
	assert.Contains(t, out, node.Self().Addr())
	assert.Contains(t, out, "song: a")
	assert.Contains(t, out, "Available commands")
}

func TestGreetCommand(t *testing.T) {
	node := startRing(t)

	script := fmt.Sprintf("greet, 127.0.0.1, %d\n", node.Self().Port)
	out := runScript(t, node, script)
	assert.Contains(t, out, "hello from")
}

func TestOverlayCommand(t *testing.T) {
	node := startRing(t)

	out := runScript(t, node, "overlay\n")
	assert.Contains(t, out, node.Self().Addr())
}

func TestBatchDriver(t *testing.T) {
	node := startRing(t)

	path := filepath.Join(t.TempDir(), "commands.txt")
	script := "insert, song, a\nquery, song\nexit\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	var out bytes.Buffer
	require.NoError(t, RunFile(node, path, &out))
	assert.Contains(t, out.String(), "query result for song: a")
}

func TestBatchDriverMissingFile(t *testing.T) {
	node := startRing(t)

	var out bytes.Buffer
	err := RunFile(node, filepath.Join(t.TempDir(), "absent.txt"), &out)
	assert.Error(t, err)
}
