// Package cli implements the interactive command surface of a node and
// the batch driver that replays the same grammar from a file.
//
// The grammar is one command per line, comma-separated arguments,
// case-insensitive command word:
//
//	help
//	status
//	greet [, <ip> [, <port>]]
//	insert, <key> [, <value>]
//	delete, <key>
//	query, <key>
//	overlay
//	exit
//
// query with the wildcard key "*" resolves to a global query_all.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ntua-el20059/Chordify/internal/chord"
)

// defaults for the greet command, matching the bootstrap convention.
const (
	defaultGreetIP   = "127.0.0.1"
	defaultGreetPort = 5000
)

// Wildcard key that turns a point query into a global snapshot.
const wildcardKey = "*"

// Run reads commands from r and writes results to w until the exit
// command or EOF. It does not depart the ring itself; the caller owns
// shutdown so that interactive exit and SIGINT share one path.
func Run(node *chord.Node, r io.Reader, w io.Writer, interactive bool) {
	scanner := bufio.NewScanner(r)
	if interactive {
		fmt.Fprintln(w, "Chord DHT CLI - enter commands ('help' for reference)")
	}
	for {
		if interactive {
			fmt.Fprint(w, "> ")
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if processLine(node, line, w) {
			return
		}
	}
}

// RunFile replays commands from a file, one per line.
func RunFile(node *chord.Node, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open command file: %w", err)
	}
	defer f.Close()
	Run(node, f, w, false)
	return nil
}

// processLine executes one command. It returns true when the session
// should end.
func processLine(node *chord.Node, line string, w io.Writer) bool {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch strings.ToLower(parts[0]) {
	case "exit":
		fmt.Fprintln(w, "departing.")
		return true
	case "help":
		printHelp(w)
	case "status":
		printStatus(node, w)
	case "greet":
		greet(node, parts, w)
	case "insert":
		insert(node, parts, w)
	case "delete":
		del(node, parts, w)
	case "query":
		query(node, parts, w)
	case "overlay":
		overlay(node, w)
	default:
		fmt.Fprintf(w, "invalid command: %s\n", parts[0])
	}
	return false
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w, "  help                      - display this help message")
	fmt.Fprintln(w, "  status                    - show node status and ring neighbors")
	fmt.Fprintln(w, "  greet [, <ip> [, <port>]] - greet another node (default: 127.0.0.1:5000)")
	fmt.Fprintln(w, "  insert, <key> [, <value>] - store a key-value pair in the DHT")
	fmt.Fprintln(w, "  delete, <key>             - remove an entry from the DHT")
	fmt.Fprintln(w, "  query, <key>              - retrieve a value ('*' for all keys)")
	fmt.Fprintln(w, "  overlay                   - list the ring in successor order")
	fmt.Fprintln(w, "  exit                      - leave the network and shut down")
}

func printStatus(node *chord.Node, w io.Writer) {
	fmt.Fprintln(w, "Network status:")
	fmt.Fprintf(w, "  self:        %s (id %v)\n", node.Self().Addr(), node.Self().ID)
	fmt.Fprintf(w, "  successor:   %s\n", node.Successor().Addr())
	fmt.Fprintf(w, "  predecessor: %s\n", node.Predecessor().Addr())
	fmt.Fprintf(w, "  policy:      %s, k=%d\n",
		node.Policy().ConsistencyType, node.Policy().ReplicationFactor)

	fmt.Fprintln(w, "Local storage:")
	for _, e := range node.Entries() {
		fmt.Fprintf(w, "  %s: %s\n", e.Key, e.Value)
	}
}

func greet(node *chord.Node, parts []string, w io.Writer) {
	ip := defaultGreetIP
	port := defaultGreetPort
	if len(parts) > 1 && parts[1] != "" {
		ip = parts[1]
	}
	if len(parts) > 2 {
		p, err := strconv.Atoi(parts[2])
		if err != nil {
			fmt.Fprintf(w, "invalid port: %s\n", parts[2])
			return
		}
		port = p
	}

	msg, err := node.Greet(ip, port)
	if err != nil {
		fmt.Fprintf(w, "greet failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s\n", msg)
}

func insert(node *chord.Node, parts []string, w io.Writer) {
	if len(parts) < 2 || parts[1] == "" {
		fmt.Fprintln(w, "missing key for insertion")
		return
	}
	key := parts[1]
	value := ""
	if len(parts) > 2 {
		value = parts[2]
	}

	if err := node.Insert(key, value); err != nil {
		fmt.Fprintf(w, "insert failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "inserted: %s => %s\n", key, value)
}

func del(node *chord.Node, parts []string, w io.Writer) {
	if len(parts) < 2 || parts[1] == "" {
		fmt.Fprintln(w, "missing key for deletion")
		return
	}
	key := parts[1]

	if err := node.Delete(key); err != nil {
		fmt.Fprintf(w, "delete failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "deleted: %s\n", key)
}

func query(node *chord.Node, parts []string, w io.Writer) {
	if len(parts) < 2 || parts[1] == "" {
		fmt.Fprintln(w, "missing key for query")
		return
	}
	key := parts[1]

	if key == wildcardKey {
		entries, err := node.QueryAll()
		if err != nil {
			fmt.Fprintf(w, "query failed: %v\n", err)
			return
		}
		for _, e := range entries {
			fmt.Fprintf(w, "  %s: %s\n", e.Key, e.Value)
		}
		fmt.Fprintf(w, "%d keys\n", len(entries))
		return
	}

	value, err := node.Query(key)
	if err != nil {
		fmt.Fprintf(w, "query failed: %v\n", err)
		return
	}
	if value == nil {
		fmt.Fprintf(w, "query result for %s: null\n", key)
		return
	}
	fmt.Fprintf(w, "query result for %s: %s\n", key, *value)
}

func overlay(node *chord.Node, w io.Writer) {
	nodes, err := node.Overlay()
	if err != nil {
		fmt.Fprintf(w, "overlay failed: %v\n", err)
		return
	}
	for i, p := range nodes {
		fmt.Fprintf(w, "  %d. %s (id %v)\n", i+1, p.Addr(), p.ID)
	}
}
