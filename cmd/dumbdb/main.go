// Command dumbdb is an interactive console and benchmark harness for the
// blockkv store. It is plumbing, not part of the store's public API: see
// blockkv.Open/Set/Get/GetInto for that.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"

	"blockkv"
)

func main() {
	dbPath := flag.String("db", "dumbdb.db", "path to the database file")
	bench := flag.Int("bench", 0, "run a read/write benchmark with N iterations instead of the REPL")
	flag.Parse()

	store, err := blockkv.Open(*dbPath)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Println("Failed to close store:", err)
		}
	}()

	if *bench > 0 {
		runBenchmark(store, *bench)
		return
	}

	runREPL(store)
}

func runREPL(store *blockkv.Store) {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: filepath.Join(cwd, "dumbdb_history.txt"),
	})
	if err != nil {
		log.Fatal("Failed to initialize readline:", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Println("Failed to parse command:", err)
			continue
		}

		if err := runCommand(store, cmd, os.Stdout); err != nil {
			fmt.Println("Error:", err)
		}
	}
}

func runCommand(store *blockkv.Store, cmd *Command, w *os.File) error {
	switch {
	case cmd.Set != nil:
		return store.Set(cmd.Set.Key, []byte(cmd.Set.Value))
	case cmd.Get != nil:
		value, found, err := store.Get(cmd.Get.Key)
		if err != nil {
			return err
		}
		printResult(cmd.Get.Key, value, found, w)
		return nil
	default:
		return fmt.Errorf("unhandled command")
	}
}

func printResult(key string, value []byte, found bool, w *os.File) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"key", "value"})
	if found {
		table.Append([]string{key, string(value)})
	} else {
		table.Append([]string{key, "<absent>"})
	}
	table.Render()
}

// runBenchmark mirrors the shape of the original implementation's
// benchmark main(): store a handful of strings of increasing size, then
// time repeated GetInto calls against them.
func runBenchmark(store *blockkv.Store, iterations int) {
	values := map[string][]byte{
		"small":  repeatingDigits(38),
		"medium": repeatingDigits(100),
		"large":  repeatingDigits(200),
	}

	start := time.Now()
	for key, value := range values {
		if err := store.Set(key, value); err != nil {
			log.Fatal("Failed to store benchmark value:", err)
		}
	}
	fmt.Printf("values stored: %v\n", time.Since(start))

	buf := make([]byte, 200)
	start = time.Now()
	for i := 0; i < iterations; i++ {
		for key := range values {
			if _, err := store.GetInto(key, buf); err != nil {
				log.Fatal("Failed to read benchmark value:", err)
			}
		}
	}
	fmt.Printf("values read: %v, iterations: %v\n", time.Since(start), iterations)
}

func repeatingDigits(length int) []byte {
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteString(strconv.Itoa(i % 10))
	}
	return []byte(b.String())
}
