package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/ohler55/ojg/oj"
	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/litedoc"
	"github.com/kartikbazzad/litedoc/internal/config"
	"github.com/kartikbazzad/litedoc/internal/logger"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file (optional)")
	dbPath := flag.String("db", "", "Database file (overrides config)")
	table := flag.String("table", "", "Document table (overrides config)")
	traceSQL := flag.Bool("trace-sql", false, "Log every executed statement")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *table != "" {
		cfg.Table = *table
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *traceSQL {
		cfg.TraceSQL = true
	}

	logr := logger.Default()
	logr.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logr.SetTraceSQL(cfg.TraceSQL)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "insert":
		err = runInsert(cfg, logr, args[1:])
	case "dump":
		err = runDump(cfg, logr, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: litedoc [flags] <command> [command flags] [args]

Commands:
  insert [files...]   Insert JSON/JSONL documents (stdin when no files)
  dump [file]         Dump every document as JSONL (stdout when no file)

Flags:
`)
	flag.PrintDefaults()
}

func runInsert(cfg *config.Config, logr *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	duplicates := fs.String("duplicates", "error", "On unique collision: error, replace or ignore")
	workers := fs.Int("workers", cfg.Import.Workers, "Validation worker count")
	batchSize := fs.Int("batch", cfg.Import.BatchSize, "Documents per transaction")
	fs.Parse(args)

	policy := litedoc.ParseConflictPolicy(*duplicates)

	d, err := litedoc.Open(cfg.DBPath, &litedoc.Options{
		Table:      cfg.Table,
		DisableWAL: cfg.DisableWAL,
		Logger:     logr,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	var lines []string
	if len(fs.Args()) == 0 {
		lines, err = readDocuments(os.Stdin, "stdin")
		if err != nil {
			return err
		}
	} else {
		for _, path := range fs.Args() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			fileLines, err := readDocuments(f, path)
			f.Close()
			if err != nil {
				return err
			}
			lines = append(lines, fileLines...)
		}
	}

	if err := validateLines(lines, *workers); err != nil {
		return err
	}

	for start := 0; start < len(lines); start += *batchSize {
		end := start + *batchSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := d.InsertManyRaw(policy, lines[start:end]...); err != nil {
			return fmt.Errorf("insert batch at line %d: %w", start+1, err)
		}
	}
	logr.Info("inserted %d documents", len(lines))
	return nil
}

// readDocuments reads one JSON document per line. Lines holding only "[" or
// "]" are skipped and trailing commas stripped, so a pretty-printed JSON
// array with one object per line imports like JSONL.
func readDocuments(r io.Reader, name string) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s line %d: %w", name, lineNo, err)
	}
	return out, nil
}

// validateLines parses every line on a worker pool so malformed input fails
// before the first transaction opens.
func validateLines(lines []string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, line := range lines {
		i, line := i, line
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if _, err := oj.ParseString(line); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("document %d is not valid JSON: %w", i+1, err)
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
	}
	wg.Wait()
	return firstErr
}

func runDump(cfg *config.Config, logr *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Parse(args)

	d, err := litedoc.ReadOnly(cfg.DBPath, &litedoc.Options{
		Table:  cfg.Table,
		Logger: logr,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	out := os.Stdout
	if len(fs.Args()) > 0 {
		f, err := os.Create(fs.Args()[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()
	return d.DumpJSONL(w)
}
