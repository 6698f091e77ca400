package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/kartikbazzad/litedoc"
	"github.com/kartikbazzad/litedoc/internal/config"
	"github.com/kartikbazzad/litedoc/internal/logger"
)

type session struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *litedoc.DB
	out      io.Writer
	commands map[string]command
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file (optional)")
	dbPath := flag.String("db", "", "Database file to open on start")
	table := flag.String("table", "", "Document table (overrides config)")
	traceSQL := flag.Bool("trace-sql", false, "Log every executed statement")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *table != "" {
		cfg.Table = *table
	}

	logr := logger.Default()
	logr.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logr.SetTraceSQL(*traceSQL || cfg.TraceSQL)

	s := &session{
		cfg:      cfg,
		log:      logr,
		out:      os.Stdout,
		commands: commandTable(),
	}
	defer func() {
		if s.db != nil {
			s.db.Close()
		}
	}()

	if *dbPath != "" {
		if err := s.cmdOpen([]string{*dbPath}); err != nil {
			log.Fatalf("Failed to open %s: %v", *dbPath, err)
		}
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	if cfg.History != "" {
		if f, err := os.Open(cfg.History); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Println("litedoc shell. Type .help for commands, .quit to exit.")
	for {
		input, err := line.Prompt("litedoc> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Read error: %v", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == ".quit" || input == ".exit" {
			break
		}
		if err := s.dispatch(input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	if cfg.History != "" {
		if f, err := os.Create(cfg.History); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
}

func (s *session) dispatch(input string) error {
	fields := strings.Fields(input)
	cmd, ok := s.commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %q; try .help", fields[0])
	}
	return cmd.handler(s, fields[1:])
}

func (s *session) complete(line string) []string {
	var out []string
	for name := range s.commands {
		if strings.HasPrefix(name, line) {
			out = append(out, name+" ")
		}
	}
	if strings.HasPrefix(".quit", line) {
		out = append(out, ".quit")
	}
	sort.Strings(out)
	return out
}
