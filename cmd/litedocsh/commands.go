package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/kartikbazzad/litedoc"
	"github.com/kartikbazzad/litedoc/query"
)

type command struct {
	usage   string
	help    string
	handler func(s *session, args []string) error
}

func commandTable() map[string]command {
	return map[string]command{
		".help": {
			usage: ".help",
			help:  "Show this help",
			handler: func(s *session, args []string) error {
				s.printHelp()
				return nil
			},
		},
		".open": {
			usage:   ".open <path>",
			help:    "Open (or create) a database file",
			handler: (*session).cmdOpen,
		},
		".count": {
			usage:   ".count [cond...]",
			help:    "Count documents matching all conditions",
			handler: (*session).cmdCount,
		},
		".find": {
			usage:   ".find [cond...]",
			help:    "Print matching documents (cond: key=v key!=v key<v key~re key?)",
			handler: (*session).cmdFind,
		},
		".get": {
			usage:   ".get <rowid>",
			help:    "Print the document stored under a rowid",
			handler: (*session).cmdGet,
		},
		".keys": {
			usage:   ".keys",
			help:    "List keys across all documents with counts",
			handler: (*session).cmdKeys,
		},
		".indexes": {
			usage:   ".indexes",
			help:    "List JSON path indexes",
			handler: (*session).cmdIndexes,
		},
		".index": {
			usage:   ".index [-u] <path> [path...]",
			help:    "Create an index over paths (-u: unique)",
			handler: (*session).cmdIndex,
		},
		".drop-index": {
			usage:   ".drop-index <name>",
			help:    "Drop an index by name",
			handler: (*session).cmdDropIndex,
		},
		".about": {
			usage:   ".about",
			help:    "Show database metadata",
			handler: (*session).cmdAbout,
		},
		".dump": {
			usage:   ".dump [file]",
			help:    "Dump all documents as JSONL",
			handler: (*session).cmdDump,
		},
	}
}

func (s *session) printHelp() {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.commands[name]
		fmt.Fprintf(s.out, "  %-28s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(s.out, "  %-28s %s\n", ".quit", "Exit the shell")
}

func (s *session) needDB() error {
	if s.db == nil {
		return fmt.Errorf("no database open; use .open <path>")
	}
	return nil
}

func (s *session) cmdOpen(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: .open <path>")
	}
	d, err := litedoc.Open(args[0], &litedoc.Options{
		Table:  s.cfg.Table,
		Logger: s.log,
	})
	if err != nil {
		return err
	}
	if s.db != nil {
		s.db.Close()
	}
	s.db = d
	fmt.Fprintf(s.out, "opened %s (table %s)\n", args[0], d.Table())
	return nil
}

func (s *session) cmdCount(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	e, err := parseConditions(args)
	if err != nil {
		return err
	}
	n, err := s.db.Count(e)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, n)
	return nil
}

func (s *session) cmdFind(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	e, err := parseConditions(args)
	if err != nil {
		return err
	}
	rows, err := s.db.Query(e)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		row := rows.Row()
		fmt.Fprintf(s.out, "%d\t%s\n", row.ID, oj.JSON(row.Value))
	}
	return rows.Err()
}

func (s *session) cmdGet(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: .get <rowid>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("rowid must be an integer: %q", args[0])
	}
	row, err := s.db.GetByRowID(id)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("no document under rowid %d", id)
	}
	fmt.Fprintln(s.out, oj.JSON(row.Value))
	return nil
}

func (s *session) cmdKeys(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	counts, err := s.db.PathCounts()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "%-24s %d\n", k, counts[k])
	}
	return nil
}

func (s *session) cmdIndexes(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	indexes, err := s.db.Indexes()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "%s\t%s\n", name, strings.Join(indexes[name], ", "))
	}
	return nil
}

func (s *session) cmdIndex(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	unique := false
	if len(args) > 0 && args[0] == "-u" {
		unique = true
		args = args[1:]
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: .index [-u] <path> [path...]")
	}
	paths := make([]query.Path, 0, len(args))
	for _, a := range args {
		p, err := query.Parse(a)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}
	name, err := s.db.CreateIndex(unique, paths...)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, name)
	return nil
}

func (s *session) cmdDropIndex(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: .drop-index <name>")
	}
	return s.db.DropIndexByName(args[0])
}

func (s *session) cmdAbout(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	about, err := s.db.About()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(about))
	for k := range about {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "%-12s %s\n", k, about[k])
	}
	return nil
}

func (s *session) cmdDump(args []string) error {
	if err := s.needDB(); err != nil {
		return err
	}
	if len(args) == 0 {
		return s.db.DumpJSONL(s.out)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return s.db.DumpJSONL(f)
}
