package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxthresh/pkg/threshold"
)

// TraceFileName is the file a trace table is written to: <name>_<table>.csv.
func TraceFileName(name, table string) string {
	return fmt.Sprintf("%s_%s.csv", sanitize(name), table)
}

// WriteTrace writes every table of tr into dir and returns the file paths.
func WriteTrace(dir, name string, tr threshold.Trace) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	var paths []string
	for _, t := range tr.Tables {
		path := filepath.Join(dir, TraceFileName(name, t.Name))
		if err := writeTable(path, t); err != nil {
			return paths, fmt.Errorf("failed to write trace %s: %w", t.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTable(path string, t *threshold.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sanitize keeps file names on a single path level.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "volume"
	}
	return name
}
