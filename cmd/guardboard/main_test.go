package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guardboard/internal/config"
	appLog "guardboard/internal/log"
)

func writeConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	storage := filepath.Join(dir, "data")
	if backend == "sqlite" {
		storage = filepath.Join(dir, "board.db")
	}
	cfgPath := filepath.Join(dir, "guardboard.yaml")
	yml := "storage:\n  backend: " + backend + "\n  path: " + storage + "\nlog_level: error\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir, cfgPath
}

func TestImportThenExport(t *testing.T) {
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			dir, cfgPath := writeConfig(t, backend)

			in := filepath.Join(dir, "in.csv")
			csv := "type,id,name,date,startDate,endDate\n" +
				"shift,1,Alice,2024-05-01,,\n" +
				"holiday,2,Summer,,2024-07-01,2024-07-14\n" +
				"bogus,3,x,,,\n"
			if err := os.WriteFile(in, []byte(csv), 0o600); err != nil {
				t.Fatal(err)
			}
			if err := runImport([]string{"-config", cfgPath, in}); err != nil {
				t.Fatalf("runImport() error: %v", err)
			}

			out := filepath.Join(dir, "out.csv")
			if err := runExport([]string{"-config", cfgPath, "-o", out}); err != nil {
				t.Fatalf("runExport() error: %v", err)
			}
			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			want := "type,id,name,date,startDate,endDate\n" +
				"shift,1,Alice,2024-05-01,,\n" +
				"holiday,2,Summer,,2024-07-01,2024-07-14\n"
			if string(got) != want {
				t.Errorf("export = %q, want %q", got, want)
			}
		})
	}
}

func TestImportRequiresFile(t *testing.T) {
	_, cfgPath := writeConfig(t, "json")
	if err := runImport([]string{"-config", cfgPath}); err == nil {
		t.Error("expected usage error")
	}
}

func TestOpenStoreLogsLoadOnce(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetLevel(appLog.LevelInfo)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "json"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data")

	_, closer, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	defer closer.Close()

	out := buf.String()
	if n := strings.Count(out, "records loaded"); n != 1 {
		t.Errorf("\"records loaded\" logged %d times:\n%s", n, out)
	}
	if !strings.Contains(out, "store opened") {
		t.Errorf("missing store line:\n%s", out)
	}
}
