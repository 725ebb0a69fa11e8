package results

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestCollectorCollect(t *testing.T) {
	t.Run("copies deliverables and skips excluded paths", func(t *testing.T) {
		work := t.TempDir()
		dest := t.TempDir()
		writeTree(t, work, map[string]string{
			"report.csv":              "a,b\n1,2\n",
			"data/nested/values.json": `{"n":1}`,
			".secret":                 "hidden",
			".git/config":             "[core]",
			"node_modules/pkg/i.js":   "x",
			"build.log":               "noise",
			"scratch.tmp":             "noise",
		})

		c := &Collector{}
		got, err := c.Collect(work, dest)
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}

		want := []string{"data/nested/values.json", "report.csv"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("collected = %v, want %v", got, want)
		}

		data, err := os.ReadFile(filepath.Join(dest, "data", "nested", "values.json"))
		if err != nil {
			t.Fatalf("collected file unreadable: %v", err)
		}
		if string(data) != `{"n":1}` {
			t.Errorf("collected content = %q", data)
		}
		if _, err := os.Stat(filepath.Join(dest, ".secret")); !os.IsNotExist(err) {
			t.Error("dotfile was collected")
		}
	})

	t.Run("custom exclusions", func(t *testing.T) {
		work := t.TempDir()
		writeTree(t, work, map[string]string{
			"keep.json": "{}",
			"drop.csv":  "a,b",
		})

		c := &Collector{Exclusions: []string{".csv"}}
		got, err := c.Collect(work, t.TempDir())
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(got) != 1 || got[0] != "keep.json" {
			t.Errorf("collected = %v, want [keep.json]", got)
		}
	})

	t.Run("missing working directory collects nothing", func(t *testing.T) {
		c := &Collector{}
		got, err := c.Collect(filepath.Join(t.TempDir(), "never-made"), t.TempDir())
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if got != nil {
			t.Errorf("collected = %v, want nil", got)
		}
	})

	t.Run("results directory inside the work directory is not re-collected", func(t *testing.T) {
		work := t.TempDir()
		dest := filepath.Join(work, "_results")
		writeTree(t, work, map[string]string{"out.json": "{}"})

		c := &Collector{}
		if _, err := c.Collect(work, dest); err != nil {
			t.Fatalf("first Collect: %v", err)
		}
		got, err := c.Collect(work, dest)
		if err != nil {
			t.Fatalf("second Collect: %v", err)
		}
		if len(got) != 1 || got[0] != "out.json" {
			t.Errorf("second pass collected = %v, want [out.json]", got)
		}
	})
}
