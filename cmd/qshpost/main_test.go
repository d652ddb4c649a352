package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/config"
	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func readCSV(t *testing.T, s string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestOutputFlagDefaults(t *testing.T) {
	root := newRootCmd()
	for name, want := range map[string]string{
		"grid":      "grid.json.zst",
		"axis":      "",
		"check-log": "",
	} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if got := cmd.Flags().Lookup("out").Value.String(); got != want {
			t.Errorf("%s --out = %q, want %q", name, got, want)
		}
	}
	if gridOut != "grid.json.zst" {
		t.Errorf("gridOut = %q after registering every command", gridOut)
	}
}

func TestGridWritesDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := execute(t, "grid"); err != nil {
		t.Fatalf("grid: %v", err)
	}
	g, err := storage.ReadGrid("grid.json.zst")
	if err != nil {
		t.Fatalf("ReadGrid: %v", err)
	}
	sp := g.Spec()
	if sp.NS != config.DefaultGridNS || sp.NTheta != config.DefaultGridNT || sp.NZeta != config.DefaultGridNZ {
		t.Errorf("grid nodes %d x %d x %d, want the defaults", sp.NS, sp.NTheta, sp.NZeta)
	}
}

// writeConfig saves a default config whose store lives under dir.
func writeConfig(t *testing.T, dir string) (path, store string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store = filepath.Join(dir, "runs")
	path = filepath.Join(dir, "qshpost.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	return path, cfg.Store
}

func newRun(t *testing.T, store string, save func(*storage.Run) error) string {
	t.Helper()
	st := storage.New(store)
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	run, err := st.Create("cross")
	if err != nil {
		t.Fatal(err)
	}
	if err := save(run); err != nil {
		t.Fatal(err)
	}
	if err := run.Close(); err != nil {
		t.Fatal(err)
	}
	return run.Meta.ID
}

func TestListUsesConfiguredStore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath, store := writeConfig(t, dir)
	id := newRun(t, store, func(*storage.Run) error { return nil })

	out, err := execute(t, "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("list output does not mention %s:\n%s", id, out)
	}

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "no runs found") {
		t.Errorf("default store should be empty, got:\n%s", out)
	}
}

func TestExportCurve(t *testing.T) {
	dir := t.TempDir()
	cfgPath, store := writeConfig(t, dir)
	c, err := fourier.NewCurve([]int{0, 1}, []float64{3, 1}, []float64{0, 0}, []float64{0, 0}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	id := newRun(t, store, func(r *storage.Run) error { return r.SaveCurve("cross_0", c) })

	out, err := execute(t, "export-csv", id, "--config", cfgPath, "--curve", "cross_0", "--samples", "8")
	if err != nil {
		t.Fatalf("export-csv: %v", err)
	}
	rows := readCSV(t, out)
	if len(rows) != 9 {
		t.Fatalf("expected header + 8 rows, got %d", len(rows))
	}
	if d := cmp.Diff([]string{"angle", "R", "Z", "dR", "dZ"}, rows[0]); d != "" {
		t.Errorf("header mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]string{"0", "4", "0", "0", "1"}, rows[1]); d != "" {
		t.Errorf("first sample mismatch (-want +got):\n%s", d)
	}
}

func TestExportAxis(t *testing.T) {
	store := filepath.Join(t.TempDir(), "runs")
	a, err := axis.New(equil.Point3{}, []int{0}, []float64{3}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	id := newRun(t, store, func(r *storage.Run) error { return r.SaveAxis("axis", a) })

	out, err := execute(t, "export-csv", id, "--data", store, "--axis", "axis", "--samples", "4")
	if err != nil {
		t.Fatalf("export-csv: %v", err)
	}
	rows := readCSV(t, out)
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(rows))
	}
	for _, row := range rows[1:] {
		if row[1] != "3" || row[2] != "0" {
			t.Errorf("axis sample %v, want R=3 Z=0", row)
		}
	}

	if _, err := execute(t, "export-csv", id, "--data", store, "--axis", "axis", "--curve", "cross_0"); err == nil {
		t.Error("--axis and --curve together should be rejected")
	}
}
