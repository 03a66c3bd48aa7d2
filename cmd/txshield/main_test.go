package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"txshield/internal/ledger"
)

var rawHeader = []string{
	"Transaction ID", "Customer ID", "Transaction Amount", "Transaction Date",
	"Payment Method", "Product Category", "Quantity", "Customer Age",
	"Customer Location", "Device Used", "IP Address", "Shipping Address",
	"Billing Address", "Is Fraudulent", "Account Age Days", "Transaction Hour",
}

// workspace writes a raw export, a schema that omits Billing Address, and a
// settings file pointing at both, then chdirs into it.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	var raw strings.Builder
	raw.WriteString(strings.Join(rawHeader, ",") + "\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&raw, "tx-%d,c-%d,%d.50,2024-03-01,card,toys,%d,%d,Springfield,mobile,10.0.0.1,1 Main St,1 Main St,%d,%d,%d\n",
			i, i, 10+i*7, 1+i%3, 20+i%40, boolInt(i%5 == 0), 5+i*3, i%24)
	}
	writeFile(t, filepath.Join(dir, "data", "raw.csv"), raw.String())

	var schema strings.Builder
	schema.WriteString("columns:\n")
	for _, c := range rawHeader {
		if c != "Billing Address" {
			fmt.Fprintf(&schema, "  %s: string\n", c)
		}
	}
	writeFile(t, filepath.Join(dir, "schema.yaml"), schema.String())

	writeFile(t, filepath.Join(dir, "txshield.yaml"), `artifact_root: artifacts
ingestion:
  raw_data_path: data/raw.csv
validation:
  schema_path: schema.yaml
ledger:
  path: state/runs.db
metrics:
  textfile_path: state/txshield.prom
log:
  level: error
`)
	return dir
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStatus_NoRuns(t *testing.T) {
	workspace(t)
	out, err := execute(t, "status", "--run-id=")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No run state for latest") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_SchemaMismatchIsGateFailure(t *testing.T) {
	dir := workspace(t)

	out, err := execute(t, "run")
	var ge *gateError
	if !errors.As(err, &ge) {
		t.Fatalf("run err = %v, want a gate failure\n%s", err, out)
	}
	if !strings.Contains(out, "validation_failed") || !strings.Contains(out, "report.yaml") {
		t.Errorf("output should name the outcome and drift report:\n%s", out)
	}
	if _, err := os.Lstat(filepath.Join(dir, "artifacts", "latest")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("latest created by a failed run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "state", "txshield.prom")); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}

	l, err := ledger.Open(filepath.Join(dir, "state", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	runs, err := l.ListRuns(0)
	l.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("ledger runs = %v, %v", runs, err)
	}
	if runs[0].Outcome != "validation_failed" || runs[0].FailedStage != "data_validation" {
		t.Errorf("ledger run = %+v", runs[0])
	}

	out, err = execute(t, "runs", "--limit=5")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, runs[0].ID) || !strings.Contains(out, "validation_failed") {
		t.Errorf("runs output = %q", out)
	}

	out, err = execute(t, "status", "--run-id="+runs[0].ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Status:  validation_failed") || !strings.Contains(out, "schema_and_drift") {
		t.Errorf("status output = %q", out)
	}
}

func TestValidate_ReportsFailure(t *testing.T) {
	workspace(t)
	out, err := execute(t, "validate", "--raw-data=data/raw.csv")
	var ge *gateError
	if !errors.As(err, &ge) {
		t.Fatalf("validate err = %v, want a gate failure", err)
	}
	if !strings.Contains(out, "Status:       fail") {
		t.Errorf("output = %q", out)
	}
}
