package validate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"txshield/internal/artifact"
	"txshield/internal/config"
	"txshield/internal/dataset"
)

const schemaYAML = `columns:
  Transaction Amount: float
  Customer Age: int
  Payment Method: category
  Is Fraudulent: int
`

func testSchema(t *testing.T) *Schema {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(schemaYAML), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSchema(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// syntheticFrame builds n rows whose columns match schemaYAML.
func syntheticFrame(n int) *dataset.Frame {
	methods := []string{"card", "paypal", "bank transfer"}
	f := &dataset.Frame{Columns: []string{"Transaction Amount", "Customer Age", "Payment Method", "Is Fraudulent"}}
	for i := 0; i < n; i++ {
		f.Rows = append(f.Rows, []string{
			fmt.Sprintf("%.2f", 10+float64((i*37)%500)),
			fmt.Sprintf("%d", 18+(i*7)%60),
			methods[i%len(methods)],
			fmt.Sprintf("%d", boolInt(i%20 == 0)),
		})
	}
	return f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// reversed has the same empirical distribution as f in every column.
func reversed(f *dataset.Frame) *dataset.Frame {
	out := &dataset.Frame{Columns: slices.Clone(f.Columns)}
	for i := len(f.Rows) - 1; i >= 0; i-- {
		out.Rows = append(out.Rows, slices.Clone(f.Rows[i]))
	}
	return out
}

func TestSchemaValid_AnyDifferenceFails(t *testing.T) {
	s := testSchema(t)
	base := syntheticFrame(3)
	if !SchemaValid(base, s) {
		t.Fatal("matching frame rejected")
	}

	tests := []struct {
		name    string
		columns []string
	}{
		{"missing", []string{"Transaction Amount", "Customer Age", "Payment Method"}},
		{"extra", []string{"Transaction Amount", "Customer Age", "Payment Method", "Is Fraudulent", "IP Address"}},
		{"renamed", []string{"Transaction Amount", "Customer Age", "Payment Method", "Fraud"}},
		{"case", []string{"transaction amount", "Customer Age", "Payment Method", "Is Fraudulent"}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if SchemaValid(&dataset.Frame{Columns: tt.columns}, s) {
				t.Errorf("columns %v accepted", tt.columns)
			}
		})
	}
}

func TestSchemaDiff(t *testing.T) {
	s := testSchema(t)
	d := s.Diff(&dataset.Frame{Columns: []string{"Transaction Amount", "Customer Age", "Zip", "Is Fraudulent"}})
	want := SchemaDiff{Missing: []string{"Payment Method"}, Unexpected: []string{"Zip"}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSchema_MissingColumnsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  a: int\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSchema(path); err == nil {
		t.Fatal("expected error for schema without columns")
	}
}

func TestDetectDrift_IdenticalDistributions(t *testing.T) {
	train := syntheticFrame(200)
	ok, report, err := DetectDrift(train, reversed(train), config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("identical distributions flagged: %v", report.Drifted())
	}
	if len(report) != len(train.Columns) {
		t.Errorf("report has %d entries, want %d", len(report), len(train.Columns))
	}
	for col, d := range report {
		if d.PValue != 1 {
			t.Errorf("%s: p = %v, want 1", col, d.PValue)
		}
	}
}

func normalFrame(n int, seed uint64) *dataset.Frame {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := &dataset.Frame{Columns: []string{"Transaction Amount"}}
	for i := 0; i < n; i++ {
		f.Rows = append(f.Rows, []string{fmt.Sprintf("%.6f", 100+15*r.NormFloat64())})
	}
	return f
}

func TestDetectDrift_SameDistributionAcrossSeeds(t *testing.T) {
	const trials = 20
	flagged := 0
	for seed := uint64(1); seed <= trials; seed++ {
		ok, _, err := DetectDrift(normalFrame(300, seed), normalFrame(300, seed+1000), config.DriftPValueThreshold)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			flagged++
		}
	}
	// Expected false positive rate is the 3% significance level.
	if flagged > 4 {
		t.Errorf("%d of %d same-distribution pairs flagged as drifted", flagged, trials)
	}
}

func TestDetectDrift_SingleColumnFailsAll(t *testing.T) {
	train := syntheticFrame(200)
	test := reversed(train)
	idx := test.Index("Customer Age")
	for _, row := range test.Rows {
		row[idx] = "95"
	}
	ok, report, err := DetectDrift(train, test, config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("drift in one column must fail the dataset pair")
	}
	if diff := cmp.Diff([]string{"Customer Age"}, report.Drifted()); diff != "" {
		t.Errorf("drifted columns (-want +got):\n%s", diff)
	}
}

func TestDetectDrift_SharedColumnsOnly(t *testing.T) {
	train := syntheticFrame(50)
	test := reversed(train).Drop("Payment Method")
	_, report, err := DetectDrift(train, test, config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := report["Payment Method"]; ok {
		t.Error("column absent from current frame was tested")
	}
}

func column(name string, cells ...string) *dataset.Frame {
	f := &dataset.Frame{Columns: []string{name}}
	for _, c := range cells {
		f.Rows = append(f.Rows, []string{c})
	}
	return f
}

func TestDetectDrift_NaNCellsAreMissing(t *testing.T) {
	type result struct {
		report DriftReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		_, report, err := DetectDrift(column("amount", "1", "NaN", "3", "4"), column("amount", "1", "2", "3"), config.DriftPValueThreshold)
		done <- result{report, err}
	}()

	var got result
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DetectDrift did not return on a column holding a NaN cell")
	}
	if got.err != nil {
		t.Fatal(got.err)
	}
	// Same as comparing {1, 3, 4} with {1, 2, 3}.
	want, _, err := DetectDrift(column("amount", "1", "3", "4"), column("amount", "1", "2", "3"), config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got.report); diff != "" {
		t.Errorf("NaN cell not treated as missing (-want +got):\n%s", diff)
	}
}

func TestDetectDrift_AllNaNColumn(t *testing.T) {
	ok, report, err := DetectDrift(column("amount", "nan", "NaN"), column("amount", "NaN"), config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || report["amount"].PValue != 1 {
		t.Errorf("all-missing column: ok=%v report=%v", ok, report)
	}

	ok, report, err = DetectDrift(column("amount", "NaN", "NaN"), column("amount", "1", "2"), config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if ok || !report["amount"].DriftDetected {
		t.Errorf("values against an all-missing column should drift: %v", report)
	}
}

func TestCheck_DriftFailsEvenWhenSchemaPasses(t *testing.T) {
	s := testSchema(t)
	train := syntheticFrame(200)
	test := reversed(train)
	idx := test.Index("Transaction Amount")
	for _, row := range test.Rows {
		row[idx] = "99999"
	}
	d, err := Check(train, test, s, config.DriftPValueThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if !d.SchemaValid() {
		t.Fatal("schema should pass")
	}
	if d.Status() {
		t.Error("status must be false when any column drifts")
	}
}

type fixture struct {
	ingestion *artifact.Ingestion
	cfg       config.Validation
}

func newFixture(t *testing.T, train, test *dataset.Frame) fixture {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaPath, []byte(schemaYAML), 0644); err != nil {
		t.Fatal(err)
	}
	in := &artifact.Ingestion{
		TrainPath:   filepath.Join(dir, "ingest", "train.csv"),
		TestPath:    filepath.Join(dir, "ingest", "test.csv"),
		ArtifactDir: filepath.Join(dir, "ingest"),
	}
	if err := train.WriteCSV(in.TrainPath); err != nil {
		t.Fatal(err)
	}
	if err := test.WriteCSV(in.TestPath); err != nil {
		t.Fatal(err)
	}
	vdir := filepath.Join(dir, "data_validation")
	return fixture{ingestion: in, cfg: config.Validation{
		SchemaPath:       schemaPath,
		Dir:              vdir,
		ValidTrainPath:   filepath.Join(vdir, "valid", "train.csv"),
		ValidTestPath:    filepath.Join(vdir, "valid", "test.csv"),
		InvalidTrainPath: filepath.Join(vdir, "invalid", "train.csv"),
		InvalidTestPath:  filepath.Join(vdir, "invalid", "test.csv"),
		DriftReportPath:  filepath.Join(vdir, "drift_report", "report.yaml"),
		DriftThreshold:   config.DriftPValueThreshold,
	}}
}

func TestInitiate_PassingPair(t *testing.T) {
	train := syntheticFrame(120)
	fx := newFixture(t, train, reversed(train))

	got, err := New(fx.ingestion, fx.cfg).Initiate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := &artifact.Validation{
		Status:          true,
		ValidTrainPath:  fx.cfg.ValidTrainPath,
		ValidTestPath:   fx.cfg.ValidTestPath,
		DriftReportPath: fx.cfg.DriftReportPath,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("artifact mismatch (-want +got):\n%s", diff)
	}
	for _, p := range []string{got.ValidTrainPath, got.ValidTestPath, got.DriftReportPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(fx.cfg.InvalidTrainPath); !os.IsNotExist(err) {
		t.Error("invalid snapshot written for a passing pair")
	}

	report, err := artifact.ReadYAML[DriftReport](got.DriftReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(*report) != 4 {
		t.Errorf("drift report has %d columns, want 4", len(*report))
	}
	saved, err := artifact.Load[artifact.Validation](fx.cfg.Dir)
	if err != nil || saved == nil {
		t.Fatalf("artifact record not persisted: %v", err)
	}
}

func TestInitiate_MissingColumnFailsOnSchema(t *testing.T) {
	train := syntheticFrame(120)
	test := reversed(train).Drop("Payment Method")
	fx := newFixture(t, train, test)

	got, err := New(fx.ingestion, fx.cfg).Initiate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status {
		t.Fatal("expected validation failure")
	}
	if err := got.Check(); err != nil {
		t.Error(err)
	}
	if got.ValidTrainPath != "" || got.InvalidTrainPath != fx.cfg.InvalidTrainPath {
		t.Errorf("unexpected paths: %+v", got)
	}
	report, err := artifact.ReadYAML[DriftReport](got.DriftReportPath)
	if err != nil {
		t.Fatalf("drift report must be written on failure: %v", err)
	}
	if drifted := report.Drifted(); len(drifted) != 0 {
		t.Errorf("failure should come from schema alone, drifted: %v", drifted)
	}
	if _, err := os.Stat(fx.cfg.InvalidTestPath); err != nil {
		t.Errorf("invalid snapshot missing: %v", err)
	}
}

func TestInitiate_UnreadableInputIsStageError(t *testing.T) {
	train := syntheticFrame(10)
	fx := newFixture(t, train, train)
	if err := os.Remove(fx.ingestion.TestPath); err != nil {
		t.Fatal(err)
	}
	_, err := New(fx.ingestion, fx.cfg).Initiate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	stage, ok := artifact.FailedStage(err)
	if !ok || stage != artifact.StageValidation {
		t.Errorf("error not attributed to validation: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cause lost: %v", err)
	}
}
