package ml

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingObserver struct {
	mu          sync.Mutex
	predictions []PredictionResult
	errors      int
	reports     []EncodingReport
}

func (r *recordingObserver) ObservePrediction(result PredictionResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions = append(r.predictions, result)
}

func (r *recordingObserver) ObservePredictionError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func (r *recordingObserver) ObserveEncoding(report EncodingReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func newTestAdapter(t *testing.T, classifier Classifier) (*Adapter, *observer.ObservedLogs, *recordingObserver) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	obs := &recordingObserver{}
	adapter, err := NewAdapter("stub", classifier, WithLogger(zap.New(core)), WithObserver(obs))
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter, logs, obs
}

func TestAdapterPredict(t *testing.T) {
	classifier := &stubClassifier{names: fullSchema(), proba: 0.72}
	adapter, logs, obs := newTestAdapter(t, classifier)

	raw := DefaultForm().Defaults()
	raw["OverTime"] = "Yes"
	prediction, err := adapter.Predict(context.Background(), raw)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if prediction.Label != LabelAttrition || prediction.Message != "High Attrition Risk! Probability: 0.72" {
		t.Fatalf("unexpected prediction %+v", prediction)
	}
	if len(obs.predictions) != 1 || len(obs.reports) != 1 {
		t.Fatalf("observer saw %d predictions, %d reports", len(obs.predictions), len(obs.reports))
	}
	if n := logs.FilterMessage("input degraded during encoding").Len(); n != 0 {
		t.Fatalf("unexpected degradation warnings: %d", n)
	}
	if n := logs.FilterMessage("classifier loaded").Len(); n != 1 {
		t.Fatalf("expected one load log, got %d", n)
	}
}

func TestAdapterDiagnostics(t *testing.T) {
	schema := append(fullSchema(), "JobLevel")
	adapter, logs, obs := newTestAdapter(t, &stubClassifier{names: schema, proba: 0.2})

	if n := logs.FilterMessage("model features not collected by the form are always zero").Len(); n != 1 {
		t.Fatalf("expected one uncollected-feature warning at load, got %d", n)
	}

	if _, err := adapter.Predict(context.Background(), DefaultForm().Defaults()); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if n := logs.FilterMessage("input degraded during encoding").Len(); n != 0 {
		t.Fatalf("uncollected features must not warn per request, got %d", n)
	}

	raw := DefaultForm().Defaults()
	raw["Department"] = "Marketing"
	prediction, err := adapter.Predict(context.Background(), raw)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if prediction.Report.UnknownCategories["Department"] != "Marketing" {
		t.Fatalf("report = %+v", prediction.Report)
	}
	warnings := logs.FilterMessage("input degraded during encoding").All()
	if len(warnings) != 1 {
		t.Fatalf("expected one degradation warning, got %d", len(warnings))
	}
	if _, ok := warnings[0].ContextMap()["unknown_categories"]; !ok {
		t.Fatalf("warning lacks unknown_categories: %v", warnings[0].ContextMap())
	}
	if len(obs.reports) != 2 {
		t.Fatalf("observer saw %d reports, want 2", len(obs.reports))
	}
}

func TestAdapterScoringError(t *testing.T) {
	adapter, logs, obs := newTestAdapter(t, &stubClassifier{names: fullSchema(), proba: 2})

	_, err := adapter.Predict(context.Background(), DefaultForm().Defaults())
	if !errors.Is(err, ErrInvalidProbability) {
		t.Fatalf("err = %v, want ErrInvalidProbability", err)
	}
	if obs.errors != 1 || len(obs.predictions) != 0 {
		t.Fatalf("observer errors = %d, predictions = %d", obs.errors, len(obs.predictions))
	}
	if logs.FilterMessage("prediction failed").Len() != 1 {
		t.Fatal("expected a prediction failed log")
	}
}

func TestAdapterCanceledContext(t *testing.T) {
	classifier := &stubClassifier{names: fullSchema(), proba: 0.2}
	adapter, _, _ := newTestAdapter(t, classifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := adapter.Predict(ctx, DefaultForm().Defaults()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if classifier.last != nil {
		t.Fatal("classifier must not be called after cancellation")
	}
}

func TestNewAdapterRejectsEmptySchema(t *testing.T) {
	_, err := NewAdapter("stub", &stubClassifier{})
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
}

func TestOpenAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := overtimeTree(t).Save(path); err != nil {
		t.Fatal(err)
	}
	adapter, err := OpenAdapter(ModelTypeDecisionTree, path)
	if err != nil {
		t.Fatalf("OpenAdapter: %v", err)
	}
	if adapter.ModelType() != ModelTypeDecisionTree {
		t.Fatalf("model type = %q", adapter.ModelType())
	}
	schema := adapter.Schema()
	schema[0] = "changed"
	if adapter.Schema()[0] != "Age" {
		t.Fatal("Schema returned an alias")
	}

	raw := DefaultForm().Defaults()
	raw["OverTime"] = "Yes"
	raw["Age"] = 25
	prediction, err := adapter.Predict(context.Background(), raw)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if prediction.Probability != 0.8 || prediction.Label != LabelAttrition {
		t.Fatalf("unexpected prediction %+v", prediction)
	}

	if _, err := OpenAdapter(ModelTypeDecisionTree, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestAdapterConcurrentPredict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := overtimeTree(t).Save(path); err != nil {
		t.Fatal(err)
	}
	adapter, err := OpenAdapter(ModelTypeDecisionTree, path)
	if err != nil {
		t.Fatal(err)
	}

	raw := DefaultForm().Defaults()
	raw["OverTime"] = "Yes"
	want, err := adapter.Predict(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]Prediction, 32)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = adapter.Predict(context.Background(), raw)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if results[i].PredictionResult != want.PredictionResult {
			t.Fatalf("goroutine %d: %+v != %+v", i, results[i].PredictionResult, want.PredictionResult)
		}
	}
}

func TestAdapterLogsUnderscoreAliasesOnce(t *testing.T) {
	schema := FeatureSchema{}
	for _, name := range fullSchema() {
		schema = append(schema, strings.ReplaceAll(name, " ", "_"))
	}
	adapter, logs, _ := newTestAdapter(t, &stubClassifier{names: schema, proba: 0.3})

	const msg = "form features written under underscore schema names"
	entries := logs.FilterMessage(msg).All()
	if len(entries) != 1 {
		t.Fatalf("expected one alias warning at load, got %d", len(entries))
	}
	aliases, ok := entries[0].ContextMap()["aliases"].(map[string]string)
	if !ok || aliases["BusinessTravel_Non-Travel"] != "" || aliases["Department_Human Resources"] != "Department_Human_Resources" {
		t.Fatalf("unexpected alias field %v", entries[0].ContextMap())
	}

	for i := 0; i < 3; i++ {
		if _, err := adapter.Predict(context.Background(), DefaultForm().Defaults()); err != nil {
			t.Fatalf("Predict: %v", err)
		}
	}
	if n := logs.FilterMessage(msg).Len(); n != 1 {
		t.Fatalf("alias warning repeated per request: %d", n)
	}
}
