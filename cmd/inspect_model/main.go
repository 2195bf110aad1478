package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"attrition/logger"
	"attrition/ml"
)

func main() {
	modelType := flag.String("type", ml.ModelTypeLightGBM, "artifact format: "+strings.Join(ml.SupportedModelTypes(), ", "))
	modelPath := flag.String("model_path", "models/attrition_lgbm.json", "model artifact path")
	inputPath := flag.String("input", "", "JSON record to score; form defaults when empty")
	showSchema := flag.Bool("schema", false, "print every feature name")
	flag.Parse()

	if err := inspect(os.Stdout, *modelType, *modelPath, *inputPath, *showSchema); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspect(out io.Writer, modelType, modelPath, inputPath string, showSchema bool) error {
	log, err := logger.New(logger.Config{Level: "warn", Format: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	adapter, err := ml.OpenAdapter(modelType, modelPath, ml.WithLogger(log))
	if err != nil {
		return err
	}
	schema := adapter.Schema()
	fmt.Fprintf(out, "model:    %s (%s)\n", modelPath, adapter.ModelType())
	fmt.Fprintf(out, "features: %d\n", len(schema))
	if showSchema {
		for i, name := range schema {
			fmt.Fprintf(out, "  %3d %s\n", i, name)
		}
	}

	form := ml.DefaultForm()
	raw := form.Defaults()
	if inputPath != "" {
		record, err := readRecord(inputPath)
		if err != nil {
			return err
		}
		if err := form.Validate(record); err != nil {
			return err
		}
		raw = form.Fill(record)
	}

	prediction, err := adapter.Predict(context.Background(), raw)
	if err != nil {
		return err
	}
	report := prediction.Report
	fmt.Fprintf(out, "zero-filled: %d %v\n", len(report.ZeroFilled), report.ZeroFilled)
	fmt.Fprintf(out, "dropped:     %d %v\n", len(report.Dropped), report.Dropped)
	fmt.Fprintf(out, "prediction:  label=%d %s\n", prediction.Label, prediction.Message)
	return nil
}

func readRecord(path string) (ml.RawInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.UseNumber()
	var record ml.RawInput
	if err := decoder.Decode(&record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return record, nil
}
