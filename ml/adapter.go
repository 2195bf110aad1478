package ml

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Observer receives inference events, typically a metrics sink.
type Observer interface {
	ObservePrediction(result PredictionResult, elapsed time.Duration)
	ObservePredictionError()
	ObserveEncoding(report EncodingReport)
}

type nopObserver struct{}

func (nopObserver) ObservePrediction(PredictionResult, time.Duration) {}
func (nopObserver) ObservePredictionError() {}
func (nopObserver) ObserveEncoding(EncodingReport) {}

// Prediction is a scored request together with how its input was encoded.
type Prediction struct {
	PredictionResult
	Message string         `json:"message"`
	Report  EncodingReport `json:"encoding"`
}

// Adapter owns a loaded classifier and its schema. It is immutable after construction
// and safe for concurrent use, given a Classifier that is safe for concurrent scoring.
type Adapter struct {
	modelType  string
	classifier Classifier
	schema     FeatureSchema
	// uncollected holds schema features the form never produces.
	uncollected map[string]struct{}
	logger      *zap.Logger
	observer    Observer
}

type AdapterOption func(*Adapter)

func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithObserver(observer Observer) AdapterOption {
	return func(a *Adapter) {
		if observer != nil {
			a.observer = observer
		}
	}
}

// NewAdapter reads the classifier's schema once and keeps it alongside the model.
func NewAdapter(modelType string, classifier Classifier, opts ...AdapterOption) (*Adapter, error) {
	schema, err := ExpectedSchema(classifier)
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		modelType:  modelType,
		classifier: classifier,
		schema:     schema,
		logger:     zap.NewNop(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Info("classifier loaded",
		zap.String("model_type", modelType),
		zap.Int("features", len(schema)),
	)
	a.uncollected = a.reportUncollected()
	return a, nil
}

// OpenAdapter loads an artifact and wraps it in an Adapter.
func OpenAdapter(modelType, path string, opts ...AdapterOption) (*Adapter, error) {
	classifier, err := LoadClassifier(modelType, path)
	if err != nil {
		return nil, err
	}
	return NewAdapter(modelType, classifier, opts...)
}

func (a *Adapter) ModelType() string {
	return a.modelType
}

// Schema returns a copy of the expected feature order.
func (a *Adapter) Schema() FeatureSchema {
	return append(FeatureSchema(nil), a.schema...)
}

// Encode aligns raw to the adapter's schema.
func (a *Adapter) Encode(raw RawInput) (EncodedInput, error) {
	return Encode(raw, a.schema)
}

// Predict encodes and scores one record. Zero-filled features and unknown categories
// are logged and observed but do not fail the request.
func (a *Adapter) Predict(ctx context.Context, raw RawInput) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	encoded, err := Encode(raw, a.schema)
	if err != nil {
		a.observer.ObservePredictionError()
		return Prediction{}, err
	}
	a.observer.ObserveEncoding(encoded.Report)
	zeroFilled := a.requestZeroFills(encoded.Report)
	if len(zeroFilled) > 0 || len(encoded.Report.UnknownCategories) > 0 || len(encoded.Report.InvalidNumbers) > 0 {
		a.logger.Warn("input degraded during encoding",
			zap.Strings("zero_filled", zeroFilled),
			zap.Any("unknown_categories", encoded.Report.UnknownCategories),
			zap.Strings("invalid_numbers", encoded.Report.InvalidNumbers),
		)
	}
	if len(encoded.Report.Dropped) > 0 || len(encoded.Report.Ignored) > 0 {
		a.logger.Debug("input fields not used by the model",
			zap.Strings("dropped", encoded.Report.Dropped),
			zap.Strings("ignored", encoded.Report.Ignored),
		)
	}

	start := time.Now()
	result, err := Predict(a.classifier, encoded)
	if err != nil {
		a.observer.ObservePredictionError()
		a.logger.Error("prediction failed", zap.Error(err))
		return Prediction{}, err
	}
	a.observer.ObservePrediction(result, time.Since(start))

	return Prediction{
		PredictionResult: result,
		Message:          result.Message(),
		Report:           encoded.Report,
	}, nil
}

// requestZeroFills returns the zero-filled features caused by this request's input
// rather than by the form never collecting them.
func (a *Adapter) requestZeroFills(report EncodingReport) []string {
	var out []string
	for _, feature := range report.ZeroFilled {
		if _, ok := a.uncollected[feature]; !ok {
			out = append(out, feature)
		}
	}
	return out
}

// reportUncollected logs schema features a fully populated form still leaves at zero
// and returns them.
func (a *Adapter) reportUncollected() map[string]struct{} {
	encoded, err := Encode(DefaultForm().Defaults(), a.schema)
	if err != nil {
		return nil
	}
	uncollected := make(map[string]struct{}, len(encoded.Report.ZeroFilled))
	for _, feature := range encoded.Report.ZeroFilled {
		uncollected[feature] = struct{}{}
	}
	if len(encoded.Report.ZeroFilled) > 0 {
		a.logger.Warn("model features not collected by the form are always zero",
			zap.Strings("features", encoded.Report.ZeroFilled),
		)
	}
	if len(encoded.Report.Dropped) > 0 {
		a.logger.Warn("form features unknown to the model are dropped",
			zap.Strings("features", encoded.Report.Dropped),
		)
	}
	if len(encoded.Report.Aliased) > 0 {
		a.logger.Warn("form features written under underscore schema names",
			zap.Any("aliases", encoded.Report.Aliased),
		)
	}
	return uncollected
}
