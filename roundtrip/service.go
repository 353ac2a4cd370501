package roundtrip

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/compat"
	"github.com/hazyhaar/fidelity/oxml"
	"github.com/hazyhaar/fidelity/semdiff"
	"github.com/hazyhaar/fidelity/store"
	"github.com/hazyhaar/fidelity/tolerance"
)

// Service is the main roundtrip orchestrator.
type Service struct {
	registry *tolerance.Config
	runs     *store.Store
	logger   *slog.Logger
	config   *Config
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithStore enables run persistence and profile reloading.
func WithStore(s *store.Store) ServiceOption {
	return func(svc *Service) { svc.runs = s }
}

// WithRegistry replaces the default tolerance registry.
func WithRegistry(reg *tolerance.Config) ServiceOption {
	return func(svc *Service) { svc.registry = reg }
}

// New creates a roundtrip Service.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		registry: tolerance.NewConfig(),
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.runs != nil {
		loaded, errs := svc.runs.LoadProfiles(svc.registry)
		for _, err := range errs {
			logger.Warn("profile record skipped", "error", err)
		}
		if loaded > 0 {
			logger.Info("custom profiles loaded", "count", loaded)
		}
	}
	return svc, nil
}

// Registry exposes the tolerance profile registry.
func (s *Service) Registry() *tolerance.Config { return s.registry }

// ComparisonResult is the full outcome of verifying one document pair.
type ComparisonResult struct {
	DocType     oxml.DocType                 `json:"doc_type"`
	Profile     string                       `json:"profile"`
	Differences []semdiff.SemanticDifference `json:"differences"`
	Summary     semdiff.DiffSummary          `json:"summary"`
	Carriers    carrier.Comparison           `json:"carriers"`
	Tolerance   *tolerance.Result            `json:"tolerance"`
}

// CompareDocuments runs the full pipeline on one original/converted pair.
// Unparseable input is a verification outcome, not an error: a document
// that fails to parse contributes an empty tree, which reads as total
// loss on the original side or total drop on the converted side. Errors
// are reserved for configuration problems (unknown profile).
func (s *Service) CompareDocuments(ctx context.Context, original, converted []byte, profile string) (*ComparisonResult, error) {
	if profile == "" {
		profile = s.config.Profile
	}
	if _, err := s.registry.Profile(profile); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	origDoc, origErr := oxml.Parse(original)
	docType := oxml.DocType("")
	if origDoc != nil {
		docType = origDoc.Type
	}
	convDoc, convErr := oxml.ParseAs(converted, docType)
	if origErr != nil {
		s.logger.Warn("original failed to parse", "error", origErr)
	}
	if convErr != nil {
		s.logger.Warn("converted failed to parse", "error", convErr)
	}

	diffs, summary := semdiff.Analyze(origDoc, convDoc, docType)

	var origRes, convRes carrier.AnalysisResult
	if origDoc != nil {
		origRes = carrier.AnalyzeDocument(origDoc)
	} else {
		origRes = carrier.Analyze(original, docType)
	}
	if convDoc != nil {
		convRes = carrier.AnalyzeDocument(convDoc)
	} else {
		convRes = carrier.Analyze(converted, docType)
	}
	cmp := carrier.CompareResults(origRes, convRes)

	tolRes, err := s.registry.Evaluate(ChangesFromDiffs(diffs), profile)
	if err != nil {
		return nil, err
	}

	s.logger.Info("documents compared",
		"doc_type", docType,
		"profile", profile,
		"differences", summary.TotalDifferences,
		"preservation", summary.PreservationRate,
		"token_preservation", cmp.PreservationMetrics.PreservationRate,
		"passed", tolRes.Passed,
	)

	return &ComparisonResult{
		DocType:     docType,
		Profile:     profile,
		Differences: diffs,
		Summary:     summary,
		Carriers:    cmp,
		Tolerance:   tolRes,
	}, nil
}

// RunMatrix verifies the original against one converted artifact per
// platform, in parallel, and aggregates the outcomes. A platform whose
// pipeline produces nothing usable still appears in the report as
// partial data.
func (s *Service) RunMatrix(ctx context.Context, original []byte, converted map[string][]byte, profile string) (*compat.CompatibilityReport, error) {
	if profile == "" {
		profile = s.config.Profile
	}
	if _, err := s.registry.Profile(profile); err != nil {
		return nil, err
	}

	origDoc, err := oxml.Parse(original)
	docType := oxml.DocType("")
	if origDoc != nil {
		docType = origDoc.Type
	}
	if err != nil {
		s.logger.Warn("original failed to parse", "error", err)
	}

	var mu sync.Mutex
	results := make(map[string]*compat.PlatformResult, len(converted))

	var wg sync.WaitGroup
	for name, data := range converted {
		wg.Add(1)
		go func(name string, data []byte) {
			defer wg.Done()
			pr := s.platformResult(ctx, origDoc, original, data, docType, profile)
			mu.Lock()
			results[name] = pr
			mu.Unlock()
		}(name, data)
	}
	wg.Wait()

	report := compat.GenerateMatrix(docType, results, compat.Config{
		SurvivalThreshold: s.config.FailThreshold,
		Profile:           profile,
	})
	s.logger.Info("matrix generated",
		"doc_type", docType,
		"platforms", len(results),
		"overall_survival", report.OverallMetrics.OverallSurvivalRate,
	)
	return report, nil
}

func (s *Service) platformResult(ctx context.Context, origDoc *oxml.ParsedDocument, original, converted []byte, docType oxml.DocType, profile string) *compat.PlatformResult {
	if ctx.Err() != nil {
		return nil
	}

	convDoc, _ := oxml.ParseAs(converted, docType)
	diffs, summary := semdiff.Analyze(origDoc, convDoc, docType)

	var origRes, convRes carrier.AnalysisResult
	if origDoc != nil {
		origRes = carrier.AnalyzeDocument(origDoc)
	} else {
		origRes = carrier.Analyze(original, docType)
	}
	if convDoc != nil {
		convRes = carrier.AnalyzeDocument(convDoc)
	} else {
		convRes = carrier.Analyze(converted, docType)
	}
	cmp := carrier.CompareResults(origRes, convRes)

	pr := &compat.PlatformResult{
		Carriers: &cmp,
		Diff:     &summary,
	}
	// An evaluation error here can only be a registry race on the profile
	// name; the platform then reports without a tolerance verdict.
	if tolRes, err := s.registry.Evaluate(ChangesFromDiffs(diffs), profile); err == nil {
		pr.Tolerance = tolRes
	} else {
		s.logger.Warn("tolerance evaluation skipped", "error", err)
	}
	return pr
}

// SaveRun persists a matrix run when a store is configured.
func (s *Service) SaveRun(docName string, report *compat.CompatibilityReport) (int64, error) {
	if s.runs == nil {
		return 0, fmt.Errorf("roundtrip: no store configured")
	}
	passed := true
	for _, p := range report.Platforms {
		if !p.TolerancePassed || len(p.CriticalFailures) > 0 {
			passed = false
			break
		}
	}
	return s.runs.SaveRun(&store.Run{
		DocName:      docName,
		DocType:      string(report.DocType),
		Profile:      report.Profile,
		Passed:       passed,
		SurvivalRate: report.OverallMetrics.OverallSurvivalRate,
		Report:       report,
	})
}
