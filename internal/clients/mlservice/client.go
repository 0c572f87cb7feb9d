package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
	"github.com/studyloop/adaptive-backend/internal/utils"
)

// Features is the external predictor's input contract: 27 behavioral
// features, every field required. Zero values stand in for missing data, so
// partial behavioral evidence never fails the call.
type Features struct {
	ActiveModeRatio     float64 `json:"activeModeRatio"`
	QuestionsGenerated  float64 `json:"questionsGenerated"`
	DebatesParticipated float64 `json:"debatesParticipated"`

	ReflectiveModeRatio float64 `json:"reflectiveModeRatio"`
	ReflectionsWritten  float64 `json:"reflectionsWritten"`
	JournalEntries      float64 `json:"journalEntries"`

	AIAskModeRatio    float64 `json:"aiAskModeRatio"`
	AIResearchRatio   float64 `json:"aiResearchModeRatio"`
	AITextToDocsRatio float64 `json:"aiTextToDocsRatio"`

	SensingModeRatio     float64 `json:"sensingModeRatio"`
	SimulationsCompleted float64 `json:"simulationsCompleted"`
	ChallengesCompleted  float64 `json:"challengesCompleted"`

	IntuitiveModeRatio float64 `json:"intuitiveModeRatio"`
	ConceptsExplored   float64 `json:"conceptsExplored"`
	PatternsDiscovered float64 `json:"patternsDiscovered"`

	VisualModeRatio    float64 `json:"visualModeRatio"`
	DiagramsViewed     float64 `json:"diagramsViewed"`
	WireframesExplored float64 `json:"wireframesExplored"`

	VerbalModeRatio  float64 `json:"verbalModeRatio"`
	TextRead         float64 `json:"textRead"`
	SummariesCreated float64 `json:"summariesCreated"`

	SequentialModeRatio float64 `json:"sequentialModeRatio"`
	StepsCompleted      float64 `json:"stepsCompleted"`
	LinearNavigation    float64 `json:"linearNavigation"`

	GlobalModeRatio float64 `json:"globalModeRatio"`
	OverviewsViewed float64 `json:"overviewsViewed"`
	NavigationJumps float64 `json:"navigationJumps"`
}

type HealthStatus struct {
	Available bool
	Status    string
	Version   string
	Err       string
}

// PredictionResult is a tagged result: failures come back with Success=false
// and a reason, never as a panic or an error that escapes this boundary.
type PredictionResult struct {
	Success     bool
	Predictions types.DimensionScores
	Confidence  types.DimensionConfidence
	Err         string
}

type Client interface {
	CheckHealth(ctx context.Context) HealthStatus
	GetPrediction(ctx context.Context, features Features) PredictionResult
}

type httpClient struct {
	log            *logger.Logger
	baseURL        string
	healthTimeout  time.Duration
	predictTimeout time.Duration
	client         *http.Client
}

func NewHTTPClient(log *logger.Logger) Client {
	clientLog := log.With("client", "MLServiceClient")
	baseURL := utils.GetEnv("ML_SERVICE_URL", "http://localhost:5000", log)
	healthTimeoutMS := utils.GetEnvAsInt("ML_HEALTH_TIMEOUT_MS", 3000, log)
	predictTimeoutMS := utils.GetEnvAsInt("ML_PREDICT_TIMEOUT_MS", 10000, log)
	return &httpClient{
		log:            clientLog,
		baseURL:        baseURL,
		healthTimeout:  time.Duration(healthTimeoutMS) * time.Millisecond,
		predictTimeout: time.Duration(predictTimeoutMS) * time.Millisecond,
		client:         &http.Client{},
	}
}

// NewHTTPClientWithURL is used by tests to point the adapter at a stub server.
func NewHTTPClientWithURL(log *logger.Logger, baseURL string, healthTimeout, predictTimeout time.Duration) Client {
	return &httpClient{
		log:            log.With("client", "MLServiceClient"),
		baseURL:        baseURL,
		healthTimeout:  healthTimeout,
		predictTimeout: predictTimeout,
		client:         &http.Client{},
	}
}

func (c *httpClient) CheckHealth(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{Available: false, Err: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("ML service health check failed", "error", err)
		return HealthStatus{Available: false, Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthStatus{Available: false, Err: fmt.Sprintf("service unhealthy: status %d", resp.StatusCode)}
	}

	var body struct {
		Status       string `json:"status"`
		ModelsLoaded bool   `json:"models_loaded"`
		Version      string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return HealthStatus{Available: false, Err: err.Error()}
	}
	return HealthStatus{Available: body.ModelsLoaded, Status: body.Status, Version: body.Version}
}

func (c *httpClient) GetPrediction(ctx context.Context, features Features) PredictionResult {
	ctx, cancel := context.WithTimeout(ctx, c.predictTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{"features": features})
	if err != nil {
		return PredictionResult{Success: false, Err: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return PredictionResult{Success: false, Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("ML prediction call failed", "error", err)
		return PredictionResult{Success: false, Err: err.Error()}
	}
	defer resp.Body.Close()

	var body struct {
		Success     bool                      `json:"success"`
		Predictions types.DimensionScores     `json:"predictions"`
		Confidence  types.DimensionConfidence `json:"confidence"`
		Error       string                    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PredictionResult{Success: false, Err: err.Error()}
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		reason := body.Error
		if reason == "" {
			reason = fmt.Sprintf("prediction failed: status %d", resp.StatusCode)
		}
		return PredictionResult{Success: false, Err: reason}
	}

	clampScores(&body.Predictions)
	return PredictionResult{
		Success:     true,
		Predictions: body.Predictions,
		Confidence:  body.Confidence,
	}
}

// Model output is trusted to be on the ILS scale but clamped anyway so a
// misbehaving model version cannot push scores outside [-11, 11].
func clampScores(d *types.DimensionScores) {
	d.ActiveReflective = clamp(d.ActiveReflective)
	d.SensingIntuitive = clamp(d.SensingIntuitive)
	d.VisualVerbal = clamp(d.VisualVerbal)
	d.SequentialGlobal = clamp(d.SequentialGlobal)
}

func clamp(v int) int {
	if v > 11 {
		return 11
	}
	if v < -11 {
		return -11
	}
	return v
}
