// Package ai holds the clients of the external AI services: CV analysis,
// face verification and quiz generation.
package ai

import (
	"context"
	"math"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/upload"
	"github.com/khrees2412/jobportal/pkg/models"
)

const CVAnalyzerPath = "/api/callExternalApi/cv-analyzer"

var unitInterval = map[string]any{"type": "number", "minimum": 0, "maximum": 1}

var cvAnalysisSchema = apiclient.MustCompileSchema("cv-analysis", map[string]any{
	"type":     "object",
	"required": []string{"success"},
	"properties": map[string]any{
		"success": map[string]any{"type": "boolean"},
		"message": map[string]any{"type": "string"},
	},
	"if": map[string]any{
		"properties": map[string]any{"success": map[string]any{"const": true}},
	},
	"then": map[string]any{
		"required": []string{"scores", "analysis"},
		"properties": map[string]any{
			"scores": map[string]any{
				"type":     "object",
				"required": []string{"average_score"},
				"properties": map[string]any{
					"average_score":        unitInterval,
					"ats_similarity_score": unitInterval,
					"total_criteria":       map[string]any{"type": "integer", "minimum": 0},
					"individual_scores":    map[string]any{"type": "array", "items": unitInterval},
				},
			},
			"analysis": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"has_profile_photo": map[string]any{"type": "boolean"},
					"detailed_report":   map[string]any{"type": "string"},
				},
			},
		},
	},
})

type cvAnalysisResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Scores  struct {
		AverageScore       float64   `json:"average_score"`
		ATSSimilarityScore float64   `json:"ats_similarity_score"`
		TotalCriteria      int       `json:"total_criteria"`
		IndividualScores   []float64 `json:"individual_scores"`
	} `json:"scores"`
	Analysis struct {
		HasProfilePhoto bool   `json:"has_profile_photo"`
		DetailedReport  string `json:"detailed_report"`
	} `json:"analysis"`
}

// CVAnalysis is the typed result of a successful analysis.
type CVAnalysis struct {
	CVScore         int
	HasProfilePhoto bool
	Report          string
	Scores          models.DetailedScores
}

// PercentScore converts a fraction in [0,1] to a rounded percentage.
func PercentScore(fraction float64) int {
	return int(math.Round(fraction * 100))
}

// CVAnalyzer submits resumes to the CV analysis service.
type CVAnalyzer struct {
	api *apiclient.Client
}

func NewCVAnalyzer(api *apiclient.Client) *CVAnalyzer {
	return &CVAnalyzer{api: api}
}

// Analyze uploads the resume together with the job description.
// A response with success=false is reported as a service error.
func (a *CVAnalyzer) Analyze(ctx context.Context, resume upload.File, jobDescription string) (*CVAnalysis, error) {
	var resp cvAnalysisResponse
	err := a.api.PostMultipart(ctx, CVAnalyzerPath, apiclient.Multipart{
		Fields: map[string]string{"job_description": jobDescription},
		Files: []apiclient.FilePart{{
			Field:       "resume",
			Filename:    resume.Name,
			ContentType: resume.MIMEType,
			Data:        resume.Data,
		}},
	}, cvAnalysisSchema, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "CV analysis failed"
		}
		return nil, apperr.NewService("cv-analyzer", 200, msg, nil)
	}

	return &CVAnalysis{
		CVScore:         PercentScore(resp.Scores.AverageScore),
		HasProfilePhoto: resp.Analysis.HasProfilePhoto,
		Report:          resp.Analysis.DetailedReport,
		Scores: models.DetailedScores{
			ATSScore:         PercentScore(resp.Scores.ATSSimilarityScore),
			AverageScore:     resp.Scores.AverageScore,
			ATSSimilarity:    resp.Scores.ATSSimilarityScore,
			TotalCriteria:    resp.Scores.TotalCriteria,
			IndividualScores: resp.Scores.IndividualScores,
		},
	}, nil
}
