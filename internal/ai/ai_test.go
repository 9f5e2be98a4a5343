package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/upload"
	"github.com/khrees2412/jobportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, path string, h http.HandlerFunc) *apiclient.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return apiclient.New("test", srv.URL, apiclient.WithHTTPClient(srv.Client()))
}

func TestPercentScore(t *testing.T) {
	for in, want := range map[float64]int{0.7778: 78, 0.5: 50, 1.0: 100, 0.0: 0, 0.8: 80, 0.6: 60} {
		assert.Equal(t, want, PercentScore(in), "%v", in)
	}
}

func TestAnalyze(t *testing.T) {
	api := serve(t, CVAnalyzerPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Build Go services", r.FormValue("job_description"))
		_, hdr, err := r.FormFile("resume")
		require.NoError(t, err)
		assert.Equal(t, "cv.pdf", hdr.Filename)

		w.Write([]byte(`{
			"success": true,
			"scores": {"average_score": 0.7778, "ats_similarity_score": 0.61, "total_criteria": 3, "individual_scores": [0.9, 0.7, 0.73]},
			"analysis": {"has_profile_photo": true, "detailed_report": "Strong Go background"}
		}`))
	})

	res, err := NewCVAnalyzer(api).Analyze(context.Background(),
		upload.File{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF"), Size: 4}, "Build Go services")
	require.NoError(t, err)
	assert.Equal(t, 78, res.CVScore)
	assert.Equal(t, 61, res.Scores.ATSScore)
	assert.Equal(t, 3, res.Scores.TotalCriteria)
	assert.True(t, res.HasProfilePhoto)
	assert.Equal(t, "Strong Go background", res.Report)
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{"success false", 200, `{"success":false,"message":"unreadable file"}`, apperr.KindService},
		{"missing scores", 200, `{"success":true,"analysis":{}}`, apperr.KindService},
		{"score out of range", 200, `{"success":true,"scores":{"average_score":7.5},"analysis":{}}`, apperr.KindService},
		{"server error", 500, `{"message":"boom"}`, apperr.KindService},
		{"unauthorized", 401, ``, apperr.KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := serve(t, CVAnalyzerPath, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := NewCVAnalyzer(api).Analyze(context.Background(), upload.File{Name: "a.pdf"}, "")
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestSetReference(t *testing.T) {
	var got imageRequest
	api := serve(t, SetReferencePath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":false}`))
	})

	v, err := NewFaceVerifier(api).SetReference(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", got.Image)
	assert.False(t, v.Success)
	assert.Equal(t, "Face verification failed", v.Message)
}

func TestVerifyPresence(t *testing.T) {
	api := serve(t, VerifyPresencePath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_present":true,"confidence":0.82,"message":"ok","stability_score":0.9,"eyes_detected":true}`))
	})

	p, err := NewFaceVerifier(api).VerifyPresence(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.True(t, p.UserPresent)
	assert.InDelta(t, 0.82, p.Confidence, 1e-9)
	require.NotNil(t, p.EyesDetected)
	assert.True(t, *p.EyesDetected)
}

func TestVerifyPresenceRejectsMalformed(t *testing.T) {
	api := serve(t, VerifyPresencePath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_present":"maybe"}`))
	})
	_, err := NewFaceVerifier(api).VerifyPresence(context.Background(), "x")
	assert.True(t, apperr.Is(err, apperr.KindService))
}

func TestGenerateQuiz(t *testing.T) {
	api := serve(t, GenerateQuizPath, func(w http.ResponseWriter, r *http.Request) {
		var req generateQuizRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang", req.Topic)
		w.Write([]byte(`{
			"success": true, "message": "generated", "topic": "golang", "total_questions": 2,
			"questions": [
				{"id": 1, "type": "mcq", "question": "Zero value of int?", "options": ["0", "nil"], "correct": 0},
				{"id": 2, "type": "code", "question": "Reverse a slice", "placeholder": "func reverse..."}
			]
		}`))
	})

	set, err := NewQuizGenerator(api).Generate(context.Background(), " golang ")
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	assert.Equal(t, models.QuestionMCQ, set.Questions[0].Type)
	require.NotNil(t, set.Questions[0].Correct)
	assert.Equal(t, 0, *set.Questions[0].Correct)
	assert.Equal(t, models.QuestionCode, set.Questions[1].Type)
	assert.Nil(t, set.Questions[1].Correct)
}

func TestGenerateQuizFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success false", `{"success":false,"message":"topic too vague"}`},
		{"no questions", `{"success":true,"questions":[]}`},
		{"mcq without options", `{"success":true,"questions":[{"id":1,"type":"mcq","question":"?"}]}`},
		{"unknown type", `{"success":true,"questions":[{"id":1,"type":"essay","question":"?"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := serve(t, GenerateQuizPath, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := NewQuizGenerator(api).Generate(context.Background(), "go")
			assert.True(t, apperr.Is(err, apperr.KindService))
		})
	}

	_, err := NewQuizGenerator(nil).Generate(context.Background(), "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
