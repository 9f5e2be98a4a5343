package wizard

import (
	"github.com/khrees2412/jobportal/internal/upload"
	"github.com/khrees2412/jobportal/pkg/models"
)

// Decision is the outcome shown in the DECISION step.
type Decision string

const (
	DecisionNone         Decision = ""
	DecisionQualified    Decision = "qualified"
	DecisionDisqualified Decision = "disqualified"
)

// FileInfo describes an accepted upload without its content.
type FileInfo struct {
	Name     string
	Size     int64
	MIMEType string
}

func newFileInfo(f upload.File) FileInfo {
	return FileInfo{Name: f.Name, Size: f.Size, MIMEType: f.MIMEType}
}

// Snapshot is a read-only copy of the wizard session.
type Snapshot struct {
	Step            Step
	JobID           int
	RequiredCVScore int
	CVFile          *FileInfo
	Analyzing       bool
	CVScore         *int
	Scores          *models.DetailedScores
	Report          string
	HasProfilePhoto *bool
	PhotoFile       *FileInfo
	Verifying       bool
	FaceVerified    bool
	FaceMessage     string
	FaceAttempts    int
	Degraded        bool
	AuthRequired    bool
	Decision        Decision
	LastError       error
	Closed          bool
}

// CanStartQuiz reports whether StartQuiz would succeed.
func (s Snapshot) CanStartQuiz() bool {
	return !s.Closed && s.Decision == DecisionQualified
}

// Busy reports whether a request is in flight.
func (s Snapshot) Busy() bool {
	return s.Analyzing || s.Verifying
}

func (w *Wizard) snapshotLocked() Snapshot {
	snap := Snapshot{
		Step:            w.st.step,
		JobID:           w.cfg.Job.ID,
		RequiredCVScore: w.cfg.Job.CVThreshold(),
		Analyzing:       w.st.analyzing,
		Report:          w.st.report,
		Verifying:       w.st.verifying,
		FaceVerified:    w.st.faceVerified,
		FaceMessage:     w.st.faceMessage,
		FaceAttempts:    w.st.faceAttempts,
		Degraded:        w.st.degraded,
		AuthRequired:    w.st.authRequired,
		Decision:        w.decisionLocked(),
		LastError:       w.st.lastError,
		Closed:          w.closed,
	}
	if w.st.cvFile != nil {
		f := *w.st.cvFile
		snap.CVFile = &f
	}
	if w.st.photoFile != nil {
		f := *w.st.photoFile
		snap.PhotoFile = &f
	}
	if w.st.cvScore != nil {
		v := *w.st.cvScore
		snap.CVScore = &v
	}
	if w.st.hasProfilePhoto != nil {
		v := *w.st.hasProfilePhoto
		snap.HasProfilePhoto = &v
	}
	if w.st.scores != nil {
		sc := *w.st.scores
		sc.IndividualScores = append([]float64(nil), w.st.scores.IndividualScores...)
		snap.Scores = &sc
	}
	return snap
}
