package domain

import (
	"time"

	"github.com/google/uuid"
)

// AcquisitionStatus represents the state of an acquisition record
type AcquisitionStatus string

const (
	StatusRunning   AcquisitionStatus = "running"
	StatusSucceeded AcquisitionStatus = "succeeded"
	StatusFailed    AcquisitionStatus = "failed"
)

// Acquisition is the persisted record of one acquire call
type Acquisition struct {
	ID           string               `json:"id" gorm:"primaryKey"`
	URL          string               `json:"url" gorm:"not null"`
	Platform     Platform             `json:"platform" gorm:"not null;index"`
	Mode         Mode                 `json:"mode"`
	Delivery     Delivery             `json:"delivery"`
	AudioOnly    bool                 `json:"audio_only"`
	Chain        string               `json:"chain"`
	Status       AcquisitionStatus    `json:"status" gorm:"not null;index"`
	Provider     ProviderID           `json:"provider,omitempty" gorm:"index"`
	ResultType   string               `json:"result_type,omitempty"`
	Filename     string               `json:"filename,omitempty"`
	SizeBytes    int64                `json:"size_bytes,omitempty"`
	ErrorKind    ErrorKind            `json:"error_kind,omitempty" gorm:"index"`
	ErrorMessage string               `json:"error_message,omitempty" gorm:"type:text"`
	AttemptCount int                  `json:"attempt_count"`
	DurationMs   int64                `json:"duration_ms"`
	Attempts     []AcquisitionAttempt `json:"attempts,omitempty" gorm:"foreignKey:AcquisitionID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

// AcquisitionAttempt records one provider attempt inside an acquisition
type AcquisitionAttempt struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	AcquisitionID string     `json:"acquisition_id" gorm:"not null;index"`
	Sequence      int        `json:"sequence"`
	Provider      ProviderID `json:"provider"`
	Outcome       string     `json:"outcome"`
	ErrorKind     ErrorKind  `json:"error_kind,omitempty"`
	Message       string     `json:"message,omitempty" gorm:"type:text"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// NewAcquisition creates a running acquisition record for req
func NewAcquisition(req MediaRequest, chain ProviderChain) *Acquisition {
	now := time.Now()
	return &Acquisition{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Platform:  req.Platform(),
		Mode:      req.Mode,
		Delivery:  req.Delivery,
		AudioOnly: req.WantAudioOnly,
		Chain:     chain.String(),
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkSucceeded records the winning provider and result shape
func (a *Acquisition) MarkSucceeded(provider ProviderID, result ProviderResult) {
	a.Status = StatusSucceeded
	a.Provider = provider
	a.ResultType = ResultType(result)
	switch r := result.(type) {
	case *Binary:
		a.Filename = r.Filename
		a.SizeBytes = r.SizeBytes
	case *DirectURL:
		a.Filename = r.Filename
	}
	a.complete()
}

// MarkFailed records the terminal failure
func (a *Acquisition) MarkFailed(provider ProviderID, failure *Failure) {
	a.Status = StatusFailed
	a.Provider = provider
	a.ResultType = ResultType(failure)
	if failure != nil {
		a.ErrorKind = failure.Kind
		a.ErrorMessage = failure.Message
	}
	a.complete()
}

func (a *Acquisition) complete() {
	now := time.Now()
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.DurationMs = now.Sub(a.CreatedAt).Milliseconds()
}

// IsTerminal checks if the acquisition has finished
func (a *Acquisition) IsTerminal() bool {
	return a.Status == StatusSucceeded || a.Status == StatusFailed
}

// ResultType names the variant of a provider result
func ResultType(result ProviderResult) string {
	switch result.(type) {
	case *Binary:
		return "binary"
	case *DirectURL:
		return "direct_url"
	case *MultiURL:
		return "multi_url"
	case *Failure:
		return "failure"
	default:
		return ""
	}
}
