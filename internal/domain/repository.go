package domain

import "errors"

// ErrAcquisitionNotFound is returned when no acquisition has the given ID
var ErrAcquisitionNotFound = errors.New("acquisition not found")

// AcquisitionRepository defines persistence for acquisition history
type AcquisitionRepository interface {
	// Create stores a new acquisition
	Create(acquisition *Acquisition) error

	// Update updates an existing acquisition
	Update(acquisition *Acquisition) error

	// AddAttempt appends a provider attempt to an acquisition
	AddAttempt(attempt *AcquisitionAttempt) error

	// FindByID finds an acquisition by ID, attempts included
	FindByID(id string) (*Acquisition, error)

	// FindAll finds acquisitions with optional column filters, newest first
	FindAll(filters map[string]interface{}, limit int) ([]*Acquisition, error)

	// GetStats returns aggregate statistics
	GetStats() (*AcquisitionStats, error)
}

// AcquisitionStats represents acquisition statistics
type AcquisitionStats struct {
	Total       int64            `json:"total"`
	Running     int64            `json:"running"`
	Succeeded   int64            `json:"succeeded"`
	Failed      int64            `json:"failed"`
	ByProvider  map[string]int64 `json:"by_provider"`
	ByErrorKind map[string]int64 `json:"by_error_kind"`
}
