package common

import (
	"github.com/google/uuid"
)

// NewQueryID generates a unique query ID with the "qry_" prefix
// Format: qry_<uuid>
func NewQueryID() string {
	return "qry_" + uuid.New().String()
}

// NewSessionID generates a unique session ID with the "ses_" prefix
// Format: ses_<uuid>
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}
