package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewAssetID generates a unique asset ID with the "ast_" prefix
func NewAssetID() string {
	return "ast_" + uuid.New().String()
}

// NewMessageID generates a unique conversation message ID with the "msg_" prefix
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}
