package handlers

import (
	"github.com/gin-gonic/gin"
)

// DetailError is the structured form of the error detail, used when a
// machine-readable code accompanies the message.
type DetailError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

const (
	CodePDFExtractionFailed = "PDF_EXTRACTION_FAILED"
	CodeValidationError     = "VALIDATION_ERROR"
)

// detail writes the error envelope with a plain string detail.
func detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

// detailCode writes the error envelope with a structured detail.
func detailCode(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{"detail": DetailError{ErrorCode: code, Message: message}})
}
