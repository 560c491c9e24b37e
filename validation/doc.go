// Package validation provides input validation utilities for API handlers.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// recommended for request payloads.
//
// # Struct Tag Validation
//
//	type TranscribeRequest struct {
//	    UploadID string `validate:"required,uuid"`
//	    Language string `validate:"omitempty,max=8"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.RequiredUUID("upload_id", id)
//	err := v.Validate()
package validation
