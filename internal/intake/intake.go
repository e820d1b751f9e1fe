// Package intake validates and normalizes incoming ActivityEvents against
// the wire-stable schema (spec §6): unknown enum values are rejected with
// SchemaError before anything reaches the domain packages.
package intake

import (
	"strings"

	"github.com/finova-oss/rewardengine/internal/errs"
	"github.com/finova-oss/rewardengine/internal/model"
)

// Validate checks event against the wire schema, returning a SchemaError
// EngineError describing the first violation found.
func Validate(event model.ActivityEvent) error {
	if strings.TrimSpace(event.EventID) == "" {
		return errs.SchemaError("event_id is required")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return errs.SchemaError("user_id is required")
	}
	if !event.Kind.Valid() {
		return errs.SchemaError("unknown activity kind %q", event.Kind)
	}
	if !event.Platform.Valid() {
		return errs.SchemaError("unknown platform %q", event.Platform)
	}
	if event.Timestamp.IsZero() {
		return errs.SchemaError("timestamp is required")
	}
	if event.Content != nil && strings.TrimSpace(event.Content.TextHash) == "" {
		return errs.SchemaError("content payload present but text_hash is empty")
	}
	if strings.TrimSpace(event.Device.FingerprintHex) == "" {
		return errs.SchemaError("device.fingerprint_hex is required")
	}
	if strings.TrimSpace(event.Network.Country) == "" {
		return errs.SchemaError("network_descriptor.country is required")
	}
	return nil
}

// ValidateSample checks a BehavioralSample for the minimum shape the
// anti-bot scorer needs.
func ValidateSample(sample model.BehavioralSample) error {
	if strings.TrimSpace(sample.UserID) == "" {
		return errs.SchemaError("behavioral sample user_id is required")
	}
	if sample.SessionEnd.Before(sample.SessionStart) {
		return errs.SchemaError("session_end precedes session_start")
	}
	return nil
}
