// Package pairing parses and validates the QR-code bootstrap payload a new
// device scans to learn how to reach a signaling relay and announce itself,
// per spec §6.
package pairing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the decoded contents of a pairing QR code.
type Payload struct {
	DeviceID     string    `json:"device_id"`
	Name         string    `json:"name"`
	SignalingURL string    `json:"signaling_url"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Parse decodes raw QR payload bytes without validating expiry or
// required fields — callers always follow with Validate so the two
// concerns (malformed JSON vs. expired/incomplete payload) report
// distinct errors.
func Parse(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("pairing: decode payload: %w", err)
	}
	return p, nil
}

// Validate checks a parsed Payload is complete and not expired as of now.
func (p Payload) Validate(now time.Time) error {
	if p.DeviceID == "" {
		return fmt.Errorf("pairing: missing device_id")
	}
	if p.SignalingURL == "" {
		return fmt.Errorf("pairing: missing signaling_url")
	}
	if p.Token == "" {
		return fmt.Errorf("pairing: missing token")
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("pairing: missing expires_at")
	}
	if !now.Before(p.ExpiresAt) {
		return fmt.Errorf("pairing: payload expired at %s", p.ExpiresAt)
	}
	return nil
}

// ParseAndValidate is the common case: decode then validate against now.
func ParseAndValidate(raw []byte, now time.Time) (Payload, error) {
	p, err := Parse(raw)
	if err != nil {
		return Payload{}, err
	}
	if err := p.Validate(now); err != nil {
		return Payload{}, err
	}
	return p, nil
}
