package entity

import "DriverWatch/pkg/alert"

// AlertEvent is published for every analysis that ends in an alerting status.
type AlertEvent struct {
	RequestID       string       `json:"request_id"`
	DriverID        string       `json:"driver_id,omitempty"`
	VehicleID       string       `json:"vehicle_id,omitempty"`
	Status          alert.Status `json:"status"`
	DrowsinessScore *float64     `json:"drowsiness_score"`
	Detections      []string     `json:"detections,omitempty"`
	Timestamp       int64        `json:"timestamp"`
}
