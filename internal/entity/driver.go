package entity

// DriverIdentity is taken from the bearer token of an authenticated device.
type DriverIdentity struct {
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
}
