package logging

import "log/slog"

// Common field names for consistent logging across the gateway and CLI.
const (
	FieldService   = "service"
	FieldClientID  = "client_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldLeadID    = "lead_id"
	FieldDriver    = "driver"
	FieldDelivery  = "delivery_status"
	FieldEventType = "event_type"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ClientID returns a slog attribute for an application's client id.
func ClientID(id string) slog.Attr {
	return slog.String(FieldClientID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// LeadID returns a slog attribute for a lead id.
func LeadID(id string) slog.Attr {
	return slog.String(FieldLeadID, id)
}

// Driver returns a slog attribute for a driver name.
func Driver(name string) slog.Attr {
	return slog.String(FieldDriver, name)
}

// DeliveryStatus returns a slog attribute for a delivery outcome status.
// Kept apart from Status, which carries HTTP codes.
func DeliveryStatus(status string) slog.Attr {
	return slog.String(FieldDelivery, status)
}

// EventType returns a slog attribute for a bus event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}
