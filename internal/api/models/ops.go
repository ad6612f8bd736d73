package models

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DatasetStatus describes the state of the cached carpark dataset.
type DatasetStatus struct {
	Source      string     `json:"source"`
	RecordCount int        `json:"recordCount"`
	Eligible    int        `json:"eligible"`
	Warnings    int        `json:"warnings"`
	FetchedAt   *Timestamp `json:"fetchedAt,omitempty"`
	ExpiresAt   *Timestamp `json:"expiresAt,omitempty"`
	Stale       bool       `json:"stale"`
}

// Readiness represents the readiness of the service and its dataset.
type Readiness struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Dataset *DatasetStatus `json:"dataset,omitempty"`
}
