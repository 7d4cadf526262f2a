// Package httptransport defines the wire DTOs of the instance API.
package httptransport

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateInstanceRequest struct {
	CapabilityName  string         `json:"capability_name"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	UsagesRemaining *int           `json:"usages_remaining,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type InstanceResponse struct {
	InstanceID      string         `json:"instance_id"`
	CapabilityName  string         `json:"capability_name"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	UsagesRemaining *int           `json:"usages_remaining,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type ListInstancesResponse struct {
	Instances []InstanceResponse `json:"instances"`
}
