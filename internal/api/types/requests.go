package types

// UpdateProjectFieldsRequest is a sparse project edit keyed by field name.
// Unknown fields are ignored; values are parsed leniently downstream.
type UpdateProjectFieldsRequest map[string]any

type DashboardReportRequest struct {
	Year int `json:"year" validate:"omitempty,gte=2000,lte=2200"`
}
