package models

// CostQuery describes the window and region used for Cost Explorer lookups.
// Dates are YYYY-MM-DD; EndDate is exclusive.
type CostQuery struct {
	RoleARN   string `json:"role_arn"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Region    string `json:"region"`
}

// ServiceCost is the blended cost of one AWS service on one day
type ServiceCost struct {
	Date    string  `json:"date"`
	Service string  `json:"service"`
	Amount  float64 `json:"amount"`
}

// EC2Cost is the monthly EC2 spend for one instance type, region and OS
type EC2Cost struct {
	Period        string  `json:"period"`
	InstanceType  string  `json:"instance_type"`
	Region        string  `json:"region"`
	OS            string  `json:"os"`
	Cost          float64 `json:"cost"`
	UsageQuantity float64 `json:"usage_quantity"`
}
