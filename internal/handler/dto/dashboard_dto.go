package dto

import (
	"github.com/mosaichq/license-api/internal/domain/license"
)

type DashboardSummaryResponse struct {
	TotalLicenses        int64                    `json:"totalLicenses"`
	StatusCounts         map[license.Status]int64 `json:"statusCounts"`
	PlanCounts           map[string]int64         `json:"planCounts"`
	TrialDevicesConsumed int64                    `json:"trialDevicesConsumed"`
}
