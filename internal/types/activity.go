package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stage statuses for the three computation stages that write into one
// activity document. A stage never returns to "pending" on its own; only
// re-linking the activity to a different plan resets it.
// Stage names. Each names one worker and one status/error/updated_at column
// triple on the activity row; they also namespace the advisory lock keys.
const (
	StageSummary  = "summary"
	StageAnalysis = "analysis"
	StageMetrics  = "metrics"
)

const (
	StageStatusPending    = "pending"
	StageStatusProcessing = "processing"
	StageStatusComplete   = "complete"
	StageStatusFailed     = "failed"
)

type Activity struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalRef       string         `gorm:"column:external_ref;index" json:"external_ref"`
	PlanID            *uuid.UUID     `gorm:"type:uuid;column:plan_id;index" json:"plan_id,omitempty"`
	Plan              *TrainingPlan  `gorm:"constraint:OnDelete:SET NULL;foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Samples           datatypes.JSON `gorm:"type:jsonb;column:samples" json:"samples"`
	Document          datatypes.JSON `gorm:"type:jsonb;column:document" json:"document"`
	SummaryStatus     string         `gorm:"column:summary_status;not null;default:pending;index" json:"summary_status"`
	AnalysisStatus    string         `gorm:"column:analysis_status;not null;default:pending;index" json:"analysis_status"`
	MetricsStatus     string         `gorm:"column:metrics_status;not null;default:pending;index" json:"metrics_status"`
	SummaryError      string         `gorm:"column:summary_error" json:"summary_error,omitempty"`
	AnalysisError     string         `gorm:"column:analysis_error" json:"analysis_error,omitempty"`
	MetricsError      string         `gorm:"column:metrics_error" json:"metrics_error,omitempty"`
	SummaryUpdatedAt  *time.Time     `gorm:"column:summary_updated_at" json:"summary_updated_at,omitempty"`
	AnalysisUpdatedAt *time.Time     `gorm:"column:analysis_updated_at" json:"analysis_updated_at,omitempty"`
	MetricsUpdatedAt  *time.Time     `gorm:"column:metrics_updated_at" json:"metrics_updated_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Activity) TableName() string { return "activity" }
