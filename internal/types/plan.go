package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan step roles as emitted by the plan compiler.
const (
	StepKindWarmup   = "warmup"
	StepKindWork     = "work"
	StepKindRecovery = "recovery"
	StepKindCooldown = "cooldown"
)

// Target kinds for a plan step's intensity range.
const (
	TargetKindPace  = "pace"
	TargetKindPower = "power"
)

type TrainingPlan struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Steps     []*PlanStep    `gorm:"foreignKey:PlanID;references:ID" json:"steps,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TrainingPlan) TableName() string { return "training_plan" }

// PlanStep is one ordered unit of an authored training session. Exactly one
// of DurationS or DistanceM is set. Pace targets are seconds per kilometer.
type PlanStep struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	Position    int            `gorm:"column:position;not null" json:"position"`
	Kind        string         `gorm:"column:kind;not null" json:"kind"`
	SegmentType string         `gorm:"column:segment_type" json:"segment_type,omitempty"`
	DurationS   *float64       `gorm:"column:duration_s" json:"duration_s,omitempty"`
	DistanceM   *float64       `gorm:"column:distance_m" json:"distance_m,omitempty"`
	TargetLow   float64        `gorm:"column:target_low" json:"target_low"`
	TargetHigh  float64        `gorm:"column:target_high" json:"target_high"`
	TargetKind  string         `gorm:"column:target_kind;not null;default:pace" json:"target_kind"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlanStep) TableName() string { return "plan_step" }
