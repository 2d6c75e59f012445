package models

import (
	"time"

	"gorm.io/datatypes"
)

// Статусы релиза. Переходы — только вперёд по графу:
// Pending -> UnderReview -> {Released | Held | Rejected},
// ChecklistInProgress допускается как предшественник решения.
const (
	StatusPending             = "Pending"
	StatusChecklistInProgress = "ChecklistInProgress"
	StatusUnderReview         = "UnderReview"
	StatusReleased            = "Released"
	StatusHeld                = "Held"
	StatusRejected            = "Rejected"
)

// Решения по релизу.
const (
	DecisionRelease = "Release"
	DecisionHold    = "Hold"
	DecisionReject  = "Reject"
)

// Статусы пробы, при которых разрешено создание релиза.
const (
	SampleStatusSubmittedToQA = "Submitted to QA"
	SampleStatusQCComplete    = "QC Complete"
)

type Release struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ReleaseNumber string `gorm:"type:varchar(32);uniqueIndex;not null" json:"release_number"`

	SampleID           string  `gorm:"type:varchar(64);index;not null" json:"sample_id"`
	GoodsReceiptItemID *string `gorm:"type:varchar(64)" json:"goods_receipt_item_id,omitempty"`
	MaterialID         string  `gorm:"type:varchar(64);not null" json:"material_id"`
	MaterialName       string  `gorm:"type:text;not null" json:"material_name"`
	MaterialCode       string  `gorm:"type:varchar(64);not null" json:"material_code"`
	BatchNumber        string  `gorm:"type:varchar(64);not null" json:"batch_number"`

	Quantity float64 `gorm:"type:numeric(14,3);not null" json:"quantity"`
	Unit     string  `gorm:"type:varchar(32);not null" json:"unit"`

	Status         string  `gorm:"type:varchar(32);not null;index" json:"status"`
	Decision       *string `gorm:"type:varchar(16)" json:"decision,omitempty"`
	DecisionReason *string `gorm:"type:text" json:"decision_reason,omitempty"`
	Remarks        *string `gorm:"type:text" json:"remarks,omitempty"`

	// Доказательная база решения: id результатов QC, зафиксированные при создании.
	// После создания не меняется.
	ResultIDs datatypes.JSON `gorm:"type:jsonb;not null" json:"result_ids"`

	SubmittedBy string     `gorm:"type:varchar(64);not null" json:"submitted_by"`
	SubmittedAt time.Time  `gorm:"not null" json:"submitted_at"`
	ReviewedBy  *string    `gorm:"type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	DecidedBy   *string    `gorm:"type:varchar(64)" json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	ESignature  *string    `gorm:"type:text" json:"e_signature,omitempty"`

	WarehouseNotified   bool       `gorm:"not null;default:false" json:"warehouse_notified"`
	WarehouseNotifiedAt *time.Time `json:"warehouse_notified_at,omitempty"`

	// Оптимистическая блокировка: каждый переход пишет с предикатом
	// "version = ожидаемая" и инкрементирует её.
	Version int64 `gorm:"not null;default:0" json:"version"`

	ChecklistItems []ChecklistItem `gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE" json:"checklist_items"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Release) TableName() string {
	return "qa_releases"
}

// Decided сообщает, вынесено ли по релизу решение. Решённый релиз неизменяем.
func (r *Release) Decided() bool {
	return r.Decision != nil
}

type ChecklistItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ReleaseID uint    `gorm:"index;not null" json:"release_id"`
	Item      string  `gorm:"type:text;not null" json:"item"`
	Checked   bool    `gorm:"not null;default:false" json:"checked"`
	Remarks   *string `gorm:"type:text" json:"remarks,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChecklistItem) TableName() string {
	return "qa_checklist_items"
}

// ReleaseCounter — счётчик номеров релизов на календарный год.
// Выделенная строка с атомарным инкрементом сериализует выдачу номеров.
type ReleaseCounter struct {
	Year    int   `gorm:"primaryKey" json:"year"`
	LastSeq int64 `gorm:"not null;default:0" json:"last_seq"`
}

func (ReleaseCounter) TableName() string {
	return "qa_release_counters"
}
