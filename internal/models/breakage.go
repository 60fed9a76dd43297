package models

import "time"

// BreakageStatus tracks fulfillment progress of a damage report.
type BreakageStatus string

const (
	BreakageStatusPending           BreakageStatus = "PENDING"
	BreakageStatusDispatchInitiated BreakageStatus = "DISPATCH_INITIATED"
	BreakageStatusResolved          BreakageStatus = "RESOLVED"
	BreakageStatusReplaced          BreakageStatus = "REPLACED"
)

// ApprovalStatus is the independent yes/no approval axis of a breakage.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// BreakageCause categorises how the damage happened.
type BreakageCause string

const (
	CauseHandlingError        BreakageCause = "HANDLING_ERROR"
	CauseEquipmentMalfunction BreakageCause = "EQUIPMENT_MALFUNCTION"
	CauseTransportDamage      BreakageCause = "TRANSPORT_DAMAGE"
	CauseStorageIssue         BreakageCause = "STORAGE_ISSUE"
	CauseManufacturingDefect  BreakageCause = "MANUFACTURING_DEFECT"
	CauseNormalWear           BreakageCause = "NORMAL_WEAR"
	CauseAccident             BreakageCause = "ACCIDENT"
	CauseOther                BreakageCause = "OTHER"
)

// ValidBreakageCause reports whether the cause is a known enum member.
func ValidBreakageCause(c BreakageCause) bool {
	switch c {
	case CauseHandlingError, CauseEquipmentMalfunction, CauseTransportDamage,
		CauseStorageIssue, CauseManufacturingDefect, CauseNormalWear,
		CauseAccident, CauseOther:
		return true
	}
	return false
}

// Breakage is a report of damaged inventory awaiting manager review. Status
// and approval status move independently; action gating consults both.
type Breakage struct {
	ID              string         `db:"id" json:"id"`
	BreakageNumber  string         `db:"breakage_number" json:"breakage_number"`
	Status          BreakageStatus `db:"status" json:"status"`
	ApprovalStatus  ApprovalStatus `db:"approval_status" json:"approval_status"`
	StoreID         string         `db:"store_id" json:"store_id"`
	ReportedBy      string         `db:"reported_by" json:"reported_by"`
	ApprovedBy      *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	Items           []BreakageItem `db:"-" json:"items"`
}

// BreakageItem references the dispatch item whose stock was damaged. Items
// become immutable once the report leaves approval_status PENDING.
type BreakageItem struct {
	ID                   string        `db:"id" json:"id"`
	BreakageID           string        `db:"breakage_id" json:"breakage_id"`
	DispatchItemID       string        `db:"dispatch_item_id" json:"dispatch_item_id"`
	ProductID            string        `db:"product_id" json:"product_id"`
	ProductName          string        `db:"product_name" json:"product_name"`
	Quantity             int           `db:"quantity" json:"quantity"`
	Cause                BreakageCause `db:"cause" json:"cause"`
	ReplacementRequested bool          `db:"replacement_requested" json:"replacement_requested"`
	Notes                *string       `db:"notes" json:"notes,omitempty"`
}

// BreakageFilter constrains breakage listing queries.
type BreakageFilter struct {
	Status         []BreakageStatus
	ApprovalStatus []ApprovalStatus
	StoreID        string
	ReportedBy     string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// AssignableItem is a dispatch item eligible for breakage reporting: received
// stock that has not been damaged away or sent back.
type AssignableItem struct {
	DispatchItemID    string  `db:"dispatch_item_id" json:"dispatch_item_id"`
	DispatchID        string  `db:"dispatch_id" json:"dispatch_id"`
	DispatchNumber    string  `db:"dispatch_number" json:"dispatch_number"`
	ProductID         string  `db:"product_id" json:"product_id"`
	ProductName       string  `db:"product_name" json:"product_name"`
	VariantID         *string `db:"variant_id" json:"variant_id,omitempty"`
	ReceivedQuantity  int     `db:"received_quantity" json:"received_quantity"`
	ReturnedQuantity  int     `db:"returned_quantity" json:"returned_quantity"`
	AvailableQuantity int     `db:"-" json:"available_quantity"`
}
