// Package models contains the relational rows of the certification
// aggregate, mapped with GORM. One parent table carries the descriptive and
// approval-stage columns; four child tables and the uploads table hang off
// it with ON DELETE CASCADE foreign keys.
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// StageColumns is one approval stage stored inline on the parent row.
type StageColumns struct {
	Status  string     `gorm:"size:20;not null;default:'Pending'"`
	Comment *string    `gorm:"type:text"`
	At      *time.Time `gorm:"column:at"`
}

// Certification is the parent row.
type Certification struct {
	ID                    uint                `gorm:"primaryKey;autoIncrement"`
	ProjectName           string              `gorm:"size:255;not null"`
	ProjectDetails        string              `gorm:"type:text;not null"`
	Material              string              `gorm:"size:255;not null;default:''"`
	TestingLaboratory     string              `gorm:"size:255;not null"`
	TestingApprovedBy     *string             `gorm:"size:255"`
	Status                string              `gorm:"size:50;not null;default:'Not Started Yet'"`
	DueDate               datatypes.Date      `gorm:"not null"`
	Remarks               string              `gorm:"type:text;not null;default:''"`
	PaidForBy             string              `gorm:"size:50;not null"`
	Currency              string              `gorm:"size:10;not null"`
	Amount                decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	SupplierName          *string             `gorm:"size:255"`
	SupplierAmount        decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	PremierAmount         decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	CustomerName          *string             `gorm:"column:customization_customer_name;size:255"`
	CustomizationComments *string             `gorm:"column:customization_comments;type:text"`
	SampleQuantity        *int                `gorm:"check:sample_quantity >= 0"`
	CertificationType     string              `gorm:"size:50;not null"`
	RequestedBy           string              `gorm:"size:255;not null;default:''"`

	TechnicalHead StageColumns `gorm:"embedded;embeddedPrefix:technical_head_"`
	PlantHead     StageColumns `gorm:"embedded;embeddedPrefix:plant_head_"`
	Director      StageColumns `gorm:"embedded;embeddedPrefix:director_"`
	COO           StageColumns `gorm:"embedded;embeddedPrefix:coo_"`

	CreatedAt     time.Time `gorm:"not null"`
	LastUpdatedOn time.Time `gorm:"not null;autoUpdateTime"`

	ProductTypes       []ProductType      `gorm:"constraint:OnDelete:CASCADE"`
	MaterialCategories []MaterialCategory `gorm:"constraint:OnDelete:CASCADE"`
	ProductionLines    []ProductionLine   `gorm:"constraint:OnDelete:CASCADE"`
	DueDateHistory     []DueDateChange    `gorm:"constraint:OnDelete:CASCADE"`
	Uploads            []Upload           `gorm:"constraint:OnDelete:CASCADE"`
}

// ProductType is one entry of certification_product_types.
type ProductType struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CertificationID uint   `gorm:"not null;index"`
	ProductType     string `gorm:"size:255;not null"`
}

func (ProductType) TableName() string { return "certification_product_types" }

// MaterialCategory is one entry of certification_material_categories.
type MaterialCategory struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	CertificationID  uint   `gorm:"not null;index"`
	MaterialCategory string `gorm:"size:255;not null"`
}

func (MaterialCategory) TableName() string { return "certification_material_categories" }

// ProductionLine is one entry of certification_production_lines.
type ProductionLine struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CertificationID uint   `gorm:"not null;index"`
	ProductionLine  string `gorm:"size:255;not null"`
}

func (ProductionLine) TableName() string { return "certification_production_lines" }

// DueDateChange is one append-only row of due_date_history.
type DueDateChange struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"`
	CertificationID uint           `gorm:"not null;index"`
	PreviousDate    datatypes.Date `gorm:"not null"`
	NewDate         datatypes.Date `gorm:"not null"`
	ChangedAt       time.Time      `gorm:"not null"`
}

func (DueDateChange) TableName() string { return "due_date_history" }

// Upload is an attachment row. The id is supplied by the client.
type Upload struct {
	ID              string `gorm:"primaryKey;size:64"`
	CertificationID uint   `gorm:"not null;index"`
	Name            string `gorm:"size:255;not null"`
	Data            string `gorm:"type:text;not null"`
	Type            string `gorm:"size:100;not null"`
	IsInvoice       bool   `gorm:"not null;default:false"`
}

// All lists every table of the aggregate in migration order.
func All() []interface{} {
	return []interface{}{
		&Certification{},
		&ProductType{},
		&MaterialCategory{},
		&ProductionLine{},
		&DueDateChange{},
		&Upload{},
	}
}
