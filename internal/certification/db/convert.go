package db

import (
	"time"

	"github.com/gartstein/certify/internal/certification/approval"
	dbmodels "github.com/gartstein/certify/internal/certification/db/models"
	"github.com/gartstein/certify/internal/certification/models"
	"gorm.io/datatypes"
)

type stageColumnSet struct {
	status  string
	comment string
	at      string
}

// stageColumns maps each stage to its three columns on the parent row.
var stageColumns = [models.StageCount]stageColumnSet{
	models.StageTechnicalHead: {"technical_head_status", "technical_head_comment", "technical_head_at"},
	models.StagePlantHead:     {"plant_head_status", "plant_head_comment", "plant_head_at"},
	models.StageDirector:      {"director_status", "director_comment", "director_at"},
	models.StageCOO:           {"coo_status", "coo_comment", "coo_at"},
}

// descriptiveColumns are the parent columns an edit may rewrite.
var descriptiveColumns = []string{
	"project_name",
	"project_details",
	"material",
	"testing_laboratory",
	"testing_approved_by",
	"due_date",
	"remarks",
	"paid_for_by",
	"currency",
	"amount",
	"supplier_name",
	"supplier_amount",
	"premier_amount",
	"customization_customer_name",
	"customization_comments",
	"sample_quantity",
	"certification_type",
	"last_updated_on",
}

func stageFields(row *dbmodels.Certification) [models.StageCount]*dbmodels.StageColumns {
	return [models.StageCount]*dbmodels.StageColumns{
		models.StageTechnicalHead: &row.TechnicalHead,
		models.StagePlantHead:     &row.PlantHead,
		models.StageDirector:      &row.Director,
		models.StageCOO:           &row.COO,
	}
}

func stageDecisions(row *dbmodels.Certification) models.StageDecisions {
	var out models.StageDecisions
	for s, col := range stageFields(row) {
		d := models.StageDecision{Status: models.StageStatus(col.Status)}
		if d.Status == "" {
			d.Status = models.StagePending
		}
		if col.Comment != nil {
			d.Comment = *col.Comment
		}
		if col.At != nil {
			at := col.At.UTC()
			d.At = &at
		}
		out[s] = d
	}
	return out
}

// newRow maps the descriptive part of draft onto a parent row with every
// stage pending.
func newRow(draft *models.Draft, requestedBy string) *dbmodels.Certification {
	row := &dbmodels.Certification{
		ProjectName:       draft.ProjectName,
		ProjectDetails:    draft.ProjectDetails,
		Material:          draft.Material,
		TestingLaboratory: draft.TestingLaboratory,
		TestingApprovedBy: optional(draft.TestingApprovedBy),
		Status:            string(models.StatusNotStartedYet),
		DueDate:           datatypes.Date(models.DateOf(draft.DueDate)),
		Remarks:           draft.Remarks,
		Currency:          string(draft.Payment.Currency),
		SampleQuantity:    draft.SampleQuantity,
		CertificationType: string(draft.CertificationType),
		RequestedBy:       requestedBy,
	}

	terms := models.Fields(draft.Payment.Terms)
	row.PaidForBy = string(terms.PaidForBy)
	row.SupplierName = optional(terms.SupplierName)
	if terms.Amount != nil {
		row.Amount.Decimal, row.Amount.Valid = *terms.Amount, true
	}
	if terms.SupplierAmount != nil {
		row.SupplierAmount.Decimal, row.SupplierAmount.Valid = *terms.SupplierAmount, true
	}
	if terms.PremierAmount != nil {
		row.PremierAmount.Decimal, row.PremierAmount.Valid = *terms.PremierAmount, true
	}

	if c := draft.Customization; c != nil {
		row.CustomerName = optional(c.CustomerName)
		row.CustomizationComments = optional(c.Comments)
	}

	for _, col := range stageFields(row) {
		col.Status = string(models.StagePending)
	}
	return row
}

type children struct {
	productTypes       []dbmodels.ProductType
	materialCategories []dbmodels.MaterialCategory
	productionLines    []dbmodels.ProductionLine
	uploads            []dbmodels.Upload
}

// batches returns the non-empty child slices, ready for Create.
func (c *children) batches() []interface{} {
	var out []interface{}
	if len(c.productTypes) > 0 {
		out = append(out, &c.productTypes)
	}
	if len(c.materialCategories) > 0 {
		out = append(out, &c.materialCategories)
	}
	if len(c.productionLines) > 0 {
		out = append(out, &c.productionLines)
	}
	if len(c.uploads) > 0 {
		out = append(out, &c.uploads)
	}
	return out
}

func childRows(id uint, draft *models.Draft) *children {
	c := &children{}
	for _, v := range draft.ProductTypes {
		c.productTypes = append(c.productTypes, dbmodels.ProductType{CertificationID: id, ProductType: v})
	}
	for _, v := range draft.MaterialCategories {
		c.materialCategories = append(c.materialCategories, dbmodels.MaterialCategory{CertificationID: id, MaterialCategory: v})
	}
	for _, v := range draft.ProductionLines {
		c.productionLines = append(c.productionLines, dbmodels.ProductionLine{CertificationID: id, ProductionLine: v})
	}
	for _, u := range draft.Attachments() {
		c.uploads = append(c.uploads, dbmodels.Upload{
			ID:              u.ID,
			CertificationID: id,
			Name:            u.Name,
			Data:            u.Data,
			Type:            u.MimeType,
			IsInvoice:       u.IsInvoice,
		})
	}
	return c
}

func historyRow(id uint, change *models.DueDateChange) *dbmodels.DueDateChange {
	return &dbmodels.DueDateChange{
		CertificationID: id,
		PreviousDate:    datatypes.Date(change.PreviousDate),
		NewDate:         datatypes.Date(change.NewDate),
		ChangedAt:       change.ChangedAt.UTC(),
	}
}

// toDomain assembles the aggregate view of a fully preloaded row.
func toDomain(row *dbmodels.Certification) *models.Certification {
	c := &models.Certification{
		ID:            row.ID,
		SerialNumber:  row.ID,
		Stages:        stageDecisions(row),
		RequestedBy:   row.RequestedBy,
		CreatedAt:     row.CreatedAt.UTC(),
		LastUpdatedOn: row.LastUpdatedOn.UTC(),
		Draft: models.Draft{
			ProjectName:       row.ProjectName,
			ProjectDetails:    row.ProjectDetails,
			Material:          row.Material,
			TestingLaboratory: row.TestingLaboratory,
			TestingApprovedBy: deref(row.TestingApprovedBy),
			CertificationType: models.CertificationType(row.CertificationType),
			SampleQuantity:    row.SampleQuantity,
			DueDate:           models.DateOf(time.Time(row.DueDate)),
			Remarks:           row.Remarks,
			Payment: models.Payment{
				Currency: models.Currency(row.Currency),
				Terms:    termsFromRow(row),
			},
		},
	}
	c.Status = approval.DeriveStatus(c.Stages)

	if c.CertificationType == models.Customized {
		c.Customization = &models.Customization{
			CustomerName: deref(row.CustomerName),
			Comments:     deref(row.CustomizationComments),
		}
	}

	for _, p := range row.ProductTypes {
		c.ProductTypes = append(c.ProductTypes, p.ProductType)
	}
	for _, m := range row.MaterialCategories {
		c.MaterialCategories = append(c.MaterialCategories, m.MaterialCategory)
	}
	for _, l := range row.ProductionLines {
		c.ProductionLines = append(c.ProductionLines, l.ProductionLine)
	}
	for _, h := range row.DueDateHistory {
		c.DueDateHistory = append(c.DueDateHistory, models.DueDateChange{
			PreviousDate: models.DateOf(time.Time(h.PreviousDate)),
			NewDate:      models.DateOf(time.Time(h.NewDate)),
			ChangedAt:    h.ChangedAt.UTC(),
		})
	}
	for _, u := range row.Uploads {
		upload := models.Upload{
			ID:        u.ID,
			Name:      u.Name,
			Data:      u.Data,
			MimeType:  u.Type,
			IsInvoice: u.IsInvoice,
		}
		if u.IsInvoice {
			c.Payment.Invoice = &upload
			continue
		}
		c.Uploads = append(c.Uploads, upload)
	}
	return c
}

// termsFromRow rebuilds the payment variant from its columns. Rows were
// validated on the way in, so missing fields are read as zero values.
func termsFromRow(row *dbmodels.Certification) models.PaymentTerms {
	switch models.PaidForBy(row.PaidForBy) {
	case models.PaidByPremier:
		return models.PremierPaid{Amount: row.Amount}
	case models.PaidBySupplier:
		return models.SupplierPaid{SupplierName: deref(row.SupplierName), Amount: row.Amount}
	case models.PaidBySplit:
		return models.SplitPaid{
			SupplierName:   deref(row.SupplierName),
			SupplierAmount: row.SupplierAmount.Decimal,
			PremierAmount:  row.PremierAmount.Decimal,
		}
	default:
		return models.NotDiscussed{}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
