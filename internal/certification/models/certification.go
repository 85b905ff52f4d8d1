// Package models defines the domain model of a certification request: the
// editable draft, the persisted aggregate with its four approval stages, and
// the attachment and due-date history records hanging off it.
package models

import (
	"strings"
	"time"

	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/google/uuid"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// CertificationType distinguishes catalogue certifications from customer-specific ones.
type CertificationType string

const (
	Standard   CertificationType = "Standard"
	Customized CertificationType = "Customized"
)

// Customization describes the customer a customized certification is made for.
type Customization struct {
	CustomerName string
	Comments     string
}

// Upload is an opaque attachment. Data is passed through untouched.
type Upload struct {
	ID        string
	Name      string
	Data      string
	MimeType  string
	IsInvoice bool
}

// DueDateChange is one entry of the append-only due-date history.
type DueDateChange struct {
	PreviousDate time.Time
	NewDate      time.Time
	ChangedAt    time.Time
}

// Draft carries every client-editable field of a certification.
type Draft struct {
	ProjectName       string
	ProjectDetails    string
	Material          string
	TestingLaboratory string
	// TestingApprovedBy is optional.
	TestingApprovedBy  string
	CertificationType  CertificationType
	Customization      *Customization
	SampleQuantity     *int
	DueDate            time.Time
	Remarks            string
	ProductTypes       []string
	MaterialCategories []string
	ProductionLines    []string
	Payment            Payment
	// Uploads are the general supporting files; the invoice lives on Payment.
	Uploads []Upload
}

// Certification is the aggregate: the draft fields plus identity, workflow
// state and the due-date history.
type Certification struct {
	Draft
	ID             uint
	SerialNumber   uint
	Status         Status
	Stages         StageDecisions
	DueDateHistory []DueDateChange
	RequestedBy    string
	CreatedAt      time.Time
	LastUpdatedOn  time.Time
}

// Stage returns the decision recorded on s.
func (c *Certification) Stage(s Stage) StageDecision {
	return c.Stages[s]
}

// Validate checks the draft against the aggregate invariants and returns a
// ValidationError naming every offending field.
func (d *Draft) Validate() error {
	var fields []string
	require := func(ok bool, name string) {
		if !ok {
			fields = append(fields, name)
		}
	}

	require(strings.TrimSpace(d.ProjectName) != "", "projectName")
	require(strings.TrimSpace(d.Material) != "", "material")
	require(strings.TrimSpace(d.TestingLaboratory) != "", "testingLaboratory")
	require(!d.DueDate.IsZero(), "dueDate")
	require(nonBlank(d.ProductTypes), "productType")
	require(nonBlank(d.MaterialCategories), "materialCategories")
	require(allNonBlank(d.ProductionLines), "productionLine")
	require(d.SampleQuantity == nil || *d.SampleQuantity >= 0, "sampleQuantity")

	switch d.CertificationType {
	case Standard:
	case Customized:
		require(d.Customization != nil && strings.TrimSpace(d.Customization.CustomerName) != "",
			"customizationInfo.customerName")
		require(d.Customization != nil && strings.TrimSpace(d.Customization.Comments) != "",
			"customizationInfo.comments")
	default:
		fields = append(fields, "certificationType")
	}

	require(d.Payment.Currency.Valid(), "paymentInfo.currency")
	require(d.Payment.Terms != nil, "paymentInfo.paidForBy")

	seen := make(map[string]bool)
	for _, u := range d.Attachments() {
		require(strings.TrimSpace(u.Name) != "", "uploads.name")
		if u.ID != "" {
			require(!seen[u.ID], "uploads.id")
			seen[u.ID] = true
		}
	}

	if len(fields) > 0 {
		return &e.ValidationError{Fields: fields}
	}
	return nil
}

// Normalize puts the draft into its canonical stored form: due date at UTC
// midnight, customization only on customized requests, invoice flags set and
// every attachment carrying an id.
func (d *Draft) Normalize() {
	d.DueDate = DateOf(d.DueDate)
	if d.CertificationType != Customized {
		d.Customization = nil
	}
	for i := range d.Uploads {
		d.Uploads[i].IsInvoice = false
		if d.Uploads[i].ID == "" {
			d.Uploads[i].ID = uuid.NewString()
		}
	}
	if inv := d.Payment.Invoice; inv != nil {
		inv.IsInvoice = true
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
	}
}

// Attachments returns the general uploads followed by the invoice, if any.
func (d *Draft) Attachments() []Upload {
	out := make([]Upload, 0, len(d.Uploads)+1)
	out = append(out, d.Uploads...)
	if d.Payment.Invoice != nil {
		out = append(out, *d.Payment.Invoice)
	}
	return out
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func nonBlank(values []string) bool {
	return len(values) > 0 && allNonBlank(values)
}

func allNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
