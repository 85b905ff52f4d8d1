package models

import (
	"fmt"

	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/shopspring/decimal"
)

// PaidForBy names the party that pays for a certification.
type PaidForBy string

const (
	PaidByPremier    PaidForBy = "Premier"
	PaidBySupplier   PaidForBy = "Supplier"
	PaidBySplit      PaidForBy = "Split"
	PaidNotDiscussed PaidForBy = "NotDiscussedYet"
)

// Currency is the billing currency.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// PaymentTerms is the closed set of payment arrangements. The concrete
// variants are PremierPaid, SupplierPaid, SplitPaid and NotDiscussed.
type PaymentTerms interface {
	PaidForBy() PaidForBy
	paymentTerms()
}

// PremierPaid means the company pays the whole fee.
type PremierPaid struct {
	Amount decimal.NullDecimal
}

// SupplierPaid means the named supplier pays the whole fee.
type SupplierPaid struct {
	SupplierName string
	Amount       decimal.NullDecimal
}

// SplitPaid means the fee is shared between the supplier and the company.
type SplitPaid struct {
	SupplierName   string
	SupplierAmount decimal.Decimal
	PremierAmount  decimal.Decimal
}

// NotDiscussed means payment has not been agreed yet.
type NotDiscussed struct{}

func (PremierPaid) PaidForBy() PaidForBy  { return PaidByPremier }
func (SupplierPaid) PaidForBy() PaidForBy { return PaidBySupplier }
func (SplitPaid) PaidForBy() PaidForBy    { return PaidBySplit }
func (NotDiscussed) PaidForBy() PaidForBy { return PaidNotDiscussed }

func (PremierPaid) paymentTerms()  {}
func (SupplierPaid) paymentTerms() {}
func (SplitPaid) paymentTerms()    {}
func (NotDiscussed) paymentTerms() {}

// PaymentFields is the flat shape payment terms arrive in.
type PaymentFields struct {
	PaidForBy      PaidForBy
	SupplierName   string
	Amount         *decimal.Decimal
	SupplierAmount *decimal.Decimal
	PremierAmount  *decimal.Decimal
}

// NewPaymentTerms builds the variant selected by f.PaidForBy and enforces the
// fields that variant requires. Fields that do not belong to the variant are
// dropped.
func NewPaymentTerms(f PaymentFields) (PaymentTerms, error) {
	var negative []string
	for _, a := range []struct {
		field  string
		amount *decimal.Decimal
	}{
		{"paymentInfo.amount", f.Amount},
		{"paymentInfo.supplierAmount", f.SupplierAmount},
		{"paymentInfo.premierAmount", f.PremierAmount},
	} {
		if a.amount != nil && a.amount.IsNegative() {
			negative = append(negative, a.field)
		}
	}
	if len(negative) > 0 {
		return nil, &e.ValidationError{Fields: negative}
	}

	switch f.PaidForBy {
	case PaidByPremier:
		return PremierPaid{Amount: nullable(f.Amount)}, nil
	case PaidBySupplier:
		if f.SupplierName == "" {
			return nil, &e.ValidationError{Fields: []string{"paymentInfo.supplierName"}}
		}
		return SupplierPaid{SupplierName: f.SupplierName, Amount: nullable(f.Amount)}, nil
	case PaidBySplit:
		var missing []string
		if f.SupplierName == "" {
			missing = append(missing, "paymentInfo.supplierName")
		}
		if f.SupplierAmount == nil {
			missing = append(missing, "paymentInfo.supplierAmount")
		}
		if f.PremierAmount == nil {
			missing = append(missing, "paymentInfo.premierAmount")
		}
		if len(missing) > 0 {
			return nil, &e.ValidationError{Fields: missing}
		}
		return SplitPaid{
			SupplierName:   f.SupplierName,
			SupplierAmount: *f.SupplierAmount,
			PremierAmount:  *f.PremierAmount,
		}, nil
	case PaidNotDiscussed:
		return NotDiscussed{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown paidForBy %q", e.ErrInvalidInput, f.PaidForBy)
	}
}

// Fields flattens terms back into the column-shaped representation.
func Fields(terms PaymentTerms) PaymentFields {
	f := PaymentFields{PaidForBy: terms.PaidForBy()}
	switch t := terms.(type) {
	case PremierPaid:
		f.Amount = pointer(t.Amount)
	case SupplierPaid:
		f.SupplierName = t.SupplierName
		f.Amount = pointer(t.Amount)
	case SplitPaid:
		f.SupplierName = t.SupplierName
		f.SupplierAmount = &t.SupplierAmount
		f.PremierAmount = &t.PremierAmount
	}
	return f
}

// Payment groups the billing currency, the agreed terms and the invoice.
type Payment struct {
	Currency Currency
	Terms    PaymentTerms
	Invoice  *Upload
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func pointer(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
