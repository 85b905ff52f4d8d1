package models

import (
	"testing"

	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestNewPaymentTerms(t *testing.T) {
	tests := []struct {
		name       string
		input      PaymentFields
		want       PaymentTerms
		wantFields []string
		wantErr    error
	}{
		{
			name:  "premier without amount",
			input: PaymentFields{PaidForBy: PaidByPremier},
			want:  PremierPaid{},
		},
		{
			name:  "premier drops supplier fields",
			input: PaymentFields{PaidForBy: PaidByPremier, SupplierName: "Acme", Amount: dec("10")},
			want:  PremierPaid{Amount: decimal.NewNullDecimal(*dec("10"))},
		},
		{
			name:  "supplier",
			input: PaymentFields{PaidForBy: PaidBySupplier, SupplierName: "Acme"},
			want:  SupplierPaid{SupplierName: "Acme"},
		},
		{
			name:       "supplier without name",
			input:      PaymentFields{PaidForBy: PaidBySupplier},
			wantFields: []string{"paymentInfo.supplierName"},
		},
		{
			name:  "split",
			input: PaymentFields{PaidForBy: PaidBySplit, SupplierName: "Acme", SupplierAmount: dec("1"), PremierAmount: dec("2")},
			want:  SplitPaid{SupplierName: "Acme", SupplierAmount: *dec("1"), PremierAmount: *dec("2")},
		},
		{
			name:       "split missing everything",
			input:      PaymentFields{PaidForBy: PaidBySplit},
			wantFields: []string{"paymentInfo.supplierName", "paymentInfo.supplierAmount", "paymentInfo.premierAmount"},
		},
		{
			name:  "not discussed",
			input: PaymentFields{PaidForBy: PaidNotDiscussed, Amount: dec("5")},
			want:  NotDiscussed{},
		},
		{
			name:       "negative amounts",
			input:      PaymentFields{PaidForBy: PaidByPremier, Amount: dec("-1"), PremierAmount: dec("-2")},
			wantFields: []string{"paymentInfo.amount", "paymentInfo.premierAmount"},
		},
		{
			name:    "unknown payer",
			input:   PaymentFields{PaidForBy: "Customer"},
			wantErr: e.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPaymentTerms(tt.input)
			switch {
			case tt.wantFields != nil:
				var verr *e.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantFields, verr.Fields)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.input.PaidForBy, got.PaidForBy())
			}
		})
	}
}

func TestFields(t *testing.T) {
	f := Fields(SplitPaid{SupplierName: "Acme", SupplierAmount: *dec("3"), PremierAmount: *dec("4")})
	assert.Equal(t, PaidBySplit, f.PaidForBy)
	assert.Equal(t, "Acme", f.SupplierName)
	assert.Nil(t, f.Amount)
	require.NotNil(t, f.SupplierAmount)
	assert.True(t, dec("3").Equal(*f.SupplierAmount))

	f = Fields(PremierPaid{})
	assert.Equal(t, PaidByPremier, f.PaidForBy)
	assert.Nil(t, f.Amount)

	f = Fields(NotDiscussed{})
	assert.Equal(t, PaymentFields{PaidForBy: PaidNotDiscussed}, f)
}
