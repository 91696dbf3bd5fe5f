package record

// Monetary field alias lists. Several generations of the CRM API named
// these fields differently; precedence follows the newest payloads first.
// The legacy Turkish names (tutar, indirim, kdv, odenen) come last.
var (
	subtotalAliases = []string{"subtotal", "subTotal", "sub_total", "amount", "tutar"}
	discountAliases = []string{"discount", "discountAmount", "discount_amount", "indirim"}
	vatRateAliases  = []string{"vatRate", "vat_rate", "kdvOrani", "kdv_orani"}
	vatAliases      = []string{"vat", "vatAmount", "vat_amount", "kdv"}
	totalAliases    = []string{"total", "totalAmount", "total_amount", "grandTotal", "toplamTutar"}
	paidAliases     = []string{"paid", "paidAmount", "paid_amount", "payment", "odenen"}
)

// Totals holds the derived financial figures for a sale or proforma.
type Totals struct {
	Subtotal  float64 `json:"subtotal"`
	Discount  float64 `json:"discount"`
	VAT       float64 `json:"vat"`
	Total     float64 `json:"total"`
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
}

// ComputeTotals derives the financial figures for a sale or proforma
// record. Explicit fields win over derived values: a stored total is
// trusted as-is, otherwise total = subtotal - discount + VAT, where VAT
// itself falls back to vatRate% of the discounted subtotal. Remaining is
// always total - paid, floored at zero.
func ComputeTotals(r Record) Totals {
	var t Totals
	t.Subtotal, _ = Number(r, subtotalAliases...)
	t.Discount, _ = Number(r, discountAliases...)
	t.Paid, _ = Number(r, paidAliases...)

	vat, hasVAT := Number(r, vatAliases...)
	if !hasVAT {
		if rate, ok := Number(r, vatRateAliases...); ok {
			vat = (t.Subtotal - t.Discount) * rate / 100
		}
	}
	t.VAT = vat

	total, hasTotal := Number(r, totalAliases...)
	if !hasTotal {
		total = t.Subtotal - t.Discount + t.VAT
	}
	t.Total = total

	t.Remaining = t.Total - t.Paid
	if t.Remaining < 0 {
		t.Remaining = 0
	}
	return t
}

// WithTotals returns a copy of r with the derived figures attached under
// a "totals" key, ready for rendering.
func WithTotals(r Record) Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out["totals"] = ComputeTotals(r)
	return out
}
