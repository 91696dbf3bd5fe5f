package record

// Built-in seed data, used only when both the remote API and the local
// cache are unavailable. The lists are small on purpose: enough for the
// UI to render something meaningful on a fresh install.

// DefaultPatients returns the built-in patient seed list.
func DefaultPatients() []Record {
	return []Record{
		{"id": "p-1001", "name": "Ayşe Kaya", "phone": "+90 532 000 0001", "status": "active"},
		{"id": "p-1002", "name": "Mehmet Demir", "phone": "+90 532 000 0002", "status": "active"},
		{"id": "p-1003", "name": "Elif Yılmaz", "phone": "+90 532 000 0003", "status": "inactive"},
	}
}

// DefaultSales returns the built-in sales seed list.
func DefaultSales() []Record {
	return []Record{
		{"id": "s-2001", "patientId": "p-1001", "name": "Dermal filler package", "subtotal": 4500.0, "discount": 500.0, "vatRate": 10.0, "paid": 2000.0},
		{"id": "s-2002", "patientId": "p-1002", "name": "Laser session", "subtotal": 1200.0, "vatRate": 10.0, "paid": 1320.0},
	}
}

// DefaultProformas returns the built-in proforma seed list.
func DefaultProformas() []Record {
	return []Record{
		{"id": "pf-3001", "patientId": "p-1003", "name": "Treatment plan quote", "subtotal": 8000.0, "discount": 800.0, "vatRate": 10.0},
	}
}

// Defaults returns the seed list for a kind.
func Defaults(kind Kind) []Record {
	switch kind {
	case KindSales:
		return DefaultSales()
	case KindProformas:
		return DefaultProformas()
	default:
		return DefaultPatients()
	}
}
