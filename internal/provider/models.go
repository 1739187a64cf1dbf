package provider

// ModelType names a standard data model a provider can serve. Each
// ModelType maps to a specific data structure in pkg/models/.
type ModelType string

const (
	// ModelCurrencyHistorical is a per-calendar-day exchange rate mapping
	// (map[string]float64, keyed YYYY-MM-DD) for a currency pair over a
	// trailing day range.
	ModelCurrencyHistorical ModelType = "CurrencyHistorical"

	// ModelCurrencySnapshot is the latest exchange rate for a pair.
	ModelCurrencySnapshot ModelType = "CurrencySnapshot"
)
