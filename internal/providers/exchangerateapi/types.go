package exchangerateapi

import "fmt"

// --- exchangerate-api.com response types ---

const resultSuccess = "success"

// historyResponse is the /history/{base}/{y}/{m}/{d} document. On failure
// the service still answers 200 with result != "success" and an
// error-type field.
type historyResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	Year            int                `json:"year"`
	Month           int                `json:"month"`
	Day             int                `json:"day"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// latestResponse is the /latest/{base} document.
type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// rates returns the conversion table from a successful response, or the
// provider-reported failure. The duck-typed "maybe success" document is
// resolved into exactly one of the two variants here, at the boundary.
func (r *historyResponse) rates() (map[string]float64, error) {
	if r.Result != resultSuccess {
		reason := r.ErrorType
		if reason == "" {
			reason = "unknown error"
		}
		return nil, fmt.Errorf("provider reported failure: %s", reason)
	}
	return r.ConversionRates, nil
}
