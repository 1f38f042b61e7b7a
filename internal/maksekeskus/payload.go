package maksekeskus

import (
	"fmt"
)

const (
	DefaultCountry = "ee"
	DefaultLocale  = "et"
)

// TransactionParams describes one checkout attempt. Country and Locale fall
// back to DefaultCountry and DefaultLocale when empty.
type TransactionParams struct {
	AmountCents     int64
	Currency        string
	Reference       string
	CustomerIP      string
	ReturnURL       string
	CancelURL       string
	NotificationURL string
	Locale          string
	Country         string
}

type TransactionPayload struct {
	Transaction    TransactionDetails `json:"transaction"`
	Customer       Customer           `json:"customer"`
	TransactionURL TransactionURLs    `json:"transaction_url"`
}

type TransactionDetails struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type Customer struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Locale  string `json:"locale"`
}

type TransactionURLs struct {
	ReturnURL       string `json:"return_url"`
	CancelURL       string `json:"cancel_url"`
	NotificationURL string `json:"notification_url"`
}

func BuildTransactionPayload(params TransactionParams) TransactionPayload {
	country := params.Country
	if country == "" {
		country = DefaultCountry
	}
	locale := params.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	return TransactionPayload{
		Transaction: TransactionDetails{
			Amount:    FormatAmount(params.AmountCents),
			Currency:  params.Currency,
			Reference: params.Reference,
		},
		Customer: Customer{
			IP:      params.CustomerIP,
			Country: country,
			Locale:  locale,
		},
		TransactionURL: TransactionURLs{
			ReturnURL:       params.ReturnURL,
			CancelURL:       params.CancelURL,
			NotificationURL: params.NotificationURL,
		},
	}
}

// FormatAmount renders minor units as a two-decimal major-unit string:
// 849 -> "8.49", 5 -> "0.05".
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
