// Package ledger mirrors the remote ledger: the transaction log and the
// low-purchase history of the logged-in user.
package ledger

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// PaymentTypes are the payment types the ledger form offers.
var PaymentTypes = []string{
	"cash",
	"credit",
	"accounts-receivable",
	"accounts-cheque",
	"warranty",
	"return",
	"cash-paid",
	"cheque-paid",
	"cheque-withdraw",
	"a/r online",
	"cheque-deposit",
}

const DefaultPaymentType = "cash"

// RegisterValidators teaches v the payment_type tag.
func RegisterValidators(v *validation.Validator) error {
	return v.RegisterChoice("payment_type", PaymentTypes)
}

// Amount is a numeric form field as the service stores it: sometimes a JSON
// number, sometimes a string, sometimes absent.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

// MarshalJSON writes numeric amounts as numbers and anything else verbatim
// as a string.
func (a Amount) MarshalJSON() ([]byte, error) {
	if f, ok := a.number(); ok {
		return json.Marshal(f)
	}
	return json.Marshal(string(a))
}

// Value is the numeric value of a; absent or non-numeric amounts are 0.
func (a Amount) Value() float64 {
	f, _ := a.number()
	return f
}

// number parses a as a finite float. NaN and the infinities count as
// non-numeric.
func (a Amount) number() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

type Entry struct {
	viewmodel.Identity
	UserID      string `json:"userId,omitempty"`
	ModelName   string `json:"modelName" validate:"required"`
	ItemCode    string `json:"itemCode,omitempty"`
	Quantity    Amount `json:"quantity" validate:"required"`
	Sales       Amount `json:"sales"`
	Purchase    Amount `json:"purchase"`
	PaymentType string `json:"paymentType" validate:"required,payment_type"`
}

func (e Entry) WithRecordID(id string) Entry {
	e.Identity = e.Identity.WithID(id)
	return e
}

// RunningQuantity is quantity - sales + purchase.
func (e Entry) RunningQuantity() float64 {
	return e.Quantity.Value() - e.Sales.Value() + e.Purchase.Value()
}

// Row is an entry as rendered, with its derived column.
type Row struct {
	Entry
	RunningQuantity float64 `json:"runningQuantity"`
}

// Rows derives the rendered table from the current entries.
func Rows(entries []Entry) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Entry: e, RunningQuantity: e.RunningQuantity()}
	}
	return rows
}
