package booking

import (
	"fmt"

	"github.com/mark3labs/rirakoi/internal/draft"
)

// SummaryRow is one labelled line of the confirmation summary.
type SummaryRow struct {
	Label string
	Value string
}

// Summary lists the draft the way the confirmation view shows it. Unset
// fields render as "-".
func Summary(d draft.Draft) []SummaryRow {
	rows := []SummaryRow{
		{Label: "セラピスト", Value: "-"},
		{Label: "サービス", Value: "-"},
		{Label: "日付", Value: "-"},
		{Label: "時間", Value: "-"},
		{Label: "住所", Value: "-"},
		{Label: "支払方法", Value: "-"},
	}
	if d.Therapist != nil {
		rows[0].Value = d.Therapist.Name
	}
	if d.Service != nil {
		rows[1].Value = d.Service.Name
		if d.Service.Duration > 0 {
			rows[1].Value += fmt.Sprintf(" (%d分)", d.Service.Duration)
		}
	}
	if d.Date != nil {
		rows[2].Value = d.Date.Date
	}
	if d.Time != nil {
		rows[3].Value = d.Time.Time
	}
	if d.Address != nil {
		rows[4].Value = d.Address.Address
	}
	if d.PaymentMethod != nil {
		rows[5].Value = d.PaymentMethod.Label()
	}
	return rows
}
