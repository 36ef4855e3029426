package mockapi

import (
	"time"

	"github.com/mark3labs/rirakoi/internal/api"
)

var therapists = []api.Therapist{
	{ID: "7", Name: "田中"},
	{ID: "8", Name: "佐藤"},
	{ID: "9", Name: "鈴木"},
}

var services = []api.Service{
	{ID: "1", Name: "マッサージ", Duration: 60, Price: 8000},
	{ID: "2", Name: "アロマトリートメント", Duration: 90, Price: 12000},
	{ID: "3", Name: "ヘッドスパ", Duration: 30, Price: 4500},
}

// slots are offered on every open day; 23:45 exercises the midnight wrap.
var slots = []string{"10:00", "13:00", "14:30", "17:00", "20:00", "23:45"}

var addresses = []api.Address{
	{ID: "4", Address: "東京都渋谷区神南1-2-3"},
	{ID: "5", Address: "東京都新宿区西新宿2-8-1"},
}

type storedCard struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

var cards = []storedCard{
	{ID: "pm_visa", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	{ID: "pm_master", Brand: "mastercard", Last4: "4444", ExpMonth: 6, ExpYear: 2029},
}

const defaultCard = "pm_visa"

const cancelPolicy = `## キャンセルポリシー

- 予約日の前日までのキャンセル: 無料
- 予約日前日のキャンセル: 施術料金の50%
- 当日のキャンセル・無断キャンセル: 施術料金の100%

キャンセル料は登録済みのカードに請求されます。`

const privacyPolicy = "お客様の個人情報は予約の管理のみに使用します。"

func creditCards() []api.CreditCard {
	out := make([]api.CreditCard, 0, len(cards))
	for _, c := range cards {
		pm := api.PaymentMethod{ID: c.ID, Brand: c.Brand, Last4: c.Last4, ExpMonth: c.ExpMonth, ExpYear: c.ExpYear}
		out = append(out, api.CreditCard{ID: api.ID(c.ID), Display: pm.Label(), Brand: c.Brand, Last4: c.Last4})
	}
	return out
}

// openDates returns the next seven days after now, Sundays included; the
// salon is closed on Sundays so those dates have no slots.
func openDates(now time.Time) []api.DateOption {
	out := make([]api.DateOption, 0, 7)
	for i := 1; i <= 7; i++ {
		out = append(out, api.DateOption{Date: now.AddDate(0, 0, i).Format(time.DateOnly)})
	}
	return out
}

func closed(date string) bool {
	d, err := time.Parse(time.DateOnly, date)
	return err != nil || d.Weekday() == time.Sunday
}
