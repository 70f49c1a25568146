package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount - сумма в рублях. Сайт присылает её числом или строкой ("15000", "15 000,50").
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("сумма %s: %w", data, err)
		}
		*a = Amount(f)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(raw))
	if raw == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("сумма %q не число", raw)
	}
	*a = Amount(f)
	return nil
}

// OrderItem - позиция корзины сайта.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    Amount `json:"price"`
}

// Total возвращает стоимость позиции; количество 0 считается за 1.
func (it OrderItem) Total() float64 {
	q := it.Quantity
	if q <= 0 {
		q = 1
	}
	return float64(it.Price) * float64(q)
}

// SiteOrder - заказ из корзины сайта (POST /send-order).
type SiteOrder struct {
	Name       string      `json:"name"`
	Phone      string      `json:"phone"`
	Items      []OrderItem `json:"items"`
	TotalPrice Amount      `json:"total_price"`
}

// QuickMessage - форма быстрой связи (POST /send-quick-message).
type QuickMessage struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// RetouchRequest - поля multipart-формы заявки на ретушь фото.
type RetouchRequest struct {
	Name      string
	Phone     string
	Comment   string
	FileName  string
	PhotoData []byte
}
