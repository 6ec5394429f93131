// Package checkout реализует оформление заказа: расчёт стоимости и
// линейный мастер из четырёх шагов.
package checkout

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ShippingMethod описывает способ доставки.
type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

// shippingFees задаёт фиксированную стоимость доставки в минорных единицах.
var shippingFees = map[ShippingMethod]int64{
	ShippingStandard:  599,
	ShippingExpress:   1299,
	ShippingOvernight: 2499,
}

// ErrUnknownShippingMethod возвращается для неизвестного способа доставки.
var ErrUnknownShippingMethod = errors.New("unknown shipping method")

// Totals содержит стоимостные поля снимка оформления заказа.
// Инвариант: GrandTotalCents = SubtotalCents + ShippingCents + TaxCents.
type Totals struct {
	SubtotalCents   int64
	ShippingCents   int64
	TaxCents        int64
	GrandTotalCents int64
}

// CalculateTotals вычисляет стоимость заказа по позициям корзины.
// Суммы позиций уже хранятся в целых минорных единицах, поэтому
// накопления ошибки плавающей точки не возникает. Налог округляется
// арифметически от ставки в базисных пунктах.
func CalculateTotals(entries []model.CartEntry, method ShippingMethod, taxRateBasisPoints int) (Totals, error) {
	fee, ok := shippingFees[method]
	if !ok {
		return Totals{}, fmt.Errorf("%w: %q", ErrUnknownShippingMethod, method)
	}

	var subtotal int64
	for _, e := range entries {
		subtotal += e.LineTotalCents
	}

	tax := (subtotal*int64(taxRateBasisPoints) + 5000) / 10000

	return Totals{
		SubtotalCents:   subtotal,
		ShippingCents:   fee,
		TaxCents:        tax,
		GrandTotalCents: subtotal + fee + tax,
	}, nil
}
