// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// MissingProfileFields возвращает список незаполненных полей профиля,
// обязательных для перехода к оплате. Пустой список означает полный профиль.
func MissingProfileFields(p model.Profile) []string {
	var missing []string

	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	check("first_name", p.FirstName)
	check("last_name", p.LastName)
	check("email", p.Email)
	check("phone", p.Phone)
	check("address", p.Address)
	check("city", p.City)
	check("state", p.State)
	check("postal_code", p.PostalCode)

	return missing
}

// MissingShippingFields возвращает список незаполненных полей доставки.
func MissingShippingFields(s model.ShippingDetails) []string {
	var missing []string

	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	check("recipient", s.Recipient)
	check("address", s.Address)
	check("city", s.City)
	check("state", s.State)
	check("postal_code", s.PostalCode)
	check("phone", s.Phone)

	return missing
}

// MissingPaymentFields возвращает список незаполненных платёжных полей.
func MissingPaymentFields(p model.PaymentDetails) []string {
	var missing []string

	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	check("card_holder", p.CardHolder)
	check("card_number", p.CardNumber)
	check("expiry", p.Expiry)

	return missing
}

// IsValidRating проверяет, что оценка отзыва лежит в диапазоне 1..5.
func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}
