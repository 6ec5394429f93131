// Package catalog выполняет строгую нормализацию разнородных записей
// товаров в каноническую карточку на границе хранилища.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

var (
	// ErrMissingFields возвращается для записи без обязательных полей.
	ErrMissingFields = errors.New("record missing required fields")
	// ErrInvalidDiscount возвращается, если скидка не меньше базовой цены
	// или процент скидки вне диапазона (0, 100).
	ErrInvalidDiscount = errors.New("invalid discount")
)

// RawRecord описывает запись товара в том виде, в каком она приходит из
// внешних источников. Поля-синонимы (name/title, image/thumbnail)
// сводятся к каноническим при нормализации.
type RawRecord struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name,omitempty"`
	Title           string   `json:"title,omitempty"`
	Price           float64  `json:"price"`
	DiscountPrice   *float64 `json:"discount_price,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	Rating          float64  `json:"rating,omitempty"`
	Stock           int      `json:"stock"`
	SellerID        int64    `json:"seller_id,omitempty"`
	Image           string   `json:"image,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	Images          []string `json:"images,omitempty"`
	Category        string   `json:"category,omitempty"`
}

// Normalize приводит запись к канонической карточке товара. Запись без
// обязательных полей отклоняется с перечислением отсутствующих полей,
// а не дополняется значениями по умолчанию.
func Normalize(rec RawRecord) (model.Product, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = strings.TrimSpace(rec.Title)
	}

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if rec.Price <= 0 {
		missing = append(missing, "price")
	}
	if strings.TrimSpace(rec.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return model.Product{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if rec.Stock < 0 {
		return model.Product{}, fmt.Errorf("negative stock: %d", rec.Stock)
	}

	priceCents := toCents(rec.Price)

	var discountCents *int64
	switch {
	case rec.DiscountPrice != nil:
		v := toCents(*rec.DiscountPrice)
		if v <= 0 || v >= priceCents {
			return model.Product{}, fmt.Errorf("%w: discount price %.2f against price %.2f", ErrInvalidDiscount, *rec.DiscountPrice, rec.Price)
		}
		discountCents = &v
	case rec.DiscountPercent != nil:
		pct := *rec.DiscountPercent
		if pct <= 0 || pct >= 100 {
			return model.Product{}, fmt.Errorf("%w: discount percent %.2f", ErrInvalidDiscount, pct)
		}
		v := int64(math.Round(float64(priceCents) * (100 - pct) / 100))
		discountCents = &v
	}

	images := make([]string, 0, len(rec.Images)+1)
	for _, img := range rec.Images {
		if img != "" {
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		if rec.Image != "" {
			images = append(images, rec.Image)
		} else if rec.Thumbnail != "" {
			images = append(images, rec.Thumbnail)
		}
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return model.Product{
		ID:            id,
		Slug:          Slug(name),
		Name:          name,
		PriceCents:    priceCents,
		DiscountCents: discountCents,
		Rating:        rec.Rating,
		Stock:         rec.Stock,
		SellerID:      rec.SellerID,
		Images:        images,
		Category:      strings.TrimSpace(rec.Category),
	}, nil
}

// Slug строит url-безопасный идентификатор из отображаемого имени.
func Slug(name string) string {
	var b strings.Builder
	prevDash := true

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteRune('-')
			prevDash = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
