package checkout

import (
	"errors"
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
)

func entry(id string, priceCents int64, qty int) model.CartEntry {
	return model.CartEntry{
		Product:        model.Product{ID: id, Name: "product " + id, PriceCents: priceCents},
		Quantity:       qty,
		LineTotalCents: int64(qty) * priceCents,
	}
}

func TestCalculateTotals_ReferenceScenario(t *testing.T) {
	// Одна позиция по 100.00 в количестве 2, стандартная доставка, налог 8%.
	entries := []model.CartEntry{entry("p1", 10000, 2)}

	totals, err := CalculateTotals(entries, ShippingStandard, 800)
	if err != nil {
		t.Fatalf("CalculateTotals: %v", err)
	}

	if totals.SubtotalCents != 20000 {
		t.Fatalf("subtotal = %d, want 20000", totals.SubtotalCents)
	}
	if totals.TaxCents != 1600 {
		t.Fatalf("tax = %d, want 1600", totals.TaxCents)
	}
	if totals.ShippingCents != 599 {
		t.Fatalf("shipping = %d, want 599", totals.ShippingCents)
	}
	if totals.GrandTotalCents != 22199 {
		t.Fatalf("grand total = %d, want 22199", totals.GrandTotalCents)
	}
}

func TestCalculateTotals_GrandTotalIdentity(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.CartEntry
		method  ShippingMethod
		rateBP  int
	}{
		{
			name:    "empty cart",
			entries: nil,
			method:  ShippingStandard,
			rateBP:  800,
		},
		{
			name: "several lines express",
			entries: []model.CartEntry{
				entry("a", 333, 3),
				entry("b", 12999, 1),
				entry("c", 1, 7),
			},
			method: ShippingExpress,
			rateBP: 800,
		},
		{
			name: "odd subtotal overnight",
			entries: []model.CartEntry{
				entry("a", 99, 9),
			},
			method: ShippingOvernight,
			rateBP: 825,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := CalculateTotals(tt.entries, tt.method, tt.rateBP)
			if err != nil {
				t.Fatalf("CalculateTotals: %v", err)
			}

			sum := totals.SubtotalCents + totals.ShippingCents + totals.TaxCents
			if totals.GrandTotalCents != sum {
				t.Fatalf("grand total %d != subtotal %d + shipping %d + tax %d",
					totals.GrandTotalCents, totals.SubtotalCents, totals.ShippingCents, totals.TaxCents)
			}
		})
	}
}

func TestCalculateTotals_UnknownMethod(t *testing.T) {
	_, err := CalculateTotals(nil, ShippingMethod("teleport"), 800)
	if !errors.Is(err, ErrUnknownShippingMethod) {
		t.Fatalf("expected ErrUnknownShippingMethod, got %v", err)
	}
}

func validShipping() *model.ShippingDetails {
	return &model.ShippingDetails{
		Recipient:  "Ivan Petrov",
		Address:    "Lenina 1",
		City:       "Moscow",
		State:      "Moscow",
		PostalCode: "101000",
		Phone:      "+79990001122",
	}
}

func validPayment() *model.PaymentDetails {
	return &model.PaymentDetails{
		CardHolder: "IVAN PETROV",
		CardNumber: "4242424242424242",
		Expiry:     "12/30",
	}
}

func advanceToConfirm(t *testing.T, w *Wizard, userID int64) {
	t.Helper()

	steps := []AdvanceInput{
		{},
		{Shipping: validShipping()},
		{Payment: validPayment()},
	}
	for _, in := range steps {
		if _, err := w.Advance(userID, false, nil, in); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if got := w.Session(userID).Step; got != StepConfirm {
		t.Fatalf("step = %s, want confirm", got)
	}
}

func TestWizard_ReviewRequiresNonEmptyCart(t *testing.T) {
	w := NewWizard()

	if _, err := w.Advance(1, true, nil, AdvanceInput{}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if got := w.Session(1).Step; got != StepReview {
		t.Fatalf("step advanced on empty cart: %s", got)
	}
}

func TestWizard_ShippingStepValidation(t *testing.T) {
	w := NewWizard()

	if _, err := w.Advance(1, false, nil, AdvanceInput{}); err != nil {
		t.Fatalf("Advance to shipping: %v", err)
	}

	// Незаполненные поля доставки блокируют переход.
	_, err := w.Advance(1, false, nil, AdvanceInput{Shipping: &model.ShippingDetails{Recipient: "Ivan"}})
	var incomplete *IncompleteFieldsError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteFieldsError, got %v", err)
	}
	if incomplete.Scope != "shipping" || len(incomplete.Missing) == 0 {
		t.Fatalf("unexpected incomplete error: %+v", incomplete)
	}

	// Неполный профиль блокирует переход с перечислением полей.
	_, err = w.Advance(1, false, []string{"phone", "postal_code"}, AdvanceInput{Shipping: validShipping()})
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteFieldsError for profile, got %v", err)
	}
	if incomplete.Scope != "profile" {
		t.Fatalf("scope = %q, want profile", incomplete.Scope)
	}
	if len(incomplete.Missing) != 2 || incomplete.Missing[0] != "phone" {
		t.Fatalf("missing = %v, want enumerated profile fields", incomplete.Missing)
	}

	// Полные данные пропускают дальше.
	step, err := w.Advance(1, false, nil, AdvanceInput{Shipping: validShipping()})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if step != StepPayment {
		t.Fatalf("step = %s, want payment", step)
	}
}

func TestWizard_PaymentStepValidation(t *testing.T) {
	w := NewWizard()

	if _, err := w.Advance(1, false, nil, AdvanceInput{}); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := w.Advance(1, false, nil, AdvanceInput{Shipping: validShipping()}); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	_, err := w.Advance(1, false, nil, AdvanceInput{Payment: &model.PaymentDetails{CardHolder: "IVAN"}})
	var incomplete *IncompleteFieldsError
	if !errors.As(err, &incomplete) || incomplete.Scope != "payment" {
		t.Fatalf("expected payment IncompleteFieldsError, got %v", err)
	}

	step, err := w.Advance(1, false, nil, AdvanceInput{Payment: validPayment()})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if step != StepConfirm {
		t.Fatalf("step = %s, want confirm", step)
	}
}

func TestWizard_BackIsUnconditional(t *testing.T) {
	w := NewWizard()
	advanceToConfirm(t, w, 1)

	for _, want := range []Step{StepPayment, StepShipping, StepReview, StepReview} {
		if got := w.Back(1); got != want {
			t.Fatalf("Back() = %s, want %s", got, want)
		}
	}
}

func TestWizard_UnknownMethodRejected(t *testing.T) {
	w := NewWizard()

	_, err := w.Advance(1, false, nil, AdvanceInput{Method: ShippingMethod("drone")})
	if !errors.Is(err, ErrUnknownShippingMethod) {
		t.Fatalf("expected ErrUnknownShippingMethod, got %v", err)
	}
}

func TestWizard_DoubleSubmitGuard(t *testing.T) {
	w := NewWizard()
	advanceToConfirm(t, w, 1)

	if err := w.BeginSubmission(1); err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}
	if err := w.BeginSubmission(1); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	// После отмены отправка снова возможна, шаг не меняется.
	w.AbortSubmission(1)
	if got := w.Session(1).Step; got != StepConfirm {
		t.Fatalf("step after abort = %s, want confirm", got)
	}
	if err := w.BeginSubmission(1); err != nil {
		t.Fatalf("BeginSubmission after abort: %v", err)
	}
}

func TestWizard_SubmitRequiresConfirmStep(t *testing.T) {
	w := NewWizard()

	if err := w.BeginSubmission(1); !errors.Is(err, ErrNotReadyToSubmit) {
		t.Fatalf("expected ErrNotReadyToSubmit, got %v", err)
	}
}

func TestWizard_TransactionLifecycle(t *testing.T) {
	w := NewWizard()
	advanceToConfirm(t, w, 1)

	if err := w.BeginSubmission(1); err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}
	w.BindTransaction(1, "tx-1")

	userID, ok := w.UserByTransaction("tx-1")
	if !ok || userID != 1 {
		t.Fatalf("UserByTransaction = (%d, %v), want (1, true)", userID, ok)
	}

	snapshot, ok := w.CompleteSubmission(1)
	if !ok {
		t.Fatalf("CompleteSubmission returned no session")
	}
	if snapshot.Shipping.Recipient != "Ivan Petrov" {
		t.Fatalf("snapshot lost shipping details")
	}

	// Сессия сброшена: новая начинается с первого шага.
	if got := w.Session(1).Step; got != StepReview {
		t.Fatalf("step after completion = %s, want review", got)
	}
	if _, ok := w.UserByTransaction("tx-1"); ok {
		t.Fatalf("transaction mapping must be removed after completion")
	}
}
