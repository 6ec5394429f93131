package checkout

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// Step описывает шаг мастера оформления заказа.
type Step string

const (
	StepReview   Step = "review"
	StepShipping Step = "shipping"
	StepPayment  Step = "payment"
	StepConfirm  Step = "confirm"
)

var (
	// ErrEmptyCart возвращается при попытке начать оформление пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotReadyToSubmit возвращается при отправке не с последнего шага.
	ErrNotReadyToSubmit = errors.New("checkout is not at the confirm step")
	// ErrSubmissionInFlight возвращается при повторной отправке до ответа
	// платёжного шлюза.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// IncompleteFieldsError перечисляет незаполненные поля, блокирующие переход
// на следующий шаг мастера.
type IncompleteFieldsError struct {
	Scope   string
	Missing []string
}

func (e *IncompleteFieldsError) Error() string {
	return fmt.Sprintf("incomplete %s fields: %s", e.Scope, strings.Join(e.Missing, ", "))
}

// Session хранит состояние мастера оформления одного пользователя.
type Session struct {
	Step          Step
	Shipping      model.ShippingDetails
	Payment       model.PaymentDetails
	Method        ShippingMethod
	InFlight      bool
	TransactionID string
}

// AdvanceInput несёт данные текущего шага при переходе вперёд.
type AdvanceInput struct {
	Shipping *model.ShippingDetails
	Payment  *model.PaymentDetails
	Method   ShippingMethod
}

// Wizard хранит сессии оформления всех пользователей. Переход вперёд
// ограничен проверками шага, переход назад безусловен.
type Wizard struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	byTx     map[string]int64
}

// NewWizard создаёт мастер оформления без активных сессий.
func NewWizard() *Wizard {
	return &Wizard{
		sessions: make(map[int64]*Session),
		byTx:     make(map[string]int64),
	}
}

func (w *Wizard) session(userID int64) *Session {
	s, ok := w.sessions[userID]
	if !ok {
		s = &Session{
			Step:   StepReview,
			Method: ShippingStandard,
		}
		w.sessions[userID] = s
	}
	return s
}

// Session возвращает снимок сессии оформления пользователя.
func (w *Wizard) Session(userID int64) Session {
	w.mu.Lock()
	defer w.mu.Unlock()

	return *w.session(userID)
}

// Advance переводит мастер на следующий шаг. cartEmpty и profileMissing
// передаёт вызывающая сторона, которой принадлежат корзина и профиль.
func (w *Wizard) Advance(userID int64, cartEmpty bool, profileMissing []string, in AdvanceInput) (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session(userID)

	if in.Method != "" {
		if _, ok := shippingFees[in.Method]; !ok {
			return s.Step, fmt.Errorf("%w: %q", ErrUnknownShippingMethod, in.Method)
		}
		s.Method = in.Method
	}

	switch s.Step {
	case StepReview:
		if cartEmpty {
			return s.Step, ErrEmptyCart
		}
		s.Step = StepShipping

	case StepShipping:
		if in.Shipping != nil {
			s.Shipping = *in.Shipping
		}
		if missing := validation.MissingShippingFields(s.Shipping); len(missing) > 0 {
			return s.Step, &IncompleteFieldsError{Scope: "shipping", Missing: missing}
		}
		if len(profileMissing) > 0 {
			return s.Step, &IncompleteFieldsError{Scope: "profile", Missing: profileMissing}
		}
		s.Step = StepPayment

	case StepPayment:
		if in.Payment != nil {
			s.Payment = *in.Payment
		}
		if missing := validation.MissingPaymentFields(s.Payment); len(missing) > 0 {
			return s.Step, &IncompleteFieldsError{Scope: "payment", Missing: missing}
		}
		s.Step = StepConfirm

	case StepConfirm:
		// Дальше шагов нет.
	}

	return s.Step, nil
}

// Back переводит мастер на предыдущий шаг без повторной валидации.
func (w *Wizard) Back(userID int64) Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session(userID)

	switch s.Step {
	case StepShipping:
		s.Step = StepReview
	case StepPayment:
		s.Step = StepShipping
	case StepConfirm:
		s.Step = StepPayment
	}

	return s.Step
}

// BeginSubmission помечает сессию как отправленную в платёжный шлюз.
// Повторная отправка до завершения предыдущей отклоняется.
func (w *Wizard) BeginSubmission(userID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session(userID)

	if s.Step != StepConfirm {
		return ErrNotReadyToSubmit
	}
	if s.InFlight {
		return ErrSubmissionInFlight
	}

	s.InFlight = true
	return nil
}

// BindTransaction связывает сессию с идентификатором транзакции шлюза.
func (w *Wizard) BindTransaction(userID int64, txID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session(userID)
	s.TransactionID = txID
	w.byTx[txID] = userID
}

// UserByTransaction возвращает пользователя по идентификатору транзакции.
func (w *Wizard) UserByTransaction(txID string) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	userID, ok := w.byTx[txID]
	return userID, ok
}

// AbortSubmission снимает признак отправки после отмены платежа.
// Сессия остаётся на текущем шаге, состояние не меняется.
func (w *Wizard) AbortSubmission(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session(userID)
	if s.TransactionID != "" {
		delete(w.byTx, s.TransactionID)
		s.TransactionID = ""
	}
	s.InFlight = false
}

// CompleteSubmission завершает оформление: возвращает финальный снимок
// сессии и удаляет её.
func (w *Wizard) CompleteSubmission(userID int64) (Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions[userID]
	if !ok || !s.InFlight {
		return Session{}, false
	}

	snapshot := *s
	if s.TransactionID != "" {
		delete(w.byTx, s.TransactionID)
	}
	delete(w.sessions, userID)

	return snapshot, true
}
