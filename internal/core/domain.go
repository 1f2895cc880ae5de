package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindHomeGroup  Kind = "home_group"
	KindEntry      Kind = "entry"
	KindItem       Kind = "item"
	KindUser       Kind = "user"
	KindMembership Kind = "membership"
)

// Entry types. Income exists in the model but is never counted as spent.
const (
	Expense EntryType = iota
	Income
)

// Payment states of an item. Unset marks legacy rows recorded before the
// flag existed; for totals it behaves exactly like Unpaid.
const (
	Unset PaymentStatus = iota
	Unpaid
	Paid
)

type (
	Kind string

	EntryType int

	PaymentStatus int

	// Entity is implemented by every record the store knows about.
	Entity interface {
		EntityID() string
		EntityKind() Kind
	}

	HomeGroup struct {
		ID        string
		Name      string
		Currency  string // Currency code, fixed at creation
		CreatedAt time.Time
	}

	Entry struct {
		ID          string
		Title       string
		Date        time.Time
		Category    Category
		Type        EntryType
		HomeGroupID string // back-reference, not an ownership pointer
	}

	Item struct {
		ID          string
		Money       decimal.Decimal
		Amount      *int // quantity, nil means 1
		Description string
		EntryID     string
		Position    *int
		Payed       PaymentStatus
	}

	User struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	// Membership links one user to one home group.
	Membership struct {
		ID          string
		UserID      string
		HomeGroupID string
		IsAdmin     bool
		DateJoined  time.Time
	}
)

var (
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyHomeGroup   = errors.New("empty home group id")
	ErrEmptyEntry       = errors.New("empty entry id")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyDescription = errors.New("empty description")
)

// NewID returns a fresh globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

func (h HomeGroup) EntityID() string  { return h.ID }
func (h HomeGroup) EntityKind() Kind  { return KindHomeGroup }
func (e Entry) EntityID() string      { return e.ID }
func (e Entry) EntityKind() Kind      { return KindEntry }
func (i Item) EntityID() string       { return i.ID }
func (i Item) EntityKind() Kind       { return KindItem }
func (u User) EntityID() string       { return u.ID }
func (u User) EntityKind() Kind       { return KindUser }
func (m Membership) EntityID() string { return m.ID }
func (m Membership) EntityKind() Kind { return KindMembership }

func (t EntryType) String() string {
	if t == Income {
		return "income"
	}
	return "expense"
}

// IsIncome reports whether the entry records money coming in.
func (e Entry) IsIncome() bool {
	return e.Type == Income
}

func (p PaymentStatus) String() string {
	switch p {
	case Paid:
		return "paid"
	case Unpaid:
		return "unpaid"
	default:
		return "unset"
	}
}

// IsPaid is true only for an explicit Paid mark.
func (p PaymentStatus) IsPaid() bool {
	return p == Paid
}

// PaymentStatusFrom converts a legacy optional boolean.
func PaymentStatusFrom(payed *bool) PaymentStatus {
	switch {
	case payed == nil:
		return Unset
	case *payed:
		return Paid
	default:
		return Unpaid
	}
}

// Bool converts back to the optional boolean representation.
func (p PaymentStatus) Bool() *bool {
	switch p {
	case Paid:
		v := true
		return &v
	case Unpaid:
		v := false
		return &v
	default:
		return nil
	}
}

// Quantity returns the item quantity, defaulting to 1 for missing or
// malformed values.
func (i Item) Quantity() int {
	if i.Amount == nil || *i.Amount < 1 {
		return 1
	}
	return *i.Amount
}

func (h HomeGroup) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return ErrEmptyName
	}
	if _, ok := LookupCurrency(h.Currency); !ok {
		return ErrInvalidCurrency
	}
	return nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(e.HomeGroupID) == "" {
		return ErrEmptyHomeGroup
	}
	return nil
}

func (i Item) Validate() error {
	if i.Money.IsNegative() {
		return ErrInvalidAmount
	}
	if i.Amount != nil && *i.Amount < 1 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(i.EntryID) == "" {
		return ErrEmptyEntry
	}
	if utf8.RuneCountInString(i.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (m Membership) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(m.HomeGroupID) == "" {
		return ErrEmptyHomeGroup
	}
	return nil
}
