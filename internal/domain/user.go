package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserNotFound is returned by repositories when no record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserDeleted is returned when a transition targets a logically deleted user.
	ErrUserDeleted = errors.New("user has been deleted")
	// ErrDuplicateUser is returned by a store that rejects a write because
	// another active user already holds the name or email.
	ErrDuplicateUser = errors.New("name or email already in use by an active user")
)

// UserState represents lifecycle states for a user.
type UserState string

const (
	UserStateActive    UserState = "ACTIVE"
	UserStateSuspended UserState = "SUSPENDED"
	UserStateDeleted   UserState = "DELETED"
)

// PhoneNumber accepts either a JSON string or a JSON number and keeps its
// textual form, so a literal 0 is a value rather than an absent field.
type PhoneNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("phoneNumber must be a string or a number")
	}
	*p = PhoneNumber(n.String())
	return nil
}

// Address is the structured postal sub-record of a user.
type Address struct {
	Address    string `json:"address" bson:"address"`
	City       string `json:"city,omitempty" bson:"city,omitempty"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty" bson:"postalCode,omitempty"`
	Country    string `json:"country,omitempty" bson:"country,omitempty"`
}

// Phone is the structured phone sub-record of a user.
type Phone struct {
	PhoneNumber PhoneNumber `json:"phoneNumber" bson:"phoneNumber"`
	CountryCode string      `json:"countryCode,omitempty" bson:"countryCode,omitempty"`
	Extension   string      `json:"extension,omitempty" bson:"extension,omitempty"`
}

// AddressPatch carries the address fields supplied by a partial update.
type AddressPatch struct {
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// PhonePatch carries the phone fields supplied by a partial update.
type PhonePatch struct {
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
	CountryCode *string      `json:"countryCode,omitempty"`
	Extension   *string      `json:"extension,omitempty"`
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Name    *string       `json:"name,omitempty"`
	Email   *string       `json:"email,omitempty"`
	Address *AddressPatch `json:"address,omitempty"`
	Phone   *PhonePatch   `json:"phone,omitempty"`
}

// User is the domain model for a managed customer account.
type User struct {
	UserID    string    `json:"userId" bson:"userId"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Address   Address   `json:"address" bson:"address"`
	Phone     Phone     `json:"phone" bson:"phone"`
	Suspended bool      `json:"suspended" bson:"suspended"`
	Deleted   bool      `json:"deleted" bson:"deleted"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// State derives the lifecycle state from the stored flags.
func (u *User) State() UserState {
	switch {
	case u.Deleted:
		return UserStateDeleted
	case u.Suspended:
		return UserStateSuspended
	default:
		return UserStateActive
	}
}

// ApplyPatch merges a partial update into the user.
func (u *User) ApplyPatch(p UserPatch, now time.Time) error {
	if u.Deleted {
		return ErrUserDeleted
	}
	if p.Name != nil && *p.Name != "" {
		u.Name = *p.Name
	}
	if p.Email != nil && *p.Email != "" {
		u.Email = *p.Email
	}
	if p.Address != nil {
		u.Address = u.Address.Merge(*p.Address)
	}
	if p.Phone != nil {
		u.Phone = u.Phone.Merge(*p.Phone)
	}
	u.UpdatedAt = now
	return nil
}

// Suspend sets the suspended flag. Suspending a suspended user is allowed.
func (u *User) Suspend(now time.Time) error {
	if u.Deleted {
		return ErrUserDeleted
	}
	u.Suspended = true
	u.UpdatedAt = now
	return nil
}

// Reactivate clears the suspended flag.
func (u *User) Reactivate(now time.Time) error {
	if u.Deleted {
		return ErrUserDeleted
	}
	u.Suspended = false
	u.UpdatedAt = now
	return nil
}

// MarkDeleted logically deletes the user. Deleted is terminal.
func (u *User) MarkDeleted(now time.Time) error {
	if u.Deleted {
		return ErrUserDeleted
	}
	u.Deleted = true
	u.UpdatedAt = now
	return nil
}

// Merge returns a copy of a with every supplied field of p applied.
func (a Address) Merge(p AddressPatch) Address {
	if p.Address != nil {
		a.Address = *p.Address
	}
	if p.City != nil {
		a.City = *p.City
	}
	if p.State != nil {
		a.State = *p.State
	}
	if p.PostalCode != nil {
		a.PostalCode = *p.PostalCode
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	return a
}

// Merge returns a copy of ph with every supplied field of p applied.
func (ph Phone) Merge(p PhonePatch) Phone {
	if p.PhoneNumber != nil {
		ph.PhoneNumber = *p.PhoneNumber
	}
	if p.CountryCode != nil {
		ph.CountryCode = *p.CountryCode
	}
	if p.Extension != nil {
		ph.Extension = *p.Extension
	}
	return ph
}
