package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is one of the two fixed labels a family slot can carry.
type Role string

const (
	RoleMom Role = "mom"
	RoleDad Role = "dad"
)

// DefaultOwnerRole is assigned at family creation; the owner can swap it
// during setup until the partner has joined.
const DefaultOwnerRole = RoleDad

// ComplementOf returns the other role label. Every place a partner role is
// derived goes through here, so the two slots can never carry the same label.
func ComplementOf(r Role) Role {
	if r == RoleMom {
		return RoleDad
	}
	return RoleMom
}

// ValidRole reports whether r is one of the two known labels.
func ValidRole(r Role) bool {
	return r == RoleMom || r == RoleDad
}

// Slot distinguishes the two member positions within a family, independent
// of which role label each position currently carries.
type Slot string

const (
	SlotOwner   Slot = "owner"
	SlotPartner Slot = "partner"
)

// TokenRecord holds one member's Google credentials. It is owned exclusively
// by the family that stores it and never leaves the server.
type TokenRecord struct {
	AccessToken  string    `bson:"access_token" json:"-"`
	RefreshToken string    `bson:"refresh_token" json:"-"`
	Expiry       time.Time `bson:"expiry" json:"-"`
}

// Expired reports whether the access token needs a refresh before use.
func (t *TokenRecord) Expired(now time.Time) bool {
	return t == nil || now.After(t.Expiry)
}

// Family is the pairing unit: the owner who authenticated first and an
// optional partner. The struct is stored verbatim as one document.
type Family struct {
	ID           string       `bson:"_id" json:"id"`
	OwnerEmail   string       `bson:"owner_email" json:"ownerEmail"`
	PartnerEmail string       `bson:"partner_email,omitempty" json:"partnerEmail,omitempty"`
	OwnerRole    Role         `bson:"owner_role" json:"ownerRole"`
	PartnerRole  Role         `bson:"partner_role" json:"partnerRole"`
	OwnerToken   *TokenRecord `bson:"owner_token,omitempty" json:"-"`
	PartnerToken *TokenRecord `bson:"partner_token,omitempty" json:"-"`
	ManualEnergy map[Role]int `bson:"manual_energy,omitempty" json:"-"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

// NewFamily creates a family with the authenticating user as owner and the
// default role assignment. The partner slot stays vacant until setup or an
// invite join fills it.
func NewFamily(ownerEmail string) *Family {
	now := time.Now()
	return &Family{
		ID:          uuid.New().String(),
		OwnerEmail:  ownerEmail,
		OwnerRole:   DefaultOwnerRole,
		PartnerRole: ComplementOf(DefaultOwnerRole),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SlotFor returns which member position the email occupies, if any.
func (f *Family) SlotFor(email string) (Slot, bool) {
	switch email {
	case f.OwnerEmail:
		return SlotOwner, true
	case f.PartnerEmail:
		if email != "" {
			return SlotPartner, true
		}
	}
	return "", false
}

// Token returns the credentials stored for a slot, nil when never connected.
func (f *Family) Token(s Slot) *TokenRecord {
	if s == SlotOwner {
		return f.OwnerToken
	}
	return f.PartnerToken
}

// RoleOf returns the role label a slot currently carries.
func (f *Family) RoleOf(s Slot) Role {
	if s == SlotOwner {
		return f.OwnerRole
	}
	return f.PartnerRole
}

// HasPartner reports whether pairing has completed.
func (f *Family) HasPartner() bool {
	return f.PartnerEmail != ""
}

// Manual returns the operator override for a role, when one is set.
func (f *Family) Manual(r Role) (int, bool) {
	v, ok := f.ManualEnergy[r]
	return v, ok
}
