package models

import (
	"testing"
	"time"
)

func TestComplementOf(t *testing.T) {
	if got := ComplementOf(RoleMom); got != RoleDad {
		t.Errorf("ComplementOf(mom) = %q, want dad", got)
	}
	if got := ComplementOf(RoleDad); got != RoleMom {
		t.Errorf("ComplementOf(dad) = %q, want mom", got)
	}
}

func TestNewFamilyDefaults(t *testing.T) {
	f := NewFamily("owner@example.com")

	if f.ID == "" {
		t.Error("expected a generated ID")
	}
	if f.OwnerEmail != "owner@example.com" {
		t.Errorf("OwnerEmail = %q", f.OwnerEmail)
	}
	if f.HasPartner() {
		t.Error("new family should have no partner")
	}
	if f.OwnerRole == f.PartnerRole {
		t.Errorf("roles must be complementary, both are %q", f.OwnerRole)
	}
	if f.OwnerRole != DefaultOwnerRole {
		t.Errorf("OwnerRole = %q, want %q", f.OwnerRole, DefaultOwnerRole)
	}
}

func TestSlotFor(t *testing.T) {
	f := NewFamily("owner@example.com")
	f.PartnerEmail = "partner@example.com"

	tests := []struct {
		email string
		slot  Slot
		found bool
	}{
		{"owner@example.com", SlotOwner, true},
		{"partner@example.com", SlotPartner, true},
		{"stranger@example.com", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		slot, ok := f.SlotFor(tt.email)
		if ok != tt.found || slot != tt.slot {
			t.Errorf("SlotFor(%q) = (%q, %v), want (%q, %v)", tt.email, slot, ok, tt.slot, tt.found)
		}
	}
}

func TestSlotForEmptyPartner(t *testing.T) {
	f := NewFamily("owner@example.com")
	if _, ok := f.SlotFor(""); ok {
		t.Error("empty email must not match the vacant partner slot")
	}
}

func TestTokenRecordExpired(t *testing.T) {
	now := time.Now()

	var nilTok *TokenRecord
	if !nilTok.Expired(now) {
		t.Error("nil token should read as expired")
	}

	live := &TokenRecord{Expiry: now.Add(time.Hour)}
	if live.Expired(now) {
		t.Error("future expiry should not be expired")
	}

	stale := &TokenRecord{Expiry: now.Add(-time.Minute)}
	if !stale.Expired(now) {
		t.Error("past expiry should be expired")
	}
}
