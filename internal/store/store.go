package store

import (
	"context"
	"errors"

	"energybalance/internal/models"
)

var (
	// ErrNotFound means no family matched the lookup.
	ErrNotFound = errors.New("family not found")
	// ErrPartnerTaken means the partner slot was already claimed or the
	// partner has already authenticated.
	ErrPartnerTaken = errors.New("partner slot already taken")
)

// FamilyStore is the persistence contract for family records. The MongoDB
// implementation is durable; the in-memory one loses state on restart.
// Which one backs the server is decided once at startup and business logic
// never sees the difference.
type FamilyStore interface {
	// FindByEmail matches the email against either member slot.
	FindByEmail(ctx context.Context, email string) (*models.Family, error)
	FindByID(ctx context.Context, id string) (*models.Family, error)
	Create(ctx context.Context, family *models.Family) error

	// SaveToken overwrites one slot's credentials. Concurrent refreshes
	// race last-write-wins, which the upstream provider tolerates.
	SaveToken(ctx context.Context, id string, slot models.Slot, token *models.TokenRecord) error

	// SetupPartner records the partner's email and the owner's role choice
	// (the partner role is always the complement). Allowed only until the
	// partner has authenticated; afterwards it fails with ErrPartnerTaken.
	SetupPartner(ctx context.Context, id, partnerEmail string, ownerRole models.Role) error

	// ClaimPartnerSlot atomically fills a vacant partner slot with email,
	// role and credentials. A second claim fails with ErrPartnerTaken, so
	// invite redemption is effectively exactly-once.
	ClaimPartnerSlot(ctx context.Context, id, partnerEmail string, role models.Role, token *models.TokenRecord) error

	SetManualEnergy(ctx context.Context, id string, role models.Role, energy int) error
	// ClearManualEnergy removes every override; clearing an already clear
	// family is a no-op.
	ClearManualEnergy(ctx context.Context, id string) error

	Close(ctx context.Context) error
}
