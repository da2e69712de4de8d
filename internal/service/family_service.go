package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"energybalance/internal/googlefit"
	"energybalance/internal/invite"
	"energybalance/internal/models"
	"energybalance/internal/store"
)

var (
	ErrFamilyNotFound = errors.New("family not found")
	ErrNotOwner       = errors.New("only the family owner can run setup")
	ErrAlreadyPaired  = errors.New("partner has already joined")
	ErrInvalidRole    = errors.New("unknown role")
)

// OAuth state markers: a plain login, or an invite code riding along.
const (
	stateLogin        = "login"
	inviteStatePrefix = "invite:"
)

// Every upstream call (exchange, refresh, userinfo, fitness) gets its own
// bounded timeout; a timeout is treated like any other adapter failure.
const upstreamTimeout = 10 * time.Second

// IdentityProvider is the slice of the Google OAuth client the service
// depends on.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.TokenRecord, error)
	Refresh(ctx context.Context, tok *models.TokenRecord) (*models.TokenRecord, error)
	Email(ctx context.Context, accessToken string) (string, error)
}

// FitnessProvider fetches the current day's activity aggregate.
type FitnessProvider interface {
	Daily(ctx context.Context, accessToken string, asOf time.Time) (googlefit.DailyAggregate, error)
}

// FamilyService owns the family lifecycle: OAuth callback dispatch, setup
// and invite pairing, token refresh, manual overrides and the dashboard
// aggregation.
type FamilyService struct {
	store    store.FamilyStore
	identity IdentityProvider
	fitness  FitnessProvider
	invites  *invite.Registry
	now      func() time.Time
}

func NewFamilyService(st store.FamilyStore, identity IdentityProvider, fitness FitnessProvider, invites *invite.Registry) *FamilyService {
	return &FamilyService{
		store:    st,
		identity: identity,
		fitness:  fitness,
		invites:  invites,
		now:      time.Now,
	}
}

// LoginURL builds the consent URL. A non-empty invite code is encoded into
// the OAuth state and comes back on the callback.
func (s *FamilyService) LoginURL(inviteCode string) string {
	state := stateLogin
	if inviteCode != "" {
		state = inviteStatePrefix + inviteCode
	}
	return s.identity.AuthCodeURL(state)
}

// CallbackResult tells the handler how to redirect after a callback.
type CallbackResult struct {
	Email       string
	SetupNeeded bool
	Joined      bool
	// InviteFailed marks an invite code that could not be honored
	// (expired, spent, or the family already paired). The flow falls
	// through to a normal login for compatibility; this flag makes the
	// outcome observable.
	InviteFailed bool
}

// HandleCallback runs the per-callback state machine: exchange the code,
// resolve the email, then branch on the state marker into the join path or
// the normal login path.
func (s *FamilyService) HandleCallback(ctx context.Context, code, state string) (CallbackResult, error) {
	exCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	tok, err := s.identity.Exchange(exCtx, code)
	cancel()
	if err != nil {
		return CallbackResult{}, fmt.Errorf("code exchange failed: %w", err)
	}

	emCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	email, err := s.identity.Email(emCtx, tok.AccessToken)
	cancel()
	if err != nil {
		return CallbackResult{}, fmt.Errorf("identity resolution failed: %w", err)
	}

	res := CallbackResult{Email: email}

	if inviteCode, ok := strings.CutPrefix(state, inviteStatePrefix); ok {
		joined, err := s.joinByInvite(ctx, inviteCode, email, tok)
		if err != nil {
			return CallbackResult{}, err
		}
		if joined {
			res.Joined = true
			return res, nil
		}
		res.InviteFailed = true
	}

	family, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		slot, _ := family.SlotFor(email)
		if err := s.store.SaveToken(ctx, family.ID, slot, tok); err != nil {
			return CallbackResult{}, fmt.Errorf("failed to store tokens: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		family = models.NewFamily(email)
		family.OwnerToken = tok
		if err := s.store.Create(ctx, family); err != nil {
			return CallbackResult{}, fmt.Errorf("failed to create family: %w", err)
		}
		res.SetupNeeded = true
	default:
		return CallbackResult{}, fmt.Errorf("family lookup failed: %w", err)
	}
	return res, nil
}

// joinByInvite redeems the code and claims the partner slot with the role
// complementary to the owner's. false with a nil error means the invite
// could not be honored and the caller continues as a normal login.
func (s *FamilyService) joinByInvite(ctx context.Context, code, email string, tok *models.TokenRecord) (bool, error) {
	familyID, ok := s.invites.Redeem(code)
	if !ok {
		return false, nil
	}

	family, err := s.store.FindByID(ctx, familyID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("invited family lookup failed: %w", err)
	}
	if family.OwnerEmail == email {
		// The owner opened their own invite link.
		return false, nil
	}
	if existing, err := s.store.FindByEmail(ctx, email); err == nil && existing.ID != family.ID {
		// Already a member elsewhere; an email belongs to one family.
		return false, nil
	}

	err = s.store.ClaimPartnerSlot(ctx, family.ID, email, models.ComplementOf(family.OwnerRole), tok)
	if errors.Is(err, store.ErrPartnerTaken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim partner slot: %w", err)
	}

	s.invites.Delete(code)
	return true, nil
}

// Setup records the partner's email and the owner's role choice. Owner-only,
// and only until the partner has authenticated.
func (s *FamilyService) Setup(ctx context.Context, myEmail, partnerEmail string, myRole models.Role) error {
	if !models.ValidRole(myRole) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, myRole)
	}

	family, err := s.findByEmail(ctx, myEmail)
	if err != nil {
		return err
	}
	if family.OwnerEmail != myEmail {
		return ErrNotOwner
	}

	err = s.store.SetupPartner(ctx, family.ID, partnerEmail, myRole)
	if errors.Is(err, store.ErrPartnerTaken) {
		return ErrAlreadyPaired
	}
	if err != nil {
		return fmt.Errorf("failed to save setup: %w", err)
	}
	return nil
}

// CreateInvite issues a short-lived code the partner can redeem to join.
func (s *FamilyService) CreateInvite(ctx context.Context, email string) (string, error) {
	family, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	code, err := s.invites.Issue(family.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue invite: %w", err)
	}
	return code, nil
}

// SetManualEnergy stores an operator override for the caller's role. The
// value is clamped to [0,100] and wins over computed energy until cleared.
func (s *FamilyService) SetManualEnergy(ctx context.Context, email string, energy int) (models.Role, int, error) {
	family, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", 0, err
	}
	slot, _ := family.SlotFor(email)
	role := family.RoleOf(slot)

	energy = models.ClampEnergy(energy)
	if err := s.store.SetManualEnergy(ctx, family.ID, role, energy); err != nil {
		return "", 0, fmt.Errorf("failed to set manual energy: %w", err)
	}
	return role, energy, nil
}

// ResetDailyEnergy clears every manual override for the caller's family.
// Safe to call repeatedly; calls after the first are no-ops.
func (s *FamilyService) ResetDailyEnergy(ctx context.Context, email string) error {
	family, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.store.ClearManualEnergy(ctx, family.ID); err != nil {
		return fmt.Errorf("failed to reset energy: %w", err)
	}
	return nil
}

func (s *FamilyService) findByEmail(ctx context.Context, email string) (*models.Family, error) {
	family, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("family lookup failed: %w", err)
	}
	return family, nil
}
