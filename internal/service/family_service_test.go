package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"energybalance/internal/googlefit"
	"energybalance/internal/invite"
	"energybalance/internal/models"
	"energybalance/internal/store"
)

type fakeIdentity struct {
	exchangeTok *models.TokenRecord
	exchangeErr error
	email       string
	emailErr    error
	refresh     func(tok *models.TokenRecord) (*models.TokenRecord, error)
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeIdentity) Exchange(context.Context, string) (*models.TokenRecord, error) {
	return f.exchangeTok, f.exchangeErr
}

func (f *fakeIdentity) Refresh(_ context.Context, tok *models.TokenRecord) (*models.TokenRecord, error) {
	if f.refresh == nil {
		return nil, errors.New("refresh not configured")
	}
	return f.refresh(tok)
}

func (f *fakeIdentity) Email(context.Context, string) (string, error) {
	return f.email, f.emailErr
}

type fakeFitness struct {
	daily func(accessToken string) (googlefit.DailyAggregate, error)
}

func (f *fakeFitness) Daily(_ context.Context, accessToken string, _ time.Time) (googlefit.DailyAggregate, error) {
	if f.daily == nil {
		return googlefit.DailyAggregate{}, nil
	}
	return f.daily(accessToken)
}

func freshToken(access string) *models.TokenRecord {
	return &models.TokenRecord{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		Expiry:       time.Now().Add(time.Hour),
	}
}

func newTestService(st store.FamilyStore, id IdentityProvider, fit FitnessProvider) (*FamilyService, *invite.Registry) {
	invites := invite.New(time.Hour)
	return NewFamilyService(st, id, fit, invites), invites
}

func TestLoginURLState(t *testing.T) {
	svc, _ := newTestService(store.NewMemory(), &fakeIdentity{}, &fakeFitness{})

	if got := svc.LoginURL(""); got != "https://accounts.example.com/auth?state=login" {
		t.Errorf("plain login URL = %q", got)
	}
	if got := svc.LoginURL("ABC123"); got != "https://accounts.example.com/auth?state=invite:ABC123" {
		t.Errorf("invite login URL = %q", got)
	}
}

func TestHandleCallbackNewSignup(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(st, &fakeIdentity{exchangeTok: freshToken("at-1"), email: "dad@example.com"}, &fakeFitness{})

	res, err := svc.HandleCallback(ctx, "code", "login")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res.Email != "dad@example.com" || !res.SetupNeeded || res.Joined {
		t.Errorf("result = %+v, want setup needed for dad@example.com", res)
	}

	fam, err := st.FindByEmail(ctx, "dad@example.com")
	if err != nil {
		t.Fatalf("family not created: %v", err)
	}
	if fam.OwnerToken == nil || fam.OwnerToken.AccessToken != "at-1" {
		t.Error("owner token not stored")
	}
	if fam.OwnerRole == fam.PartnerRole {
		t.Error("default roles must be complementary")
	}
}

func TestHandleCallbackExistingLogin(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("dad@example.com")
	fam.OwnerToken = freshToken("old")
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, _ := newTestService(st, &fakeIdentity{exchangeTok: freshToken("new"), email: "dad@example.com"}, &fakeFitness{})

	res, err := svc.HandleCallback(ctx, "code", "login")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res.SetupNeeded || res.Joined {
		t.Errorf("existing login should carry no flags, got %+v", res)
	}

	got, _ := st.FindByID(ctx, fam.ID)
	if got.OwnerToken.AccessToken != "new" {
		t.Errorf("owner token = %q, want refreshed on every login", got.OwnerToken.AccessToken)
	}
}

func TestHandleCallbackInviteJoin(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("dad@example.com")
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, invites := newTestService(st, &fakeIdentity{exchangeTok: freshToken("p-at"), email: "mom@example.com"}, &fakeFitness{})

	code, err := invites.Issue(fam.ID)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.HandleCallback(ctx, "authcode", "invite:"+code)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.Joined || res.SetupNeeded || res.InviteFailed {
		t.Errorf("result = %+v, want joined", res)
	}

	got, _ := st.FindByID(ctx, fam.ID)
	if got.PartnerEmail != "mom@example.com" {
		t.Errorf("PartnerEmail = %q", got.PartnerEmail)
	}
	if got.PartnerRole != models.ComplementOf(got.OwnerRole) {
		t.Errorf("partner role %q must complement owner role %q", got.PartnerRole, got.OwnerRole)
	}
	if got.PartnerToken == nil || got.PartnerToken.AccessToken != "p-at" {
		t.Error("partner token not stored on join")
	}

	// The code is spent after a successful pairing.
	if _, ok := invites.Redeem(code); ok {
		t.Error("invite code still redeemable after join")
	}
}

func TestHandleCallbackInvalidInviteFallsThrough(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc, _ := newTestService(st, &fakeIdentity{exchangeTok: freshToken("at"), email: "mom@example.com"}, &fakeFitness{})

	res, err := svc.HandleCallback(ctx, "authcode", "invite:BOGUS1")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.InviteFailed {
		t.Error("expected InviteFailed marker")
	}
	if res.Joined {
		t.Error("bogus invite must not join")
	}
	// The flow continues as a normal first login.
	if !res.SetupNeeded {
		t.Error("fallback login should have created a fresh family")
	}
	if _, err := st.FindByEmail(ctx, "mom@example.com"); err != nil {
		t.Errorf("fallback family missing: %v", err)
	}
}

func TestHandleCallbackInviteToFullFamily(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("dad@example.com")
	fam.PartnerEmail = "mom@example.com"
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, invites := newTestService(st, &fakeIdentity{exchangeTok: freshToken("at"), email: "aunt@example.com"}, &fakeFitness{})
	code, _ := invites.Issue(fam.ID)

	res, err := svc.HandleCallback(ctx, "authcode", "invite:"+code)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res.Joined {
		t.Error("a full family accepted a third member")
	}
	if !res.InviteFailed || !res.SetupNeeded {
		t.Errorf("result = %+v, want fallback to a new family", res)
	}

	got, _ := st.FindByID(ctx, fam.ID)
	if got.PartnerEmail != "mom@example.com" {
		t.Errorf("existing pairing was overwritten: %q", got.PartnerEmail)
	}
}

func TestHandleCallbackAuthFailures(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(store.NewMemory(), &fakeIdentity{exchangeErr: googlefit.ErrAuthRejected}, &fakeFitness{})
	if _, err := svc.HandleCallback(ctx, "bad", "login"); !errors.Is(err, googlefit.ErrAuthRejected) {
		t.Errorf("exchange failure: err = %v, want ErrAuthRejected", err)
	}

	svc, _ = newTestService(store.NewMemory(), &fakeIdentity{exchangeTok: freshToken("at"), emailErr: googlefit.ErrNoIdentity}, &fakeFitness{})
	if _, err := svc.HandleCallback(ctx, "code", "login"); !errors.Is(err, googlefit.ErrNoIdentity) {
		t.Errorf("identity failure: err = %v, want ErrNoIdentity", err)
	}
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("owner@example.com")
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, _ := newTestService(st, &fakeIdentity{}, &fakeFitness{})

	if err := svc.Setup(ctx, "owner@example.com", "partner@example.com", models.RoleMom); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	got, _ := st.FindByID(ctx, fam.ID)
	if got.PartnerEmail != "partner@example.com" {
		t.Errorf("PartnerEmail = %q", got.PartnerEmail)
	}
	if got.OwnerRole != models.RoleMom || got.PartnerRole != models.RoleDad {
		t.Errorf("roles = (%q, %q), want owner mom / partner dad", got.OwnerRole, got.PartnerRole)
	}

	if err := svc.Setup(ctx, "nobody@example.com", "x@example.com", models.RoleMom); !errors.Is(err, ErrFamilyNotFound) {
		t.Errorf("unknown caller: err = %v, want ErrFamilyNotFound", err)
	}
	if err := svc.Setup(ctx, "partner@example.com", "owner@example.com", models.RoleDad); !errors.Is(err, ErrNotOwner) {
		t.Errorf("partner caller: err = %v, want ErrNotOwner", err)
	}
	if err := svc.Setup(ctx, "owner@example.com", "x@example.com", models.Role("uncle")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role: err = %v, want ErrInvalidRole", err)
	}

	// Once the partner has authenticated, the pairing is locked in.
	if err := st.SaveToken(ctx, fam.ID, models.SlotPartner, freshToken("pt")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Setup(ctx, "owner@example.com", "other@example.com", models.RoleDad); !errors.Is(err, ErrAlreadyPaired) {
		t.Errorf("setup after join: err = %v, want ErrAlreadyPaired", err)
	}
}

func TestCreateInvite(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("owner@example.com")
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, invites := newTestService(st, &fakeIdentity{}, &fakeFitness{})

	code, err := svc.CreateInvite(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if familyID, ok := invites.Redeem(code); !ok || familyID != fam.ID {
		t.Errorf("Redeem(%q) = (%q, %v), want the issuing family", code, familyID, ok)
	}

	if _, err := svc.CreateInvite(ctx, "nobody@example.com"); !errors.Is(err, ErrFamilyNotFound) {
		t.Errorf("unknown email: err = %v, want ErrFamilyNotFound", err)
	}
}

func TestSetManualEnergyClampsAndResolvesRole(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("owner@example.com") // owner defaults to dad
	fam.PartnerEmail = "partner@example.com"
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, _ := newTestService(st, &fakeIdentity{}, &fakeFitness{})

	role, energy, err := svc.SetManualEnergy(ctx, "owner@example.com", 150)
	if err != nil {
		t.Fatalf("SetManualEnergy: %v", err)
	}
	if role != models.RoleDad || energy != 100 {
		t.Errorf("got (%q, %d), want (dad, 100)", role, energy)
	}

	role, energy, err = svc.SetManualEnergy(ctx, "partner@example.com", -10)
	if err != nil {
		t.Fatalf("SetManualEnergy: %v", err)
	}
	if role != models.RoleMom || energy != 0 {
		t.Errorf("got (%q, %d), want (mom, 0)", role, energy)
	}

	if _, _, err := svc.SetManualEnergy(ctx, "nobody@example.com", 50); !errors.Is(err, ErrFamilyNotFound) {
		t.Errorf("unknown email: err = %v, want ErrFamilyNotFound", err)
	}
}

func TestResetDailyEnergyIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	fam := models.NewFamily("owner@example.com")
	if err := st.Create(ctx, fam); err != nil {
		t.Fatal(err)
	}

	svc, _ := newTestService(st, &fakeIdentity{}, &fakeFitness{})
	if _, _, err := svc.SetManualEnergy(ctx, "owner@example.com", 42); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.ResetDailyEnergy(ctx, "owner@example.com"); err != nil {
			t.Fatalf("reset call %d: %v", i+1, err)
		}
	}

	got, _ := st.FindByID(ctx, fam.ID)
	if _, ok := got.Manual(models.RoleDad); ok {
		t.Error("manual energy survived the reset")
	}
}
