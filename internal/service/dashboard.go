package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"energybalance/internal/models"
	"energybalance/internal/store"
)

// Dashboard aggregates both members' energy for one family. An unknown
// email returns {found:false} rather than an error; the front-end treats
// that as "log in again".
func (s *FamilyService) Dashboard(ctx context.Context, email string) (models.DashboardView, error) {
	family, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return models.DashboardView{Found: false}, nil
	}
	if err != nil {
		return models.DashboardView{}, fmt.Errorf("family lookup failed: %w", err)
	}

	now := s.now()

	// The two slots are independent upstream calls; run them concurrently
	// and let each fail on its own.
	var owner, partner models.MemberView
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		owner = s.memberView(ctx, family, models.SlotOwner, now)
	}()
	go func() {
		defer wg.Done()
		partner = s.memberView(ctx, family, models.SlotPartner, now)
	}()
	wg.Wait()

	view := models.DashboardView{Found: true, SetupNeeded: !family.HasPartner()}
	if family.RoleOf(models.SlotOwner) == models.RoleMom {
		view.Mom, view.Dad = &owner, &partner
	} else {
		view.Mom, view.Dad = &partner, &owner
	}
	household := models.Household(view.Mom.Energy, view.Dad.Energy)
	view.Household = &household
	return view, nil
}

// memberView computes one slot in isolation. Any upstream failure degrades
// this slot to disconnected with the default energy and never surfaces to
// the other slot.
func (s *FamilyService) memberView(ctx context.Context, family *models.Family, slot models.Slot, now time.Time) models.MemberView {
	view := models.MemberView{Connected: false, Energy: models.DefaultEnergy}
	role := family.RoleOf(slot)
	tok := family.Token(slot)

	if tok != nil && tok.Expired(now) {
		rCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
		fresh, err := s.identity.Refresh(rCtx, tok)
		cancel()
		if err != nil {
			log.Printf("token refresh failed for family %s role %s: %v", family.ID, role, err)
			tok = nil
		} else {
			// Concurrent dashboards may both refresh; last write wins,
			// the refresh token stays valid either way.
			if err := s.store.SaveToken(ctx, family.ID, slot, fresh); err != nil {
				log.Printf("failed to store refreshed token for family %s role %s: %v", family.ID, role, err)
			}
			tok = fresh
		}
	}

	if tok != nil {
		fCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
		agg, err := s.fitness.Daily(fCtx, tok.AccessToken, now)
		cancel()
		if err != nil {
			log.Printf("fitness fetch failed for family %s role %s: %v", family.ID, role, err)
		} else {
			view.Connected = true
			view.Energy = models.ComputeEnergy(agg.Steps, agg.HeartPoints)
		}
	}

	// A manual override is authoritative for its role until cleared, no
	// matter what the upstream reported this cycle.
	if manual, ok := family.Manual(role); ok {
		view.Energy = manual
	}
	return view
}
