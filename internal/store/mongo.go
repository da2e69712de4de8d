package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"energybalance/internal/models"
)

const familiesCollection = "families"

// MongoStore persists family documents in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	families *mongo.Collection
}

// OpenMongo connects and pings the deployment. Callers that get an error
// back are expected to fall back to the in-memory store.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &MongoStore{
		client:   client,
		families: client.Database(database).Collection(familiesCollection),
	}, nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.Family, error) {
	filter := bson.M{"$or": []bson.M{
		{"owner_email": email},
		{"partner_email": email},
	}}
	return s.findOne(ctx, filter)
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Family, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Family, error) {
	var family models.Family
	err := s.families.FindOne(ctx, filter).Decode(&family)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load family: %w", err)
	}
	return &family, nil
}

func (s *MongoStore) Create(ctx context.Context, family *models.Family) error {
	if _, err := s.families.InsertOne(ctx, family); err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveToken(ctx context.Context, id string, slot models.Slot, token *models.TokenRecord) error {
	field := "owner_token"
	if slot == models.SlotPartner {
		field = "partner_token"
	}
	update := bson.M{"$set": bson.M{field: token, "updated_at": time.Now()}}
	res, err := s.families.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetupPartner(ctx context.Context, id, partnerEmail string, ownerRole models.Role) error {
	// Only while the partner has not authenticated yet.
	filter := bson.M{"_id": id, "partner_token": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{
		"partner_email": partnerEmail,
		"owner_role":    ownerRole,
		"partner_role":  models.ComplementOf(ownerRole),
		"updated_at":    time.Now(),
	}}
	res, err := s.families.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set up partner: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

func (s *MongoStore) ClaimPartnerSlot(ctx context.Context, id, partnerEmail string, role models.Role, token *models.TokenRecord) error {
	// Compare-and-set: the claim succeeds only while the slot is vacant,
	// so two simultaneous redemptions cannot both pair.
	filter := bson.M{"_id": id, "$or": []bson.M{
		{"partner_email": bson.M{"$exists": false}},
		{"partner_email": ""},
	}}
	update := bson.M{"$set": bson.M{
		"partner_email": partnerEmail,
		"partner_role":  role,
		"partner_token": token,
		"updated_at":    time.Now(),
	}}
	res, err := s.families.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to claim partner slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// explainMiss distinguishes a missing family from a lost compare-and-set.
func (s *MongoStore) explainMiss(ctx context.Context, id string) error {
	if _, err := s.FindByID(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return ErrPartnerTaken
}

func (s *MongoStore) SetManualEnergy(ctx context.Context, id string, role models.Role, energy int) error {
	update := bson.M{"$set": bson.M{
		"manual_energy." + string(role): energy,
		"updated_at":                    time.Now(),
	}}
	res, err := s.families.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to set manual energy: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ClearManualEnergy(ctx context.Context, id string) error {
	update := bson.M{
		"$unset": bson.M{"manual_energy": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}
	res, err := s.families.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to clear manual energy: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
