package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/recoverly/followup-agent/internal/store"
	pkgmongo "github.com/recoverly/followup-agent/pkg/mongo"
)

type TenantRepo struct {
	client *pkgmongo.Client
}

func (r *TenantRepo) Create(ctx context.Context, t *store.Tenant) error {
	_, err := r.client.Collection(colTenants).InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id string) (*store.Tenant, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *TenantRepo) GetByEmail(ctx context.Context, email string) (*store.Tenant, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *TenantRepo) findOne(ctx context.Context, filter bson.M) (*store.Tenant, error) {
	var t store.Tenant
	err := r.client.Collection(colTenants).FindOne(ctx, filter).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tenant: %w", err)
	}
	return &t, nil
}

func (r *TenantRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.Collection(colTenants).UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"last_login_at": at}},
	)
	return err
}

func (r *TenantRepo) List(ctx context.Context, limit, offset int64) ([]store.Tenant, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.client.Collection(colTenants).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer cursor.Close(ctx)

	var tenants []store.Tenant
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}
