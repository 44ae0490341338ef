package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/recoverly/followup-agent/internal/store"
	pkgmongo "github.com/recoverly/followup-agent/pkg/mongo"
)

type PolicyRepo struct {
	client *pkgmongo.Client
}

func (r *PolicyRepo) GetByTenant(ctx context.Context, tenantID string) (*store.Policy, error) {
	var p store.Policy
	err := r.client.Collection(colPolicies).FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy: %w", err)
	}
	return &p, nil
}

func (r *PolicyRepo) Upsert(ctx context.Context, p *store.Policy) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.client.Collection(colPolicies).ReplaceOne(ctx,
		bson.M{"tenant_id": p.TenantID}, p, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}

// ListCallable filters at the database: a policy only qualifies for the
// selection phase when it has a payment link and today's weekday is one of
// its call days.
func (r *PolicyRepo) ListCallable(ctx context.Context, weekday string) ([]store.Policy, error) {
	filter := bson.M{
		"payment_link": bson.M{"$nin": bson.A{"", nil}},
		"call_days":    weekday,
	}

	cursor, err := r.client.Collection(colPolicies).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list callable policies: %w", err)
	}
	defer cursor.Close(ctx)

	var policies []store.Policy
	if err := cursor.All(ctx, &policies); err != nil {
		return nil, err
	}
	return policies, nil
}
