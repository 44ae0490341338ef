package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/recoverly/followup-agent/internal/store"
	pkgmongo "github.com/recoverly/followup-agent/pkg/mongo"
	"github.com/recoverly/followup-agent/pkg/otel"
)

type UsageRepo struct {
	client *pkgmongo.Client
}

// GetOrCreate upserts so concurrent callers in the same period converge on
// one record.
func (r *UsageRepo) GetOrCreate(ctx context.Context, tenantID string, periodStart, periodEnd time.Time, minutesAllocated int) (*store.UsageRecord, error) {
	filter := bson.M{"tenant_id": tenantID, "period_start": periodStart}
	update := bson.M{"$setOnInsert": bson.M{
		"id":                uuid.New().String(),
		"tenant_id":         tenantID,
		"period_start":      periodStart,
		"period_end":        periodEnd,
		"minutes_allocated": minutesAllocated,
		"minutes_used":      float64(0),
	}}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var rec store.UsageRecord
	err := r.client.Collection(colUsage).FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create usage record: %w", err)
	}
	return &rec, nil
}

func (r *UsageRepo) AddMinutes(ctx context.Context, tenantID string, periodStart time.Time, minutes float64) error {
	return otel.WithDBSpan(ctx, colUsage, "update", func(ctx context.Context) error {
		_, err := r.client.Collection(colUsage).UpdateOne(ctx,
			bson.M{"tenant_id": tenantID, "period_start": periodStart},
			bson.M{"$inc": bson.M{"minutes_used": minutes}},
		)
		if err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}
		return nil
	})
}
