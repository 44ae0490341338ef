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
	"github.com/recoverly/followup-agent/pkg/otel"
)

type CallLogRepo struct {
	client *pkgmongo.Client
}

func (r *CallLogRepo) Create(ctx context.Context, cl *store.CallLog) error {
	_, err := r.client.Collection(colCallLogs).InsertOne(ctx, cl)
	if err != nil {
		return fmt.Errorf("failed to insert call log: %w", err)
	}
	return nil
}

func (r *CallLogRepo) GetByVapiCallID(ctx context.Context, vapiCallID string) (*store.CallLog, error) {
	var cl store.CallLog
	err := r.client.Collection(colCallLogs).FindOne(ctx, bson.M{"vapi_call_id": vapiCallID}).Decode(&cl)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call log: %w", err)
	}
	return &cl, nil
}

func (r *CallLogRepo) List(ctx context.Context, tenantID string, limit, offset int64) ([]store.CallLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.find(ctx, bson.M{"tenant_id": tenantID}, opts)
}

func (r *CallLogRepo) ListRecent(ctx context.Context, tenantID string, limit int64) ([]store.CallLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit)
	return r.find(ctx, bson.M{"tenant_id": tenantID}, opts)
}

func (r *CallLogRepo) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	return r.client.Collection(colCallLogs).CountDocuments(ctx, bson.M{
		"tenant_id":  tenantID,
		"started_at": bson.M{"$gte": since},
	})
}

func (r *CallLogRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]store.CallLog, error) {
	filter := bson.M{
		"outcome":      store.OutcomePending,
		"started_at":   bson.M{"$lt": cutoff},
		"vapi_call_id": bson.M{"$nin": bson.A{"", nil}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: 1}}).
		SetLimit(limit)
	return r.find(ctx, filter, opts)
}

// Reconcile is conditional on the row still being PENDING so the webhook
// path and the batch poll cannot both finalize the same call.
func (r *CallLogRepo) Reconcile(ctx context.Context, id string, endedAt time.Time, durationSeconds int, outcome string) (bool, error) {
	var modified bool
	err := otel.WithDBSpan(ctx, colCallLogs, "update", func(ctx context.Context) error {
		res, err := r.client.Collection(colCallLogs).UpdateOne(ctx,
			bson.M{"id": id, "outcome": store.OutcomePending},
			bson.M{"$set": bson.M{
				"ended_at":         endedAt,
				"duration_seconds": durationSeconds,
				"outcome":          outcome,
			}},
		)
		if err != nil {
			return fmt.Errorf("failed to reconcile call log: %w", err)
		}
		modified = res.ModifiedCount == 1
		return nil
	})
	return modified, err
}

func (r *CallLogRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]store.CallLog, error) {
	cursor, err := r.client.Collection(colCallLogs).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list call logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []store.CallLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
