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

type InvoiceRepo struct {
	client *pkgmongo.Client
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *store.Invoice) error {
	_, err := r.client.Collection(colInvoices).InsertOne(ctx, inv)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) CreateMany(ctx context.Context, invs []store.Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(invs))
	for i := range invs {
		docs[i] = invs[i]
	}
	_, err := r.client.Collection(colInvoices).InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert invoices: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, tenantID, id string) (*store.Invoice, error) {
	filter := bson.M{"id": id}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}

	var inv store.Invoice
	err := r.client.Collection(colInvoices).FindOne(ctx, filter).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return &inv, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *store.Invoice) error {
	inv.UpdatedAt = time.Now()
	res, err := r.client.Collection(colInvoices).ReplaceOne(ctx,
		bson.M{"id": inv.ID, "tenant_id": inv.TenantID}, inv)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("invoice %s not found", inv.ID)
	}
	return nil
}

func (r *InvoiceRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.client.Collection(colInvoices).DeleteOne(ctx,
		bson.M{"id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("invoice %s not found", id)
	}
	return nil
}

func (r *InvoiceRepo) DeleteAllForTenant(ctx context.Context, tenantID string) (int64, error) {
	res, err := r.client.Collection(colInvoices).DeleteMany(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete invoices: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *InvoiceRepo) List(ctx context.Context, tenantID, status string) ([]store.Invoice, error) {
	filter := bson.M{"tenant_id": tenantID}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cursor, err := r.client.Collection(colInvoices).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []store.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepo) CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tenant_id": tenantID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.client.Collection(colInvoices).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	return counts, cursor.Err()
}

func (r *InvoiceRepo) ListCallable(ctx context.Context, tenantID string, maxAttempts int, today time.Time, limit int64) ([]store.Invoice, error) {
	filter := bson.M{
		"tenant_id":     tenantID,
		"status":        bson.M{"$in": bson.A{store.InvoiceStatusPending, store.InvoiceStatusInProgress}},
		"call_attempts": bson.M{"$lt": maxAttempts},
		"$or": bson.A{
			bson.M{"next_call_date": bson.M{"$exists": false}},
			bson.M{"next_call_date": nil},
			bson.M{"next_call_date": bson.M{"$lte": today}},
		},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "due_date", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.client.Collection(colInvoices).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list callable invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []store.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepo) MarkInProgress(ctx context.Context, tenantID, id string) error {
	_, err := r.client.Collection(colInvoices).UpdateOne(ctx,
		bson.M{"id": id, "tenant_id": tenantID},
		bson.M{"$set": bson.M{
			"status":     store.InvoiceStatusInProgress,
			"updated_at": time.Now(),
		}},
	)
	return err
}

func (r *InvoiceRepo) ApplyReconciliation(ctx context.Context, id string, attempts int, outcome, status string, nextCallDate *time.Time) error {
	set := bson.M{
		"call_attempts":     attempts,
		"last_call_outcome": outcome,
		"status":            status,
		"updated_at":        time.Now(),
	}
	update := bson.M{"$set": set}
	if nextCallDate != nil {
		set["next_call_date"] = *nextCallDate
	} else {
		update["$unset"] = bson.M{"next_call_date": ""}
	}

	return otel.WithDBSpan(ctx, colInvoices, "update", func(ctx context.Context) error {
		_, err := r.client.Collection(colInvoices).UpdateOne(ctx, bson.M{"id": id}, update)
		if err != nil {
			return fmt.Errorf("failed to apply invoice transition: %w", err)
		}
		return nil
	})
}
