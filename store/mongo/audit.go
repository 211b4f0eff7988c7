/*
Package mongo stores the ledger audit trail in a MongoDB collection.

PURPOSE:
  Implements ledger.AuditLog for deployments that keep operational history
  outside the transactional database. Entries are append-only documents in
  the "ledger_audit" collection, keyed by the entry ID.

INDEXES:
  - {at: -1}: newest-first queries
  - {debt_id: 1, at: -1}: per-debt history

SEE ALSO:
  - ledger/store.go: AuditLog, AuditEntry
*/
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/warp/debt-ledger/ledger"
)

const AuditCollection = "ledger_audit"

// AuditLog implements ledger.AuditLog on a MongoDB collection.
type AuditLog struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri, pings the primary and ensures the audit indexes on
// database db.
func Connect(ctx context.Context, uri, db string) (*AuditLog, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	a := &AuditLog{client: client, coll: client.Database(db).Collection(AuditCollection)}
	if err := a.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return a, nil
}

func (a *AuditLog) ensureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "debt_id", Value: 1}, {Key: "at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (a *AuditLog) Close(ctx context.Context) error {
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}

func (a *AuditLog) Append(ctx context.Context, e ledger.AuditEntry) error {
	if a.coll == nil {
		return mongo.ErrClientDisconnected
	}
	e.At = e.At.UTC()
	if _, err := a.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) Query(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	if a.coll == nil {
		return nil, mongo.ErrClientDisconnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := a.coll.Find(ctx, auditFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cur.Close(ctx)

	out := []ledger.AuditEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}
	return out, nil
}

// auditFilter translates f into a bson query document.
func auditFilter(f ledger.AuditFilter) bson.M {
	q := bson.M{}
	if f.ClientID != "" {
		q["client_id"] = string(f.ClientID)
	}
	if f.DebtID != "" {
		q["debt_id"] = string(f.DebtID)
	}
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, act := range f.Actions {
			actions[i] = string(act)
		}
		q["action"] = bson.M{"$in": actions}
	}
	if f.From != nil || f.To != nil {
		at := bson.M{}
		if f.From != nil {
			at["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			at["$lte"] = f.To.UTC()
		}
		q["at"] = at
	}
	return q
}

var _ ledger.AuditLog = (*AuditLog)(nil)
