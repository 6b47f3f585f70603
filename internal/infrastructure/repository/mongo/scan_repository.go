// Package mongo stores scan records as documents, one per scan, keyed by a
// string id and always filtered by owner.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const ScansCollection = "scans"

type ScanRepository struct {
	coll *mongo.Collection
}

func NewScanRepository(db *mongo.Database) *ScanRepository {
	return &ScanRepository{coll: db.Collection(ScansCollection)}
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func (r *ScanRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "cropType", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create scan indexes: %w", err)
	}
	return nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *domain.ScanRecord) error {
	if _, err := r.coll.InsertOne(ctx, scan); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) Get(ctx context.Context, ownerID, scanID string) (*domain.ScanRecord, error) {
	var scan domain.ScanRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": scanID, "ownerId": ownerID}).Decode(&scan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", scanID))
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return &scan, nil
}

func (r *ScanRepository) List(ctx context.Context, ownerID string, filter domain.ScanFilter) ([]domain.ScanRecord, int, error) {
	filter = filter.Normalize()
	query := buildScanFilter(ownerID, filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}

	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))
	scans, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return scans, int(total), nil
}

func (r *ScanRepository) ListAll(ctx context.Context, ownerID string) ([]domain.ScanRecord, error) {
	return r.find(ctx, bson.M{"ownerId": ownerID}, options.Find().SetSort(newestFirst))
}

func (r *ScanRepository) Delete(ctx context.Context, ownerID, scanID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": scanID, "ownerId": ownerID})
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.WrapError(domain.ErrScanNotFound, "delete scan", fmt.Errorf("id=%s", scanID))
	}
	return nil
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *ScanRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]domain.ScanRecord, error) {
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]domain.ScanRecord, 0)
	for cur.Next(ctx) {
		var scan domain.ScanRecord
		if err := cur.Decode(&scan); err != nil {
			return nil, fmt.Errorf("decode scan: %w", err)
		}
		out = append(out, fillLists(scan))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

func buildScanFilter(ownerID string, filter domain.ScanFilter) bson.M {
	query := bson.M{"ownerId": ownerID}
	if filter.CropType != "" {
		query["cropType"] = exactFold(filter.CropType)
	}
	if filter.Severity != "" {
		query["severity"] = exactFold(filter.Severity)
	}
	if filter.Search != "" {
		pattern := regexp.QuoteMeta(filter.Search)
		query["$or"] = bson.A{
			bson.M{"diseaseDetected": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"cropType": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return query
}

func exactFold(value string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(value) + "$", "$options": "i"}
}

// fillLists keeps list fields non-nil for documents written without them.
func fillLists(scan domain.ScanRecord) domain.ScanRecord {
	for _, list := range []*[]string{&scan.Symptoms, &scan.Treatment, &scan.Prevention, &scan.OrganicTreatment} {
		if *list == nil {
			*list = []string{}
		}
	}
	return scan
}
