package mongo

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

func TestScanRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get foreign scan is not found", func(mt *mtest.T) {
		repo := &ScanRepository{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "owner-1", "scan-of-owner-2")
		if !domain.IsKind(err, domain.ErrScanNotFound) {
			t.Fatalf("expected ErrScanNotFound, got %v", err)
		}
	})

	mt.Run("delete missing scan is not found", func(mt *mtest.T) {
		repo := &ScanRepository{coll: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "acknowledged", Value: true}, {Key: "n", Value: 0}})

		err := repo.Delete(context.Background(), "owner-1", "missing")
		if !domain.IsKind(err, domain.ErrScanNotFound) {
			t.Fatalf("expected ErrScanNotFound, got %v", err)
		}
	})

	mt.Run("delete own scan", func(mt *mtest.T) {
		repo := &ScanRepository{coll: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "acknowledged", Value: true}, {Key: "n", Value: 1}})

		if err := repo.Delete(context.Background(), "owner-1", "s1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	})

	mt.Run("create inserts record", func(mt *mtest.T) {
		repo := &ScanRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Create(context.Background(), &domain.ScanRecord{ID: "s1", OwnerID: "owner-1", Disease: domain.HealthyPlant})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	})

	mt.Run("list counts and pages", func(mt *mtest.T) {
		repo := &ScanRepository{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		created := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(4)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "s2"},
				{Key: "ownerId", Value: "owner-1"},
				{Key: "cropType", Value: "Tomato"},
				{Key: "diseaseDetected", Value: "Late Blight"},
				{Key: "confidence", Value: 0.9},
				{Key: "severity", Value: "Severe"},
				{Key: "symptoms", Value: bson.A{"dark spots"}},
				{Key: "createdAt", Value: created},
			}),
		)

		scans, total, err := repo.List(context.Background(), "owner-1", domain.ScanFilter{Limit: 1, Search: "blight"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if total != 4 || len(scans) != 1 {
			t.Fatalf("unexpected page total=%d len=%d", total, len(scans))
		}
		if scans[0].Disease != "Late Blight" || scans[0].Treatment == nil || !scans[0].CreatedAt.Equal(created) {
			t.Fatalf("unexpected scan %+v", scans[0])
		}
	})
}

func TestBuildScanFilterQuotesSearch(t *testing.T) {
	query := buildScanFilter("owner-1", domain.ScanFilter{Search: "a.b*", CropType: "tomato"})
	or, ok := query["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected $or with two clauses, got %v", query["$or"])
	}
	disease := or[0].(bson.M)["diseaseDetected"].(bson.M)
	if disease["$regex"] != `a\.b\*` || disease["$options"] != "i" {
		t.Fatalf("unexpected regex %v", disease)
	}
	crop := query["cropType"].(bson.M)
	if crop["$regex"] != "^tomato$" {
		t.Fatalf("unexpected crop filter %v", crop)
	}
}
