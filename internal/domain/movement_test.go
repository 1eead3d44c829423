package domain

import (
	"testing"
)

func bucketPtr(b Bucket) *Bucket { return &b }
func int64Ptr(v int64) *int64    { return &v }

func TestMovement_Validate_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		m       Movement
		wantErr bool
	}{
		{
			name: "purchase in to reserved",
			m: Movement{
				ProductID: 1, Type: MovementPurchaseIn, Quantity: 5,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketReserved),
			},
			wantErr: false,
		},
		{
			name: "purchase in to shop",
			m: Movement{
				ProductID: 1, Type: MovementPurchaseIn, Quantity: 5,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(2),
			},
			wantErr: false,
		},
		{
			name: "purchase in from shop is illegal",
			m: Movement{
				ProductID: 1, Type: MovementPurchaseIn, Quantity: 5,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketReserved),
			},
			wantErr: true,
		},
		{
			name: "cancel purchase back to external",
			m: Movement{
				ProductID: 1, Type: MovementCancelPurchase, Quantity: 2,
				SrcBucket: bucketPtr(BucketReserved),
				DstBucket: bucketPtr(BucketExternal),
			},
			wantErr: false,
		},
		{
			name: "allocate reserved to shop",
			m: Movement{
				ProductID: 1, Type: MovementAllocate, Quantity: 3,
				SrcBucket: bucketPtr(BucketReserved),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(7),
			},
			wantErr: false,
		},
		{
			name: "allocate from shop is illegal",
			m: Movement{
				ProductID: 1, Type: MovementAllocate, Quantity: 3,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(7),
			},
			wantErr: true,
		},
		{
			name: "transfer between different shops",
			m: Movement{
				ProductID: 1, Type: MovementTransfer, Quantity: 1,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(2),
			},
			wantErr: false,
		},
		{
			name: "transfer within the same shop must fail",
			m: Movement{
				ProductID: 1, Type: MovementTransfer, Quantity: 1,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(1),
			},
			wantErr: true,
		},
		{
			name: "transfer with non-shop side must fail",
			m: Movement{
				ProductID: 1, Type: MovementTransfer, Quantity: 1,
				SrcBucket: bucketPtr(BucketReserved),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(2),
			},
			wantErr: true,
		},
		{
			name: "adjustment with only destination",
			m: Movement{
				ProductID: 1, Type: MovementAdjustment, Quantity: 4,
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(3),
				Reason:    "stocktake surplus",
			},
			wantErr: false,
		},
		{
			name: "adjustment with only source",
			m: Movement{
				ProductID: 1, Type: MovementAdjustment, Quantity: 4,
				SrcBucket: bucketPtr(BucketReserved),
				Reason:    "stocktake shortage",
			},
			wantErr: false,
		},
		{
			name: "adjustment with both sides must fail",
			m: Movement{
				ProductID: 1, Type: MovementAdjustment, Quantity: 4,
				SrcBucket: bucketPtr(BucketReserved),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(3),
			},
			wantErr: true,
		},
		{
			name: "adjustment with neither side must fail",
			m: Movement{
				ProductID: 1, Type: MovementAdjustment, Quantity: 4,
			},
			wantErr: true,
		},
		{
			name: "sale out shop to external",
			m: Movement{
				ProductID: 1, Type: MovementSaleOut, Quantity: 2,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketExternal),
			},
			wantErr: false,
		},
		{
			name: "sale out from reserved is illegal",
			m: Movement{
				ProductID: 1, Type: MovementSaleOut, Quantity: 2,
				SrcBucket: bucketPtr(BucketReserved),
				DstBucket: bucketPtr(BucketExternal),
			},
			wantErr: true,
		},
		{
			name: "return in to shop",
			m: Movement{
				ProductID: 1, Type: MovementReturnIn, Quantity: 2,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketShop), DstShopID: int64Ptr(1),
			},
			wantErr: false,
		},
		{
			name: "return in to reserved",
			m: Movement{
				ProductID: 1, Type: MovementReturnIn, Quantity: 2,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketReserved),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Validate() returned non-validation error: %v", err)
			}
		})
	}
}

func TestMovement_Validate_Basics(t *testing.T) {
	tests := []struct {
		name string
		m    Movement
	}{
		{
			name: "zero quantity",
			m: Movement{
				ProductID: 1, Type: MovementPurchaseIn, Quantity: 0,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketReserved),
			},
		},
		{
			name: "negative quantity",
			m: Movement{
				ProductID: 1, Type: MovementSaleOut, Quantity: -3,
				SrcBucket: bucketPtr(BucketShop), SrcShopID: int64Ptr(1),
				DstBucket: bucketPtr(BucketExternal),
			},
		},
		{
			name: "missing product",
			m: Movement{
				Type: MovementPurchaseIn, Quantity: 1,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketReserved),
			},
		},
		{
			name: "shop bucket without shop id",
			m: Movement{
				ProductID: 1, Type: MovementSaleOut, Quantity: 1,
				SrcBucket: bucketPtr(BucketShop),
				DstBucket: bucketPtr(BucketExternal),
			},
		},
		{
			name: "shop id on non-shop bucket",
			m: Movement{
				ProductID: 1, Type: MovementPurchaseIn, Quantity: 1,
				SrcBucket: bucketPtr(BucketExternal), SrcShopID: int64Ptr(4),
				DstBucket: bucketPtr(BucketReserved),
			},
		},
		{
			name: "unknown movement type",
			m: Movement{
				ProductID: 1, Type: MovementType("MAGIC"), Quantity: 1,
				SrcBucket: bucketPtr(BucketExternal),
				DstBucket: bucketPtr(BucketReserved),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error, got nil")
			}
			if !IsValidation(err) {
				t.Errorf("Validate() returned non-validation error: %v", err)
			}
		})
	}
}

// Balance conservation: summing signed quantities of a movement sequence per
// bucket must reproduce the bucket totals.
func TestMovement_SignedQuantityFor_BalanceConservation(t *testing.T) {
	shop1 := int64Ptr(1)
	shop2 := int64Ptr(2)

	movements := []*Movement{
		// 10 in from supplier to reserved
		{ProductID: 1, Type: MovementPurchaseIn, Quantity: 10,
			SrcBucket: bucketPtr(BucketExternal), DstBucket: bucketPtr(BucketReserved)},
		// allocate 6 to shop 1
		{ProductID: 1, Type: MovementAllocate, Quantity: 6,
			SrcBucket: bucketPtr(BucketReserved), DstBucket: bucketPtr(BucketShop), DstShopID: shop1},
		// transfer 2 from shop 1 to shop 2
		{ProductID: 1, Type: MovementTransfer, Quantity: 2,
			SrcBucket: bucketPtr(BucketShop), SrcShopID: shop1,
			DstBucket: bucketPtr(BucketShop), DstShopID: shop2},
		// sell 3 out of shop 1
		{ProductID: 1, Type: MovementSaleOut, Quantity: 3,
			SrcBucket: bucketPtr(BucketShop), SrcShopID: shop1, DstBucket: bucketPtr(BucketExternal)},
		// customer returns 1 to shop 1
		{ProductID: 1, Type: MovementReturnIn, Quantity: 1,
			SrcBucket: bucketPtr(BucketExternal), DstBucket: bucketPtr(BucketShop), DstShopID: shop1},
	}

	for _, m := range movements {
		if err := m.Validate(); err != nil {
			t.Fatalf("scenario movement invalid: %v", err)
		}
	}

	sum := func(bucket Bucket, shopID *int64) int {
		total := 0
		for _, m := range movements {
			total += m.SignedQuantityFor(bucket, shopID)
		}
		return total
	}

	if got := sum(BucketReserved, nil); got != 4 {
		t.Errorf("reserved balance = %d, want 4", got)
	}
	if got := sum(BucketShop, shop1); got != 2 {
		t.Errorf("shop 1 balance = %d, want 2", got)
	}
	if got := sum(BucketShop, shop2); got != 2 {
		t.Errorf("shop 2 balance = %d, want 2", got)
	}
	// external side: -10 (purchase) +3 (sale) -1 (return) = -8,
	// mirroring the 8 units currently owned by the business
	if got := sum(BucketExternal, nil); got != -8 {
		t.Errorf("external balance = %d, want -8", got)
	}
	if got := sum(BucketShop, nil); got != 4 {
		t.Errorf("all-shop balance = %d, want 4", got)
	}
}
