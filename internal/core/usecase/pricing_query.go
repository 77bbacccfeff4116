package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/core/reconcile"
)

type PricingQueryUseCase struct {
	bids    ports.BidRepository
	records ports.PricingRecordStore
}

func NewPricingQueryUseCase(bids ports.BidRepository, records ports.PricingRecordStore) *PricingQueryUseCase {
	return &PricingQueryUseCase{bids: bids, records: records}
}

func (uc *PricingQueryUseCase) GetPricing(ctx context.Context, tenderID, bidID string) (*domain.PricingView, error) {
	bid, err := uc.bids.GetByID(ctx, tenderID, bidID)
	if err != nil {
		return nil, fmt.Errorf("fetch bid: %w", err)
	}

	records, err := uc.records.ListForBid(ctx, bidID)
	if err != nil {
		return nil, fmt.Errorf("list pricing records: %w", err)
	}

	return &domain.PricingView{
		Bid:            *bid,
		Records:        records,
		IncludedAmount: reconcile.IncludedAmount(records),
	}, nil
}
