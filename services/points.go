package services

import (
	"math/rand"
	"sync"
)

const (
	DeliveryFee        = 50.0
	DiscountPointsCost = 150
	DiscountRate       = 0.25
	BonusThreshold     = 2000.0
	BonusMin           = 10
	BonusMax           = 20
)

// PointsRoller draws the loyalty bonus for a qualifying order.
type PointsRoller interface {
	Roll() int
}

// BonusRoller draws uniformly from [BonusMin, BonusMax]. The seed is
// injectable so tests are reproducible.
type BonusRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewBonusRoller(seed int64) *BonusRoller {
	return &BonusRoller{rng: rand.New(rand.NewSource(seed))}
}

func (b *BonusRoller) Roll() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BonusMin + b.rng.Intn(BonusMax-BonusMin+1)
}

// BonusFor returns the bonus earned by an order with the given pre-discount
// items subtotal, or zero below the threshold.
func BonusFor(itemsSubtotal float64, roller PointsRoller) int {
	if itemsSubtotal < BonusThreshold {
		return 0
	}
	return roller.Roll()
}
