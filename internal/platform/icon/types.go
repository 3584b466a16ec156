package icon

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

type legJSON struct {
	Provider string `json:"provider"`
	Contract string `json:"contract"`
	Amount   string `json:"amount"`
}

// swapJSON is a swap as serialized by the exchange SCORE. Quantities are
// 0x-prefixed hex; timestamp_swap is in microseconds and absent or zero on
// pending swaps.
type swapJSON struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	TimestampSwap string  `json:"timestamp_swap"`
	Maker         legJSON `json:"maker"`
	Taker         legJSON `json:"taker"`
}

func (l legJSON) toDomain() (domain.Leg, error) {
	amt, err := numeric.ParseRaw(l.Amount)
	if err != nil {
		return domain.Leg{}, err
	}
	return domain.Leg{
		Provider: l.Provider,
		Contract: domain.AssetID(l.Contract),
		Amount:   amt,
	}, nil
}

func (s swapJSON) toDomain() (domain.Swap, error) {
	maker, err := s.Maker.toDomain()
	if err != nil {
		return domain.Swap{}, fmt.Errorf("swap %s maker: %w", s.ID, err)
	}
	taker, err := s.Taker.toDomain()
	if err != nil {
		return domain.Swap{}, fmt.Errorf("swap %s taker: %w", s.ID, err)
	}
	if maker.Contract == taker.Contract {
		return domain.Swap{}, fmt.Errorf("swap %s: maker and taker both %s: %w",
			s.ID, maker.Contract, domain.ErrDataIntegrity)
	}

	out := domain.Swap{ID: s.ID, Maker: maker, Taker: taker}
	if s.TimestampSwap != "" {
		us, err := numeric.ParseHexUint64(s.TimestampSwap)
		if err != nil {
			return domain.Swap{}, fmt.Errorf("swap %s timestamp: %w", s.ID, err)
		}
		if us > 0 {
			out.FilledAt = time.UnixMicro(int64(us)).UTC()
		}
	}
	return out, nil
}
