package marketdata

import (
	"context"
	"time"

	"mms-goldcore/internal/pricefeed"

	"go.uber.org/zap"
)

// Publisher polls the feed and pushes fresh quotes onto the bus.
type Publisher struct {
	bus      *Bus
	feed     pricefeed.Source
	interval time.Duration
}

func NewPublisher(bus *Bus, feed pricefeed.Source, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Publisher{bus: bus, feed: feed, interval: interval}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, instrument := range p.feed.Instruments() {
				q, err := p.feed.Quote(instrument)
				if err != nil {
					zap.L().Error("quote publish failed",
						zap.String("instrument", instrument), zap.Error(err))
					continue
				}
				p.bus.PublishQuote(q)
			}
		}
	}
}
