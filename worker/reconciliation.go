package worker

import (
	"context"
	"log"
	"time"

	"commerce-core/services"
)

// ReconciliationWorker periodically sweeps online-payment orders stuck in
// Pending: confirmed ones are received, abandoned ones are failed and their
// stock released. It is the backstop for confirmations that never arrived.
type ReconciliationWorker struct {
	orders   *services.OrderService
	interval time.Duration
	maxAge   time.Duration
}

func NewReconciliationWorker(orders *services.OrderService, interval, maxAge time.Duration) *ReconciliationWorker {
	return &ReconciliationWorker{
		orders:   orders,
		interval: interval,
		maxAge:   maxAge,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	log.Println("Reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rw.orders.ReconcileStalePending(ctx, rw.maxAge); err != nil {
				log.Printf("Reconciliation failed: %v", err)
			}
		}
	}
}
