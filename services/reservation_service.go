package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"commerce-core/models"
	"commerce-core/repository"

	"github.com/google/uuid"
)

// ReservationEngine is the stock reservation surface the order flow consumes.
type ReservationEngine interface {
	CheckAvailability(ctx context.Context, lines []models.ReservationLine) (bool, error)
	Reserve(ctx context.Context, lines []models.ReservationLine) (string, error)
	Release(ctx context.Context, reservationID string) error
}

// ReservationService guarantees that the committed quantity for a product
// variant never exceeds its stock, even under concurrent checkouts. Each line
// is decremented with a single guarded update; a failing line rolls back every
// decrement this attempt already made.
type ReservationService struct {
	catalog repository.CatalogRepository
}

func NewReservationService(catalog repository.CatalogRepository) *ReservationService {
	return &ReservationService{catalog: catalog}
}

// CheckAvailability reads current stock for every line and fails closed: any
// missing product or short variant makes the whole check false.
func (s *ReservationService) CheckAvailability(ctx context.Context, lines []models.ReservationLine) (bool, error) {
	for _, ln := range lines {
		product, err := s.catalog.Get(ctx, ln.ProductID)
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		stock, ok := product.VariantStock(ln.Size)
		if !ok || stock < ln.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// Reserve decrements stock for every line and records the reservation. The
// availability check and the decrement are one conditional update per line,
// so two concurrent reservations cannot both pass against stale stock.
func (s *ReservationService) Reserve(ctx context.Context, lines []models.ReservationLine) (string, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("reservation requires at least one line")
	}
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return "", fmt.Errorf("invalid quantity %d for product=%s size=%s", ln.Quantity, ln.ProductID, ln.Size)
		}
	}

	for i, ln := range lines {
		err := s.catalog.DecrementStock(ctx, ln.ProductID, ln.Size, ln.Quantity)
		if err == nil {
			continue
		}

		// No partial reservations persist: undo what this attempt took.
		s.rollback(ctx, lines[:i])

		if errors.Is(err, repository.ErrInsufficientStock) {
			return "", s.insufficientStock(ctx, ln)
		}
		return "", fmt.Errorf("failed to reserve product=%s size=%s: %w", ln.ProductID, ln.Size, err)
	}

	res := &models.Reservation{
		ID:        uuid.NewString(),
		Lines:     lines,
		Released:  false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.catalog.CreateReservation(ctx, res); err != nil {
		s.rollback(ctx, lines)
		return "", fmt.Errorf("failed to record reservation: %w", err)
	}

	log.Printf("[ReservationService] reserved id=%s lines=%d", res.ID, len(lines))
	return res.ID, nil
}

// Release reverses a reservation's decrements. Releasing twice, or releasing
// an unknown ID, has no further effect and does not error.
func (s *ReservationService) Release(ctx context.Context, reservationID string) error {
	res, flipped, err := s.catalog.MarkReleased(ctx, reservationID)
	if err != nil {
		return err
	}
	if !flipped {
		log.Printf("[ReservationService] release id=%s already released or unknown; skipping", reservationID)
		return nil
	}

	s.rollback(ctx, res.Lines)
	log.Printf("[ReservationService] released id=%s lines=%d", reservationID, len(res.Lines))
	return nil
}

// rollback restores stock for the given lines, continuing past individual
// failures so one broken product does not strand the rest.
func (s *ReservationService) rollback(ctx context.Context, lines []models.ReservationLine) {
	for _, ln := range lines {
		if err := s.catalog.IncrementStock(ctx, ln.ProductID, ln.Size, ln.Quantity); err != nil {
			log.Printf("❌ [ReservationService] failed to restore stock product=%s size=%s qty=%d: %v",
				ln.ProductID, ln.Size, ln.Quantity, err)
		}
	}
}

// insufficientStock builds the caller-facing error with current availability.
func (s *ReservationService) insufficientStock(ctx context.Context, ln models.ReservationLine) error {
	available := 0
	if product, err := s.catalog.Get(ctx, ln.ProductID); err == nil {
		if stock, ok := product.VariantStock(ln.Size); ok {
			available = stock
		}
	}
	return &models.InsufficientStockError{
		ProductID: ln.ProductID,
		Size:      ln.Size,
		Available: available,
		Requested: ln.Quantity,
	}
}
