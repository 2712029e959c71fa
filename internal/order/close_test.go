package order

import (
	"errors"
	"testing"
	"time"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

func TestCloseTxRejectsInvalidTerminalStatus(t *testing.T) {
	for _, status := range []string{database.OrderPending, "Shipped", ""} {
		o := &database.Order{Status: database.OrderPending}
		if err := CloseTx(nil, o, status, time.Now()); err == nil {
			t.Errorf("status %q accepted as terminal", status)
		}
		if o.Status != database.OrderPending {
			t.Errorf("rejected transition mutated the order to %q", o.Status)
		}
	}
}

func TestCloseTxRejectsNonPendingOrder(t *testing.T) {
	for _, status := range []string{database.OrderConverted, database.OrderCancelled} {
		o := &database.Order{Status: status, IsActive: false}
		err := CloseTx(nil, o, database.OrderCancelled, time.Now())
		if !errors.Is(err, ErrNotPending) {
			t.Errorf("closing a %s order: err = %v, want ErrNotPending", status, err)
		}
		if o.Status != status {
			t.Errorf("failed close mutated the order to %q", o.Status)
		}
	}
}
