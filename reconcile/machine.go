package reconcile

import (
	"fmt"

	"github.com/Govind-619/SettleSphere/gateway"
	"github.com/Govind-619/SettleSphere/models"
)

// RecordKind selects the lifecycle an event is decided against
type RecordKind int

const (
	PaymentRecord RecordKind = iota
	DepositRecord
)

func (k RecordKind) String() string {
	if k == DepositRecord {
		return "deposit"
	}
	return "payment"
}

// Effect is the store mutation a transition requires
type Effect string

const (
	EffectMarkOrderPaid     Effect = "mark_order_paid"
	EffectMarkOrderFailed   Effect = "mark_order_failed"
	EffectMarkOrderRefunded Effect = "mark_order_refunded"
	EffectAttachOrder       Effect = "attach_gateway_order"
	EffectCapture           Effect = "capture_gateway_order"
	EffectCreditWallet      Effect = "credit_wallet"
)

// Transition is an allowed state change and the mutation that carries it out
type Transition struct {
	From   string
	To     string
	Effect Effect
}

// Decide returns the transition ev causes on a record of the given kind in
// status current. Replays of an applied transition return
// ErrAlreadyProcessed; anything off the table returns ErrInvalidTransition.
//
// The answer is advisory. The store re-checks the status inside the same
// atomic write, so a concurrent delivery that passes Decide still applies
// at most once.
func Decide(kind RecordKind, current string, ev Event) (Transition, error) {
	switch e := ev.(type) {
	case CheckoutCompleted, LegacySaleCompleted:
		if kind != PaymentRecord {
			break
		}
		switch current {
		case models.PaymentStatusPending:
			return Transition{From: current, To: models.PaymentStatusCompleted, Effect: EffectMarkOrderPaid}, nil
		case models.PaymentStatusCompleted:
			return Transition{}, ErrAlreadyProcessed
		}

	case CheckoutDenied:
		if kind != PaymentRecord {
			break
		}
		switch current {
		case models.PaymentStatusPending:
			return Transition{From: current, To: models.PaymentStatusFailed, Effect: EffectMarkOrderFailed}, nil
		case models.PaymentStatusFailed:
			return Transition{}, ErrAlreadyProcessed
		}

	case CaptureRefunded:
		if kind != PaymentRecord {
			break
		}
		switch current {
		case models.PaymentStatusCompleted:
			return Transition{From: current, To: models.PaymentStatusRefunded, Effect: EffectMarkOrderRefunded}, nil
		case models.PaymentStatusRefunded:
			return Transition{}, ErrAlreadyProcessed
		}

	case CreateDeposit:
		if kind != DepositRecord {
			break
		}
		switch current {
		case models.DepositStatusPending:
			return Transition{From: current, To: current, Effect: EffectAttachOrder}, nil
		case models.DepositStatusCompleted:
			return Transition{}, ErrAlreadyProcessed
		}

	case CaptureDeposit:
		if kind != DepositRecord {
			break
		}
		switch current {
		case models.DepositStatusPending:
			switch e.GatewayStatus {
			case "":
				return Transition{From: current, To: current, Effect: EffectCapture}, nil
			case gateway.StatusCompleted:
				return Transition{From: current, To: models.DepositStatusCompleted, Effect: EffectCreditWallet}, nil
			default:
				return Transition{}, fmt.Errorf("%w: gateway status %s", ErrCaptureIncomplete, e.GatewayStatus)
			}
		case models.DepositStatusCompleted:
			return Transition{}, ErrAlreadyProcessed
		}

	case Unhandled:
		return Transition{}, fmt.Errorf("%w: %s is not acted upon", ErrInvalidTransition, e.EventType)

	default:
		return Transition{}, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}

	return Transition{}, fmt.Errorf("%w: %s on %s in status %q", ErrInvalidTransition, ev.Intent(), kind, current)
}
