package bus

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestInProcessBusDispatch(t *testing.T) {
	b := NewInProcessBus(nopLogger())
	var got []Signal
	b.Subscribe(SignalLearnerGraphUpdated, func(ctx context.Context, sig Signal) {
		got = append(got, sig)
	})

	sig := Signal{Name: SignalLearnerGraphUpdated, UserID: uuid.New(), ContentID: uuid.New()}
	if err := b.Publish(context.Background(), sig); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].UserID != sig.UserID || got[0].ContentID != sig.ContentID {
		t.Fatalf("signal = %+v, want %+v", got[0], sig)
	}
}

func TestInProcessBusFansOut(t *testing.T) {
	b := NewInProcessBus(nopLogger())
	calls := 0
	for i := 0; i < 3; i++ {
		b.Subscribe(SignalContentExtractionCompleted, func(ctx context.Context, sig Signal) { calls++ })
	}
	_ = b.Publish(context.Background(), Signal{Name: SignalContentExtractionCompleted})
	if calls != 3 {
		t.Fatalf("fan-out deliveries = %d, want 3", calls)
	}
}

func TestInProcessBusNameIsolation(t *testing.T) {
	b := NewInProcessBus(nopLogger())
	calls := 0
	b.Subscribe(SignalLearnerGraphUpdated, func(ctx context.Context, sig Signal) { calls++ })

	_ = b.Publish(context.Background(), Signal{Name: SignalContentExtractionCompleted})
	if calls != 0 {
		t.Fatal("subscriber must not receive other signal names")
	}
	_ = b.Publish(context.Background(), Signal{Name: SignalLearnerGraphUpdated})
	if calls != 1 {
		t.Fatalf("deliveries = %d, want 1", calls)
	}
}

func TestInProcessBusNilHandlerIgnored(t *testing.T) {
	b := NewInProcessBus(nopLogger())
	b.Subscribe(SignalLearnerGraphUpdated, nil)
	if err := b.Publish(context.Background(), Signal{Name: SignalLearnerGraphUpdated}); err != nil {
		t.Fatalf("Publish with nil handler subscribed: %v", err)
	}
}
