package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
)

// ===== Test Helper Functions =====

type memorySource struct {
	mu       sync.Mutex
	items    []*Envelope
	requeued []*Envelope
	dead     []*Envelope
	reasons  []string
	popErr   error
}

func (m *memorySource) Pop(ctx context.Context, timeout time.Duration) (*Envelope, error) {
	m.mu.Lock()
	if m.popErr != nil {
		err := m.popErr
		m.popErr = nil
		m.mu.Unlock()
		return nil, err
	}
	if len(m.items) > 0 {
		env := m.items[0]
		m.items = m.items[1:]
		m.mu.Unlock()
		return env, nil
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (m *memorySource) Requeue(_ context.Context, env *Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *env
	m.requeued = append(m.requeued, &cp)
	m.items = append(m.items, env)
	return nil
}

func (m *memorySource) DeadLetter(_ context.Context, env *Envelope, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, env)
	m.reasons = append(m.reasons, reason)
	return nil
}

func (m *memorySource) snapshot() (requeued, dead []*Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Envelope(nil), m.requeued...), append([]*Envelope(nil), m.dead...)
}

type scriptedProcessor struct {
	mu        sync.Mutex
	calls     int
	delivered []*Envelope
	deliver   func(call int, env *Envelope) (*DeliveryReport, error)
}

func (p *scriptedProcessor) Deliver(_ context.Context, env *Envelope) (*DeliveryReport, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	report, err := p.deliver(call, env)
	if err == nil {
		p.mu.Lock()
		p.delivered = append(p.delivered, env)
		p.mu.Unlock()
	}
	return report, err
}

func (p *scriptedProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func runConsumer(t *testing.T, c *Consumer, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, until, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func emailFailure() (*DeliveryReport, error) {
	return &DeliveryReport{Failed: []string{ChannelEmail}},
		errors.NewNotificationSendFailedError(ChannelEmail, stderrors.New("throttled"))
}

// ===== Consumer =====

func TestConsumer_DeliversEnvelope(t *testing.T) {
	src := &memorySource{items: []*Envelope{testEnvelope("a"), testEnvelope("b")}}
	proc := &scriptedProcessor{deliver: func(int, *Envelope) (*DeliveryReport, error) {
		return &DeliveryReport{}, nil
	}}
	c := NewConsumer(src, proc, ConsumerConfig{Workers: 2, PopTimeout: time.Millisecond}, logger.NewTestLogger(t))

	runConsumer(t, c, func() bool { return proc.callCount() == 2 })

	requeued, dead := src.snapshot()
	assert.Empty(t, requeued)
	assert.Empty(t, dead)
}

func TestConsumer_RequeuesOnlyFailedChannels(t *testing.T) {
	src := &memorySource{items: []*Envelope{testEnvelope("retry")}}
	proc := &scriptedProcessor{deliver: func(call int, env *Envelope) (*DeliveryReport, error) {
		if call == 1 {
			return emailFailure()
		}
		return &DeliveryReport{}, nil
	}}
	c := NewConsumer(src, proc, ConsumerConfig{Workers: 1, MaxAttempts: 3}, logger.NewTestLogger(t))

	runConsumer(t, c, func() bool { return proc.callCount() == 2 })

	requeued, dead := src.snapshot()
	require.Len(t, requeued, 1)
	assert.Equal(t, 1, requeued[0].Attempt)
	assert.Equal(t, []string{ChannelEmail}, requeued[0].Channels)
	assert.Empty(t, dead)
}

func TestConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	src := &memorySource{items: []*Envelope{testEnvelope("doomed")}}
	proc := &scriptedProcessor{deliver: func(int, *Envelope) (*DeliveryReport, error) {
		return emailFailure()
	}}
	c := NewConsumer(src, proc, ConsumerConfig{Workers: 1, MaxAttempts: 3}, logger.NewTestLogger(t))

	runConsumer(t, c, func() bool {
		_, dead := src.snapshot()
		return len(dead) == 1
	})

	requeued, dead := src.snapshot()
	assert.Len(t, requeued, 2)
	assert.Equal(t, 3, dead[0].Attempt)
	assert.Equal(t, 3, proc.callCount())
}

func TestConsumer_PermanentErrorSkipsRetry(t *testing.T) {
	src := &memorySource{items: []*Envelope{testEnvelope("no-template")}}
	proc := &scriptedProcessor{deliver: func(int, *Envelope) (*DeliveryReport, error) {
		return nil, errors.NewTemplateNotFoundError("welcome")
	}}
	c := NewConsumer(src, proc, ConsumerConfig{Workers: 1, MaxAttempts: 5}, logger.NewTestLogger(t))

	runConsumer(t, c, func() bool {
		_, dead := src.snapshot()
		return len(dead) == 1
	})

	requeued, _ := src.snapshot()
	assert.Empty(t, requeued)
	assert.Equal(t, 1, proc.callCount())
}

func TestConsumer_SurvivesPopErrors(t *testing.T) {
	src := &memorySource{
		items:  []*Envelope{testEnvelope("after-error")},
		popErr: stderrors.New("connection reset"),
	}
	proc := &scriptedProcessor{deliver: func(int, *Envelope) (*DeliveryReport, error) {
		return &DeliveryReport{}, nil
	}}
	c := NewConsumer(src, proc, ConsumerConfig{Workers: 1, ErrorBackoff: time.Millisecond}, logger.NewTestLogger(t))

	runConsumer(t, c, func() bool { return proc.callCount() == 1 })
}
