package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sethvargo/go-retry"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/domain/events"
)

const (
	defaultNegotiationTimeout = 30 * time.Second
	defaultRetryBackoff       = 500 * time.Millisecond
)

var (
	ErrClosed      = errors.New("mesh closed")
	ErrUnknownPeer = errors.New("unknown peer")

	errPeerGone = errors.New("peer torn down")
)

// Signaler - отправка сообщений через сигнальный сервер
type Signaler interface {
	Send(t events.Type, payload any) error
}

type Options struct {
	// NegotiationTimeout - сколько пир может не доходить до connected
	NegotiationTimeout time.Duration

	// RetryBackoff - пауза перед единственной повторной попыткой создать offer
	RetryBackoff time.Duration

	OnStateChange func(peerID string, state State)

	Logger *slog.Logger
}

type peer struct {
	id      string
	session Session

	mu      sync.Mutex
	state   State
	pending []webrtc.ICECandidateInit
	timer   *time.Timer
}

// Manager держит по одному соединению на каждого удаленного участника.
// Ошибка одного пира не влияет на остальных.
type Manager struct {
	factory  SessionFactory
	signaler Signaler
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	peers  map[string]*peer
	closed bool
}

func NewManager(factory SessionFactory, signaler Signaler, opts Options) *Manager {
	if opts.NegotiationTimeout <= 0 {
		opts.NegotiationTimeout = defaultNegotiationTimeout
	}

	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		factory:  factory,
		signaler: signaler,
		opts:     opts,
		logger:   logger,
		peers:    make(map[string]*peer),
	}
}

// Prepare заводит слот под нового участника. Offer отправляет сам новичок.
func (m *Manager) Prepare(peerID string) error {
	_, err := m.ensure(peerID)
	return err
}

// ConnectTo - новичок отправляет offer каждому, кто уже был в комнате
func (m *Manager) ConnectTo(ctx context.Context, peerIDs []string) error {
	var errs []error

	for _, id := range peerIDs {
		p, err := m.ensure(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		go m.offer(ctx, p)
	}

	return errors.Join(errs...)
}

func (m *Manager) HandleOffer(senderID string, payload json.RawMessage) error {
	desc, err := decodeDescription(payload, webrtc.SDPTypeOffer)
	if err != nil {
		return err
	}

	p, err := m.ensure(senderID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	started, err := m.acceptOfferLocked(p, desc)
	p.mu.Unlock()

	if started {
		m.notify(p.id, StateNegotiating)
	}

	if err != nil {
		if !errors.Is(err, errPeerGone) {
			m.teardown(p, StateFailed)
		}

		return fmt.Errorf("accept offer from %s: %w", senderID, err)
	}

	return nil
}

func (m *Manager) acceptOfferLocked(p *peer, desc webrtc.SessionDescription) (bool, error) {
	if p.state.Terminal() {
		return false, errPeerGone
	}

	// Встречный offer: откатываем свой и отвечаем на чужой
	if p.session.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if err := p.session.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return false, fmt.Errorf("rollback local offer: %w", err)
		}
	}

	started := m.beginNegotiationLocked(p)

	if err := p.session.SetRemoteDescription(desc); err != nil {
		return started, fmt.Errorf("set remote offer: %w", err)
	}

	m.flushCandidatesLocked(p)

	answer, err := p.session.CreateAnswer(nil)
	if err != nil {
		return started, fmt.Errorf("create answer: %w", err)
	}

	if err = p.session.SetLocalDescription(answer); err != nil {
		return started, fmt.Errorf("set local answer: %w", err)
	}

	return started, m.relay(events.TypeAnswer, p.id, answer)
}

func (m *Manager) HandleAnswer(senderID string, payload json.RawMessage) error {
	desc, err := decodeDescription(payload, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}

	p, ok := m.get(senderID)
	if !ok {
		return fmt.Errorf("answer from %s: %w", senderID, ErrUnknownPeer)
	}

	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return nil
	}

	err = p.session.SetRemoteDescription(desc)
	if err == nil {
		m.flushCandidatesLocked(p)
	}
	p.mu.Unlock()

	if err != nil {
		m.teardown(p, StateFailed)
		return fmt.Errorf("set remote answer from %s: %w", senderID, err)
	}

	return nil
}

// HandleCandidate буферизует кандидатов, пришедших раньше remote description.
// Кандидаты для неизвестных пиров отбрасываются.
func (m *Manager) HandleCandidate(senderID string, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("unmarshal ice candidate: %w", err)
	}

	// Offer новичка приходит по тому же сокету раньше его кандидатов, поэтому
	// кандидат для неизвестного пира - запоздалый trickle после teardown
	p, ok := m.get(senderID)
	if !ok {
		m.logger.Debug("drop ice candidate for unknown peer", slog.String(constant.PeerID, senderID))
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return nil
	}

	if p.session.RemoteDescription() == nil {
		p.pending = append(p.pending, candidate)
		return nil
	}

	if err := p.session.AddICECandidate(candidate); err != nil {
		// Один плохой кандидат не ломает соединение
		m.logger.Warn("add ice candidate", slog.Any(constant.Error, err), slog.String(constant.PeerID, senderID))
	}

	return nil
}

// Remove закрывает соединение с ушедшим участником
func (m *Manager) Remove(peerID string) {
	if p, ok := m.get(peerID); ok {
		m.teardown(p, StateClosed)
	}
}

// Close закрывает все соединения. После Close менеджер не принимает новых пиров.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		m.teardown(p, StateClosed)
	}
}

// Reset закрывает все соединения, но оставляет менеджер рабочим (выход из комнаты)
func (m *Manager) Reset() {
	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		m.teardown(p, StateClosed)
	}
}

// States - снимок состояний всех живых пиров
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	out := make(map[string]State, len(peers))
	for _, p := range peers {
		p.mu.Lock()
		out[p.id] = p.state
		p.mu.Unlock()
	}

	return out
}

func (m *Manager) get(peerID string) (*peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[peerID]
	return p, ok
}

// ensure возвращает живого пира или создает новый. Пир в терминальном
// состоянии к этому моменту уже удален из map.
func (m *Manager) ensure(peerID string) (*peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if p, ok := m.peers[peerID]; ok {
		return p, nil
	}

	session, err := m.factory(peerID)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", peerID, err)
	}

	p := &peer{id: peerID, session: session, state: StateNew}

	session.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}

		if err := m.relay(events.TypeICECandidate, peerID, c.ToJSON()); err != nil {
			m.logger.Warn("send ice candidate", slog.Any(constant.Error, err), slog.String(constant.PeerID, peerID))
		}
	})

	session.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.onConnectionState(p, s)
	})

	// Слот, который так и не дошел до connected, закрывается по таймауту,
	// даже если offer от участника не пришел
	p.timer = time.AfterFunc(m.opts.NegotiationTimeout, func() { m.negotiationExpired(p) })

	m.peers[peerID] = p

	return p, nil
}

func (m *Manager) offer(ctx context.Context, p *peer) {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(m.opts.RetryBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		started, err := m.attemptOffer(p)
		if started {
			m.notify(p.id, StateNegotiating)
		}

		return err
	})

	if err == nil || errors.Is(err, errPeerGone) {
		return
	}

	m.logger.Error("negotiate with peer", slog.Any(constant.Error, err), slog.String(constant.PeerID, p.id))
	m.teardown(p, StateFailed)
}

func (m *Manager) attemptOffer(p *peer) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return false, errPeerGone
	}

	// Пока ждали, пришел встречный offer и согласование уже идет
	if p.session.SignalingState() != webrtc.SignalingStateStable {
		return false, nil
	}

	started := m.beginNegotiationLocked(p)

	desc, err := p.session.CreateOffer(nil)
	if err != nil {
		return started, retry.RetryableError(fmt.Errorf("create offer: %w", err))
	}

	if err = p.session.SetLocalDescription(desc); err != nil {
		return started, retry.RetryableError(fmt.Errorf("set local offer: %w", err))
	}

	return started, m.relay(events.TypeOffer, p.id, desc)
}

// beginNegotiationLocked переводит new в negotiating. Таймер заведен еще в ensure.
// true - состояние изменилось, вызывающий сообщает об этом после снятия блокировки.
func (m *Manager) beginNegotiationLocked(p *peer) bool {
	if p.state != StateNew {
		return false
	}

	p.state = StateNegotiating

	return true
}

func (m *Manager) negotiationExpired(p *peer) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == StateConnected || state.Terminal() {
		return
	}

	m.logger.Warn("negotiation timed out", slog.String(constant.PeerID, p.id))
	m.teardown(p, StateFailed)
}

func (m *Manager) flushCandidatesLocked(p *peer) {
	for _, c := range p.pending {
		if err := p.session.AddICECandidate(c); err != nil {
			m.logger.Warn("add buffered ice candidate", slog.Any(constant.Error, err), slog.String(constant.PeerID, p.id))
		}
	}

	p.pending = nil
}

func (m *Manager) onConnectionState(p *peer, s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		p.mu.Lock()
		if p.state.Terminal() || p.state == StateConnected {
			p.mu.Unlock()
			return
		}

		p.state = StateConnected
		if p.timer != nil {
			p.timer.Stop()
		}
		p.mu.Unlock()

		m.notify(p.id, StateConnected)

	case webrtc.PeerConnectionStateFailed:
		m.teardown(p, StateFailed)

	case webrtc.PeerConnectionStateClosed:
		m.teardown(p, StateClosed)
	}
}

// teardown закрывает только этого пира. Повторный вызов ничего не делает.
func (m *Manager) teardown(p *peer, state State) {
	m.mu.Lock()
	if cur, ok := m.peers[p.id]; ok && cur == p {
		delete(m.peers, p.id)
	}
	m.mu.Unlock()

	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return
	}

	p.state = state
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	// Close вне блокировки: pion синхронно вызывает OnConnectionStateChange(closed)
	if err := p.session.Close(); err != nil {
		m.logger.Warn("close peer session", slog.Any(constant.Error, err), slog.String(constant.PeerID, p.id))
	}

	m.logger.Info("peer torn down", slog.String(constant.PeerID, p.id), slog.String(constant.State, state.String()))
	m.notify(p.id, state)
}

func (m *Manager) notify(peerID string, state State) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(peerID, state)
	}
}

func (m *Manager) relay(kind events.Type, peerID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	return m.signaler.Send(kind, events.RelayEvent{TargetID: peerID, Payload: raw})
}

func decodeDescription(payload json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return desc, fmt.Errorf("unmarshal %s: %w", want, err)
	}

	if desc.Type != want {
		return desc, fmt.Errorf("expected %s, got %s", want, desc.Type)
	}

	return desc, nil
}
