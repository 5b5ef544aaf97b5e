package mesh

import "github.com/pion/webrtc/v4"

// Session - возможности согласования одного соединения с удаленным участником.
// *webrtc.PeerConnection удовлетворяет интерфейсу напрямую.
type Session interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	RemoteDescription() *webrtc.SessionDescription
	SignalingState() webrtc.SignalingState

	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))

	Close() error
}

// SessionFactory создает новую сессию для участника peerID
type SessionFactory func(peerID string) (Session, error)

// State - состояние пира в сетке
type State int

const (
	StateNew State = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal - из failed и closed пир не возвращается
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}
