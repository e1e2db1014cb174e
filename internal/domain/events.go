package domain

import "encoding/json"

// Events from clients.
const (
	EventBroadcaster         = "broadcaster"
	EventWatcher             = "watcher"
	EventSwitchToPrivate     = "switch-to-private"
	EventCancelPrivate       = "cancel-private"
	EventJoinPublic          = "join-public"
	EventOffer               = "offer"
	EventAnswer              = "answer"
	EventCandidate           = "candidate"
	EventClientOffer         = "client-offer"
	EventClientAnswer        = "client-answer"
	EventClientCandidate     = "client-candidate"
	EventClientStop          = "client-stop"
	EventChatMessage         = "chat-message"
	EventJetonSent           = "jeton-sent"
	EventSurpriseSent        = "surprise-sent"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
	EventSetLanguage         = "set-language"
	EventRequestViewers      = "request-viewers"
	EventWatcherDisconnected = "watcher-disconnected"
	EventPing                = "ping"
)

// Events to clients.
const (
	EventConnected            = "connected"
	EventShowTime             = "show-time"
	EventViewerConnected      = "viewer-connected"
	EventViewerDisconnected   = "viewer-disconnected"
	EventBroadcasterLeft      = "broadcaster-left"
	EventDisconnectPeer       = "disconnectPeer"
	EventRedirectToDashboard  = "redirect-to-dashboard"
	EventPrivateShowStarted   = "private-show-started"
	EventPrivateShowCancelled = "private-show-cancelled"
	EventPublicJoined         = "public-joined"
	EventClientDisconnecting  = "client-disconnecting"
	EventJetonTranslated      = "jeton-sent-translated"
	EventSurpriseTranslated   = "surprise-sent-translated"
	EventLanguageUpdated      = "language-updated"
	EventCurrentViewers       = "current-viewers"
	EventPong                 = "pong"
	EventError                = "error"
)

// Client -> Server payloads

type BroadcasterPayload struct {
	Selector
	Pseudo    string `json:"pseudo,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// HasSchedule reports whether any scheduling field was sent.
func (p BroadcasterPayload) HasSchedule() bool {
	return p.Date != "" || p.StartTime != "" || p.EndTime != ""
}

type WatcherPayload struct {
	Selector
	Pseudo   string `json:"pseudo,omitempty"`
	Language string `json:"language,omitempty"`
}

type PrivacyPayload struct {
	Pseudo string `json:"pseudo,omitempty"`
}

// RelayPayload carries offer/answer/candidate between a broadcaster and one viewer.
type RelayPayload struct {
	Target  SessionID       `json:"target"`
	Message json.RawMessage `json:"message"`
}

type ClientOfferPayload struct {
	Selector
	Offer  json.RawMessage `json:"offer"`
	ToRoom RoomKey         `json:"toRoom,omitempty"`
}

type ClientAnswerPayload struct {
	Description      json.RawMessage `json:"description"`
	ToClientSocketID SessionID       `json:"toClientSocketId"`
}

type ClientCandidatePayload struct {
	Selector
	Candidate        json.RawMessage `json:"candidate"`
	To               SessionID       `json:"to,omitempty"`
	ToClientSocketID SessionID       `json:"toClientSocketId,omitempty"`
	ToRoom           RoomKey         `json:"toRoom,omitempty"`
}

// Target returns the explicitly addressed session, if any.
func (p ClientCandidatePayload) Target() SessionID {
	if p.ToClientSocketID != "" {
		return p.ToClientSocketID
	}
	return p.To
}

type ClientStopPayload struct {
	Selector
	ToRoom RoomKey `json:"toRoom,omitempty"`
}

type ChatPayload struct {
	Selector
	Message  string `json:"message"`
	Pseudo   string `json:"pseudo,omitempty"`
	IsModel  bool   `json:"isModel,omitempty"`
	IsSystem bool   `json:"isSystem,omitempty"`
}

// PaidActionPayload is the parsed view of jeton-sent / surprise-sent; the raw
// payload is what gets broadcast.
type PaidActionPayload struct {
	Selector
	Pseudo string          `json:"pseudo,omitempty"`
	Name   string          `json:"name,omitempty"`
	Emoji  string          `json:"emoji,omitempty"`
	Cost   json.RawMessage `json:"cost,omitempty"`
}

type TypingPayload struct {
	Selector
	Pseudo string `json:"pseudo,omitempty"`
}

type SetLanguagePayload struct {
	Language string `json:"language"`
}

type RoomPayload struct {
	Selector
	ToRoom RoomKey `json:"toRoom,omitempty"`
}

// Server -> Client payloads

// PeerMessage names one session, e.g. a viewer that connected or left.
type PeerMessage struct {
	SocketID SessionID `json:"socketId"`
	Pseudo   string    `json:"pseudo,omitempty"`
	Room     RoomKey   `json:"room,omitempty"`
}

type RelayedMessage struct {
	From    SessionID       `json:"from"`
	Message json.RawMessage `json:"message"`
}

type ClientOfferMessage struct {
	From  SessionID       `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

type ClientAnswerMessage struct {
	From        SessionID       `json:"from"`
	Description json.RawMessage `json:"description"`
}

type ClientCandidateMessage struct {
	From      SessionID       `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// DisconnectingMessage tells a broadcaster a viewer hangs up its peer connection.
type DisconnectingMessage struct {
	From   SessionID `json:"from"`
	Pseudo string    `json:"pseudo,omitempty"`
	Room   RoomKey   `json:"room"`
}

type ShowTimeMessage struct {
	Room             RoomKey `json:"room"`
	StartTimestamp   int64   `json:"startTimestamp"`
	EndTimestamp     int64   `json:"endTimestamp"`
	RemainingSeconds int64   `json:"remainingSeconds"`
}

type PrivateShowMessage struct {
	OwnerID SessionID `json:"ownerId"`
	Pseudo  string    `json:"pseudo,omitempty"`
	Room    RoomKey   `json:"room"`
}

type RedirectMessage struct {
	Reason string  `json:"reason"`
	Room   RoomKey `json:"room"`
}

type PublicJoinedMessage struct {
	Room        RoomKey   `json:"room"`
	Broadcaster SessionID `json:"broadcaster,omitempty"`
}

type ChatMessage struct {
	SenderID        SessionID `json:"senderId"`
	Pseudo          string    `json:"pseudo,omitempty"`
	Message         string    `json:"message"`
	OriginalMessage string    `json:"originalMessage,omitempty"`
	Translated      bool      `json:"translated"`
	SourceLanguage  string    `json:"sourceLanguage,omitempty"`
	TargetLanguage  string    `json:"targetLanguage,omitempty"`
	IsModel         bool      `json:"isModel"`
	IsSystem        bool      `json:"isSystem"`
	Room            RoomKey   `json:"room"`
	SentAt          int64     `json:"sentAt"`
}

// PaidActionTranslation supplements a verbatim paid-action broadcast.
type PaidActionTranslation struct {
	SenderID       SessionID `json:"senderId"`
	Pseudo         string    `json:"pseudo,omitempty"`
	Name           string    `json:"name"`
	TranslatedName string    `json:"translatedName"`
	Emoji          string    `json:"emoji,omitempty"`
	Language       string    `json:"language"`
	Room           RoomKey   `json:"room"`
}

type StopTypingMessage struct {
	SocketID SessionID `json:"socketId"`
	Room     RoomKey   `json:"room"`
}

type LanguageAck struct {
	Success   bool     `json:"success"`
	Language  string   `json:"language,omitempty"`
	Error     string   `json:"error,omitempty"`
	Supported []string `json:"supported,omitempty"`
}

type ViewersMessage struct {
	Room    RoomKey              `json:"room"`
	Viewers map[SessionID]string `json:"viewers"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUnknownEvent        = "UNKNOWN_EVENT"
)

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}
