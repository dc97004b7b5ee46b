package protocol

import "encoding/json"

const Version = "1.0"

// Client -> server message types.
const (
	TypeLogin      = "LOGIN"
	TypeCommand    = "COMMAND"
	TypeSaveFile   = "SAVE_FILE"
	TypeReloadCode = "RELOAD_CODE"
)

// Server -> client message types.
const (
	TypeWelcome  = "WELCOME"
	TypeTell     = "TELL"
	TypeBacklog  = "BACKLOG"
	TypeLog      = "LOG"
	TypeEditFile = "EDIT_FILE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

type LoginMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Username        string `json:"username"`
}

type CommandMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SaveFileMsg struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type ReloadCodeMsg struct {
	Type string `json:"type"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
}
