package protocol

// Client-directed events produced by running scripts. The transport maps the
// addressed object id to zero or more live connections.

type TellEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

func Tell(text string) TellEvent { return TellEvent{Type: TypeTell, Text: text} }

func TellHTML(html string) TellEvent { return TellEvent{Type: TypeTell, HTML: html} }

type BacklogEvent struct {
	Type    string   `json:"type"`
	History []string `json:"history"`
}

func Backlog(history []string) BacklogEvent {
	return BacklogEvent{Type: TypeBacklog, History: history}
}

type LogEvent struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func Log(level, message string) LogEvent {
	return LogEvent{Type: TypeLog, Level: level, Message: message}
}

type EditFileEvent struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func EditFile(name, content string) EditFileEvent {
	return EditFileEvent{Type: TypeEditFile, Name: name, Content: content}
}
