package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scriptmud.dev/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	// Round-trip a Go value through JSON so struct tags are what gets checked.
	asJSON := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	loginSchema := compile("login.schema.json")
	commandSchema := compile("command.schema.json")
	saveFileSchema := compile("save_file.schema.json")
	reloadSchema := compile("reload_code.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	tellSchema := compile("tell.schema.json")
	backlogSchema := compile("backlog.schema.json")
	logSchema := compile("log.schema.json")
	editFileSchema := compile("edit_file.schema.json")

	var login any
	_ = json.Unmarshal([]byte(`{
	  "type":"LOGIN",
	  "protocol_version":"1.0",
	  "username":"alice"
	}`), &login)
	validate(loginSchema, login)

	validate(commandSchema, asJSON(protocol.CommandMsg{Type: protocol.TypeCommand, Text: "look"}))
	validate(saveFileSchema, asJSON(protocol.SaveFileMsg{Type: protocol.TypeSaveFile, Name: "alice/live.user", Content: "function main() end"}))
	validate(reloadSchema, asJSON(protocol.ReloadCodeMsg{Type: protocol.TypeReloadCode}))
	validate(welcomeSchema, asJSON(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		UserID:          "#1",
		Username:        "alice",
	}))

	validate(tellSchema, asJSON(protocol.Tell("hello")))
	validate(tellSchema, asJSON(protocol.TellHTML("<b>hello</b>")))
	validate(backlogSchema, asJSON(protocol.Backlog([]string{"first", "second"})))
	validate(logSchema, asJSON(protocol.Log("error", "boom")))
	validate(editFileSchema, asJSON(protocol.EditFile("alice/live.user", "function main() end")))
}

func TestDecodeBase_RoutesByType(t *testing.T) {
	base, err := protocol.DecodeBase([]byte(`{"type":"COMMAND","text":"look"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if base.Type != protocol.TypeCommand {
		t.Fatalf("type = %q, want %q", base.Type, protocol.TypeCommand)
	}
	if _, err := protocol.DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
