package chatclient

import (
	"errors"
	"testing"
)

func TestParseCommandListAndQuit(t *testing.T) {
	cmd, err := ParseCommand("/listar")
	if err != nil || cmd.Kind != CommandListOnline {
		t.Fatalf("ParseCommand(/listar) = %+v, %v", cmd, err)
	}
	cmd, err = ParseCommand("/sair")
	if err != nil || cmd.Kind != CommandQuit {
		t.Fatalf("ParseCommand(/sair) = %+v, %v", cmd, err)
	}
	cmd, err = ParseCommand("   ")
	if err != nil || cmd.Kind != CommandNone {
		t.Fatalf("ParseCommand(blank) = %+v, %v", cmd, err)
	}
}

func TestParseCommandSend(t *testing.T) {
	cmd, err := ParseCommand("/enviar 2 hello there")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Kind != CommandSend || cmd.TargetID != 2 || cmd.Message != "hello there" {
		t.Fatalf("cmd = %+v, want {CommandSend 2 hello there}", cmd)
	}
}

func TestParseCommandSendInvalidID(t *testing.T) {
	_, err := ParseCommand("/enviar abc hi")
	if !errors.Is(err, ErrInvalidTargetID) {
		t.Fatalf("err = %v, want ErrInvalidTargetID", err)
	}
}

func TestParseCommandSendMissingMessage(t *testing.T) {
	_, err := ParseCommand("/enviar 2")
	if !errors.Is(err, ErrUsageSend) {
		t.Fatalf("err = %v, want ErrUsageSend", err)
	}
}

func TestParseCommandUnknown(t *testing.T) {
	_, err := ParseCommand("/whoami")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("err = %v, want ErrUnknownCommand", err)
	}
}
