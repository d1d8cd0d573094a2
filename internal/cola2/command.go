package cola2

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/safetyscanner/internal/core"
)

// Command is one COLA2 operation. Commands are single use: a command writes
// its decoded reply into the output value it was built with.
type Command interface {
	// Name labels the command in logs and metrics.
	Name() string
	// RequestType returns the command type and mode bytes of the request.
	RequestType() (byte, byte)
	// Index is the variable or method index, zero for session commands.
	Index() uint16
	// CanExecuteWithoutSessionID reports whether the command may be sent
	// before a session exists.
	CanExecuteWithoutSessionID() bool
	// EncodePayload returns the request bytes following the header.
	EncodePayload() []byte
	// DecodeReply checks the reply type and parses its payload.
	DecodeReply(r Reply) error
}

func expectReply(r Reply, name string, typ, mode byte) error {
	if r.Type != typ || r.Mode != mode {
		return &core.ProtocolError{Op: name,
			Reason: fmt.Sprintf("unexpected reply %c%c, want %c%c", r.Type, r.Mode, typ, mode)}
	}
	return nil
}

// VariableCommand reads one device variable.
type VariableCommand struct {
	name   string
	index  uint16
	decode func(b *core.Block) error
}

func newVariable(name string, index uint16, decode func(b *core.Block)) *VariableCommand {
	return &VariableCommand{name: name, index: index, decode: func(b *core.Block) error {
		decode(b)
		return nil
	}}
}

func (c *VariableCommand) Name() string                     { return c.name }
func (c *VariableCommand) RequestType() (byte, byte)        { return TypeRead, ModeRequest }
func (c *VariableCommand) Index() uint16                    { return c.index }
func (c *VariableCommand) CanExecuteWithoutSessionID() bool { return false }

func (c *VariableCommand) EncodePayload() []byte {
	return binary.LittleEndian.AppendUint16(nil, c.index)
}

func (c *VariableCommand) DecodeReply(r Reply) error {
	if err := expectReply(r, c.name, TypeRead, ModeReply); err != nil {
		return err
	}
	b := core.WholeBlock(c.name, r.Payload)
	if err := c.decode(b); err != nil {
		return err
	}
	return b.Err()
}

// MethodCommand invokes a device method.
type MethodCommand struct {
	name        string
	index       uint16
	args        []byte
	noSessionID bool
}

func (c *MethodCommand) Name() string                     { return c.name }
func (c *MethodCommand) RequestType() (byte, byte)        { return TypeMethod, ModeRequest }
func (c *MethodCommand) Index() uint16                    { return c.index }
func (c *MethodCommand) CanExecuteWithoutSessionID() bool { return c.noSessionID }

func (c *MethodCommand) EncodePayload() []byte {
	out := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+len(c.args)), c.index)
	return append(out, c.args...)
}

func (c *MethodCommand) DecodeReply(r Reply) error {
	return expectReply(r, c.name, TypeMethodReply, ModeRequest)
}

// CreateSessionCommand opens a session. The device assigns the session id
// in the reply header.
type CreateSessionCommand struct {
	heartbeat uint8
	clientID  uint32
	out       *uint32
}

func (c *CreateSessionCommand) Name() string                     { return "create_session" }
func (c *CreateSessionCommand) RequestType() (byte, byte)        { return TypeCreateSession, ModeOpen }
func (c *CreateSessionCommand) Index() uint16                    { return 0 }
func (c *CreateSessionCommand) CanExecuteWithoutSessionID() bool { return true }

func (c *CreateSessionCommand) EncodePayload() []byte {
	return binary.BigEndian.AppendUint32([]byte{c.heartbeat}, c.clientID)
}

func (c *CreateSessionCommand) DecodeReply(r Reply) error {
	if err := expectReply(r, c.Name(), TypeCreateSession, ModeReply); err != nil {
		return err
	}
	*c.out = r.SessionID
	return nil
}

// CloseSessionCommand ends the current session.
type CloseSessionCommand struct{}

func (CloseSessionCommand) Name() string                     { return "close_session" }
func (CloseSessionCommand) RequestType() (byte, byte)        { return TypeCloseSession, ModeOpen }
func (CloseSessionCommand) Index() uint16                    { return 0 }
func (CloseSessionCommand) CanExecuteWithoutSessionID() bool { return true }
func (CloseSessionCommand) EncodePayload() []byte            { return nil }

func (c CloseSessionCommand) DecodeReply(r Reply) error {
	return expectReply(r, c.Name(), TypeCloseSession, ModeReply)
}
