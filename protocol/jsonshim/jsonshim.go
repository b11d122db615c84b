// Package jsonshim adapts the protocol package's JSON-lines wire types to
// the in-process engine API: one goroutine decodes commands from a reader
// and submits them, another encodes an event subscription's output to a
// writer. It is a thin adapter over package engine, not a second protocol
// implementation.
package jsonshim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/htrunner/htrunner/engine"
	"github.com/htrunner/htrunner/internal/term"
	"github.com/htrunner/htrunner/protocol"
)

// ReadCommands decodes one protocol.CommandMessage per line from r and
// submits the translated engine.Command to session, until r returns EOF or a
// read error; once session has terminated, each further command's Submit
// error is passed to onError. Malformed lines are reported
// via onError rather than aborting the stream (a ProtocolError does not
// advance engine state, but does not kill other commands either).
func ReadCommands(r io.Reader, session *engine.Session, onError func(error)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg protocol.CommandMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("jsonshim: malformed command: %w", err))
			}
			continue
		}
		cmd, err := toCommand(msg)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if _, err := session.Submit(cmd); err != nil && onError != nil {
			onError(err)
		}
	}
}

func toCommand(msg protocol.CommandMessage) (engine.Command, error) {
	switch msg.Type {
	case protocol.CommandSendKeys:
		return engine.SendKeys{Keys: msg.Keys}, nil
	case protocol.CommandTakeSnapshot:
		return engine.TakeSnapshot{Styled: true}, nil
	case protocol.CommandResize:
		return engine.Resize{Cols: msg.Cols, Rows: msg.Rows}, nil
	case protocol.CommandExit:
		return engine.Exit{}, nil
	default:
		return nil, fmt.Errorf("jsonshim: unknown command type %q", msg.Type)
	}
}

// WriteEvents encodes every event from sub as one protocol.EventMessage
// JSON line written to w, until sub's channel closes.
func WriteEvents(w io.Writer, sub *engine.Subscription) error {
	enc := json.NewEncoder(w)
	for ev := range sub.Events() {
		msg, ok := toEventMessage(ev)
		if !ok {
			continue
		}
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func toEventMessage(ev engine.Event) (protocol.EventMessage, bool) {
	switch ev.Kind {
	case engine.KindEventPid:
		return protocol.EventMessage{Type: protocol.EventPid, Data: protocol.PidData{Pid: ev.Pid}}, true
	case engine.KindEventOutput:
		return protocol.EventMessage{Type: protocol.EventOutput, Data: protocol.OutputData{Seq: string(ev.Output)}}, true
	case engine.KindEventSnapshot:
		return protocol.EventMessage{Type: protocol.EventSnapshot, Data: protocol.SnapshotData{
			Text: ev.Snapshot.Text,
			Seq:  string(term.Encode(ev.Snapshot)),
		}}, true
	case engine.KindEventResize:
		return protocol.EventMessage{Type: protocol.EventResize, Data: protocol.ResizeData{Cols: ev.Cols, Rows: ev.Rows}}, true
	case engine.KindEventExitCode:
		return protocol.EventMessage{Type: protocol.EventExitCode, Data: protocol.ExitCodeData{ExitCode: ev.ExitCode}}, true
	case engine.KindEventDebug:
		return protocol.EventMessage{Type: protocol.EventDebug, Data: protocol.DebugData{Tag: ev.Debug}}, true
	case engine.KindEventInit:
		return protocol.EventMessage{Type: protocol.EventInit, Data: protocol.SnapshotData{
			Text: ev.Snapshot.Text,
			Seq:  string(term.Encode(ev.Snapshot)),
		}}, true
	default:
		return protocol.EventMessage{}, false
	}
}
