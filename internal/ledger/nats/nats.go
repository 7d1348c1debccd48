// Package nats adapts a NATS JetStream deployment to the ledger contract.
// Events are messages on a stream whose stream sequence doubles as the
// cursor, so ingestion resumes from any checkpoint by sequence lookup.
// Commands are published to a command subject consumed by the chain
// gateway; the handle settles when JetStream acknowledges the submission,
// and execution results come back as new events on the stream.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

type Config struct {
	URL            string
	Stream         string
	EventSubjects  string
	CommandSubject string
	BalanceSubject string
}

type Ledger struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	cfg    Config
}

func Connect(ctx context.Context, cfg Config) (*Ledger, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Auction house ledger event log",
		Subjects:    []string{cfg.EventSubjects},
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Stream, err)
	}

	return &Ledger{conn: conn, js: js, stream: stream, cfg: cfg}, nil
}

// eventMsg is the stream message body. The stream sequence, not this body,
// carries the authoritative ordering.
type eventMsg struct {
	Kind ledger.Kind     `json:"kind"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

func (l *Ledger) Events(ctx context.Context, from ledger.Cursor, limit int) ([]ledger.RawEvent, ledger.Cursor, error) {
	if limit <= 0 {
		limit = 100
	}
	events := make([]ledger.RawEvent, 0, limit)
	cursor := from
	for seq := uint64(from) + 1; len(events) < limit; seq++ {
		msg, err := l.stream.GetMsg(ctx, seq)
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				break
			}
			return events, cursor, fmt.Errorf("failed to fetch event %d: %w", seq, err)
		}
		var body eventMsg
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			// Surface undecodable stream messages as malformed raw events;
			// the fold's decoder will reject and the ingestor will skip.
			body = eventMsg{Kind: "", Time: msg.Time, Data: msg.Data}
		}
		events = append(events, ledger.RawEvent{
			Seq:  msg.Sequence,
			Time: body.Time,
			Kind: body.Kind,
			Data: body.Data,
		})
		cursor = ledger.Cursor(msg.Sequence)
	}
	return events, cursor, nil
}

type commandMsg struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Submit publishes the command for the chain gateway and settles the
// handle on the JetStream publish ack. Settlement here means durable
// acceptance for delivery, not execution: a command the gateway rejects
// on chain simply never produces events. The command envelope carries the
// handle ID so a gateway that reports execution results can be correlated
// later.
func (l *Ledger) Submit(ctx context.Context, cmd ledger.Command) (*ledger.TxHandle, error) {
	handle := ledger.NewTxHandle(cmd)

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}
	body, err := json.Marshal(commandMsg{ID: handle.ID, Name: cmd.CommandName(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command envelope: %w", err)
	}

	subject := l.cfg.CommandSubject + "." + cmd.CommandName()
	if _, err := l.js.Publish(ctx, subject, body); err != nil {
		handle.Settle(fmt.Errorf("failed to publish command: %w", err))
		return handle, nil
	}
	handle.Settle(nil)
	return handle, nil
}

// BalanceOf implements the balance oracle over request/reply: the chain
// gateway answers with the decimal balance string.
func (l *Ledger) BalanceOf(ctx context.Context, addr domain.Address) (*big.Int, error) {
	subject := l.cfg.BalanceSubject + "." + string(addr)
	msg, err := l.conn.RequestWithContext(ctx, subject, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	return domain.ParseAmount(strings.TrimSpace(string(msg.Data)))
}

func (l *Ledger) Close() {
	l.conn.Close()
}
