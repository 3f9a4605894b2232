package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/store"
)

const journalTimeout = 2 * time.Second

// JournalHook writes joined sessions to a store.Journal.
type JournalHook struct {
	journal store.Journal
	log     *zerolog.Logger
}

// NewJournalHook builds a hook recording into journal.
func NewJournalHook(journal store.Journal, logger *zerolog.Logger) *JournalHook {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &JournalHook{journal: journal, log: logger}
}

// SessionJoined implements Hook.
func (h *JournalHook) SessionJoined(info Info) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	err := h.journal.OpenSession(ctx, &store.SessionRecord{
		ConnID:      info.ConnID,
		ClientID:    uint32(info.ClientID),
		Name:        info.Name,
		Transport:   info.Transport,
		RemoteAddr:  info.RemoteAddr,
		ConnectedAt: info.JoinedAt,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("conn_id", info.ConnID).Msg("journal open session")
	}
}

// SessionClosed implements Hook. Sessions that never joined are not journaled.
func (h *JournalHook) SessionClosed(info Info, err error) {
	if !info.Joined {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if jerr := h.journal.CloseSession(ctx, info.ConnID, time.Now(), Reason(err)); jerr != nil {
		h.log.Warn().Err(jerr).Str("conn_id", info.ConnID).Msg("journal close session")
	}
}
