package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ahamlinman/zipstream/internal/log"
	"github.com/ahamlinman/zipstream/internal/session"
	"github.com/ahamlinman/zipstream/internal/watch"
)

// ArchiveStatusHandler pushes the list of in-flight archive streams to a
// websocket client every time it changes.
type ArchiveStatusHandler struct {
	sessions  *session.Registry
	logger    log.Logger
	socket    *websocket.Conn
	watch     *watch.Watch[[]session.Status]
	ctx       context.Context
	shutdown  context.CancelCauseFunc
	waitGroup sync.WaitGroup
}

func (h *Handler) handleSocketArchiveStatus(w http.ResponseWriter, r *http.Request) {
	ctx, shutdown := context.WithCancelCause(r.Context())
	ash := &ArchiveStatusHandler{
		sessions: h.sessions,
		ctx:      ctx,
		shutdown: shutdown,
	}
	ash.logger = log.T(h.logger, ash)
	ash.ServeHTTP(w, r)
}

func (ash *ArchiveStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ash.logger.Infof("Starting new connection")
	defer func() {
		ash.waitForCleanup()
		ash.logger.Infof("Connection done: %v", context.Cause(ash.ctx))
	}()

	var err error
	ash.socket, err = websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		ash.shutdown(err)
		return
	}
	defer ash.socket.Close()

	ash.waitGroup.Add(1)
	go func() {
		defer ash.waitGroup.Done()
		ash.drainClient()
	}()

	ash.watch = ash.sessions.Watch(ash.sendStatus)
	defer ash.watch.Cancel()

	<-ash.ctx.Done()
}

func (ash *ArchiveStatusHandler) sendStatus(list []session.Status) {
	msg := make([]archiveStatusMsg, len(list))
	for i, s := range list {
		msg[i] = archiveStatusMsg{
			ID:         s.ID,
			Identifier: s.Identifier,
			State:      s.State.String(),
			Started:    s.Started,
			Bytes:      s.Bytes,
			Chunks:     s.Chunks,
		}
	}
	if err := ash.socket.WriteJSON(msg); err != nil {
		ash.shutdown(err)
	}
}

func (ash *ArchiveStatusHandler) drainClient() {
	// Per https://pkg.go.dev/github.com/gorilla/websocket#hdr-Control_Messages,
	// incoming messages must be read even though we ignore them.
	for {
		if _, _, err := ash.socket.NextReader(); err != nil {
			ash.shutdown(err)
			return
		}
	}
}

func (ash *ArchiveStatusHandler) waitForCleanup() {
	if ash.watch != nil {
		ash.watch.Wait()
	}
	ash.waitGroup.Wait()
}

type archiveStatusMsg struct {
	ID         uint64
	Identifier string
	State      string
	Started    time.Time
	Bytes      int64
	Chunks     int
}
